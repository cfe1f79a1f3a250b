package upload

import (
	"errors"
	"fmt"
)

var (
	ErrEscalationUnavailable = errors.New("escalation is not available")
	errSuperseded            = errors.New("attempt superseded")
)

// FailureMessage is shown for every storage or record failure. The error
// type keeps the distinction for logs and the journal.
const FailureMessage = "photo upload failed, please try again"

// TransportError means the bytes never reached the object store.
type TransportError struct {
	Key string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Key, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// PersistenceError means the bytes were stored but the athlete record could
// not be pointed at them.
type PersistenceError struct {
	RecordID string
	Key      string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("update record %s with %s: %v", e.RecordID, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
