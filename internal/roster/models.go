package roster

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	StatusStarter     = "Starter"
	StatusSubstitute  = "Substitute"
	StatusNotSelected = "Not Selected"
	StatusUnset       = ""
)

// Upload journal phases. They mirror the upload control phases in storage form.
const (
	UploadUploading            = "uploading"
	UploadSucceeded            = "succeeded"
	UploadFailed               = "failed"
	UploadAwaitingManualReview = "awaiting_manual_review"
)

var (
	ErrNotFound           = errors.New("athlete not found")
	ErrUploadNotFound     = errors.New("upload not found")
	ErrDuplicateStudentID = errors.New("student id already registered")
	ErrPhoneMismatch      = errors.New("phone number does not match")
	ErrInvalidStatus      = errors.New("invalid selection status")
	ErrUnknownField       = errors.New("field cannot be updated")
)

type Athlete struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	Name        string    `json:"name"`
	Nickname    string    `json:"nickname,omitempty"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	YearOfStudy string    `json:"year_of_study,omitempty"`
	Curriculum  string    `json:"curriculum,omitempty"`
	Sport       string    `json:"sport,omitempty"`
	Status      string    `json:"status"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Upload is one journaled photo upload attempt. Rows are written for audit and
// orphan cleanup only.
type Upload struct {
	ID          string    `json:"id"`
	AthleteID   string    `json:"athlete_id"`
	StorageKey  string    `json:"storage_key"`
	FileName    string    `json:"file_name"`
	Size        int64     `json:"size"`
	Phase       string    `json:"phase"`
	Progress    int       `json:"progress"`
	Message     string    `json:"message,omitempty"`
	Locator     string    `json:"locator,omitempty"`
	Escalated   bool      `json:"escalated"`
	LateOutcome string    `json:"late_outcome,omitempty"`
	Orphaned    bool      `json:"orphaned"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// updatableFields lists the athlete columns UpdateField may write.
var updatableFields = map[string]bool{
	"image_url":     true,
	"status":        true,
	"nickname":      true,
	"phone_number":  true,
	"year_of_study": true,
	"curriculum":    true,
	"sport":         true,
}

func NewID() string {
	return uuid.NewString()
}

func ValidStatus(status string) bool {
	switch status {
	case StatusStarter, StatusSubstitute, StatusNotSelected:
		return true
	}
	return false
}
