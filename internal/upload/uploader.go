package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/courtside/roster/internal/roster"
)

const (
	imageField     = "image_url"
	cleanupTimeout = 30 * time.Second
	journalTimeout = 10 * time.Second
	keyAttemptLen  = 8
)

// ObjectKey builds the storage key
// <prefix>/<subject>-<unix millis>-<attempt prefix>.<ext>. The attempt part
// keeps two attempts started in the same millisecond apart.
func ObjectKey(prefix, subjectID, attemptID string, at time.Time, ext string) string {
	if len(attemptID) > keyAttemptLen {
		attemptID = attemptID[:keyAttemptLen]
	}
	return fmt.Sprintf("%s/%s-%d-%s.%s", prefix, subjectID, at.UnixMilli(), attemptID, ext)
}

// run performs the request for a and applies its outcome. ctx carries no
// cancellation from the caller; only the request timeout bounds it.
func (c *Control) run(ctx context.Context, a *attempt, f File) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	locator, err := c.transfer(ctx, a, f)
	c.complete(a, locator, err)
}

// transfer stores the bytes, resolves the public locator and points the
// athlete record at it.
func (c *Control) transfer(ctx context.Context, a *attempt, f File) (string, error) {
	if _, err := c.store.Put(ctx, a.key, f.Body, f.Size, a.contentType); err != nil {
		return "", &TransportError{Key: a.key, Err: err}
	}
	locator := c.store.PublicURL(a.key)

	c.writeMu.Lock()
	if !c.isLive(a) {
		c.writeMu.Unlock()
		// Replaced or cancelled while storing: leave the record alone.
		c.removeObject(ctx, a, "superseded")
		return "", errSuperseded
	}
	err := c.records.UpdateField(ctx, c.subjectID, imageField, locator)
	c.writeMu.Unlock()

	if err != nil {
		perr := &PersistenceError{RecordID: c.subjectID, Key: a.key, Err: err}
		if c.opts.CompensateOrphans {
			c.removeObject(ctx, a, "record update failed")
		} else {
			a.logger.Warn("stored object kept after failed record update", "key", a.key)
		}
		return "", perr
	}
	return locator, nil
}

// isLive reports whether a may still write the record. Escalated attempts
// stay live until a newer accepted file or Cancel abandons them.
func (c *Control) isLive(a *attempt) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !a.abandoned
}

// removeObject deletes the stored bytes of a. When the delete fails the
// journal row is flagged for the orphan sweeper.
func (c *Control) removeObject(ctx context.Context, a *attempt, why string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := c.store.Delete(ctx, a.key); err != nil {
		a.logger.Error("failed to delete orphaned object", "key", a.key, "reason", why, "error", err)
		c.markOrphaned(a)
		return
	}
	a.logger.Info("deleted orphaned object", "key", a.key, "reason", why)
}

func (c *Control) markOrphaned(a *attempt) {
	c.mu.Lock()
	a.row.Orphaned = true
	c.mu.Unlock()
}

// complete applies the outcome of a's request. An outcome for an attempt
// that is no longer uploading only reaches the journal and the log.
func (c *Control) complete(a *attempt, locator string, err error) {
	c.mu.Lock()
	now := c.opts.Now().UTC()
	if c.cur != a || c.state.Phase != PhaseUploading {
		a.row.LateOutcome = outcomeLabel(err)
		a.row.UpdatedAt = now
		if locator != "" {
			a.row.Locator = locator
		}
		c.mu.Unlock()

		a.logger.Info("late upload outcome discarded", "outcome", outcomeLabel(err), "error", err)
		c.saveJournal(a)
		return
	}

	a.cancel()
	a.stall = StallCancelled
	c.state.Stall = StallCancelled
	c.state.EscalationAvailable = false
	if err == nil {
		c.state.Phase = PhaseSucceeded
		c.state.Progress = 100
		c.state.Message = SuccessMessage
		c.state.Locator = locator
		a.row.Phase = roster.UploadSucceeded
		a.row.Locator = locator
	} else {
		c.state.Phase = PhaseFailed
		c.state.Progress = 0
		c.state.Message = FailureMessage
		a.row.Phase = roster.UploadFailed
	}
	a.row.Progress = c.state.Progress
	a.row.Message = journalMessage(err)
	a.row.UpdatedAt = now
	c.publishLocked(a)
	c.closeStreamLocked(a)
	c.mu.Unlock()

	if err != nil {
		a.logger.Error("upload failed", "error", err, "kind", errorKind(err))
	} else {
		a.logger.Info("upload succeeded", "locator", locator)
	}
	c.saveJournal(a)
}

func (c *Control) createJournal(ctx context.Context, a *attempt) {
	if c.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, journalTimeout)
	defer cancel()

	a.jmu.Lock()
	defer a.jmu.Unlock()
	c.mu.Lock()
	row := *a.row
	c.mu.Unlock()
	if err := c.journal.CreateUpload(ctx, &row); err != nil {
		a.logger.Warn("failed to journal upload", "error", err)
	}
}

// saveJournal writes the latest row of a. Writes for one attempt are
// serialized and each copies the row at write time, so the last write always
// carries every change made before it.
func (c *Control) saveJournal(a *attempt) {
	if c.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	a.jmu.Lock()
	defer a.jmu.Unlock()
	c.mu.Lock()
	row := *a.row
	c.mu.Unlock()
	if err := c.journal.UpdateUpload(ctx, &row); err != nil {
		a.logger.Warn("failed to update upload journal", "error", err)
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return roster.UploadSucceeded
	case errors.Is(err, errSuperseded):
		return "superseded"
	default:
		return roster.UploadFailed + ": " + errorKind(err)
	}
}

func errorKind(err error) string {
	var terr *TransportError
	var perr *PersistenceError
	switch {
	case errors.As(err, &terr):
		return "transport"
	case errors.As(err, &perr):
		return "persistence"
	case errors.Is(err, errSuperseded):
		return "superseded"
	default:
		return "unknown"
	}
}

func journalMessage(err error) string {
	if err == nil {
		return SuccessMessage
	}
	return err.Error()
}
