// Package upload runs athlete photo uploads. A Control owns the visible state
// of one athlete's upload: it validates the file, drives the storage request,
// simulates progress while the request is in flight and offers a manual
// escalation once the request has been pending too long.
package upload

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/courtside/roster/internal/logging"
	"github.com/courtside/roster/internal/roster"
	"github.com/courtside/roster/internal/storage"
)

type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseUploading            Phase = "uploading"
	PhaseSucceeded            Phase = "succeeded"
	PhaseFailed               Phase = "failed"
	PhaseAwaitingManualReview Phase = "awaiting_manual_review"
)

// Terminal reports whether no further transitions happen without a new
// submission.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed || p == PhaseAwaitingManualReview
}

type StallState string

const (
	StallArmed     StallState = "armed"
	StallFired     StallState = "fired"
	StallCancelled StallState = "cancelled"
)

const (
	SuccessMessage    = "photo uploaded"
	EscalationMessage = "upload reported for manual review"
)

// Snapshot is the observable state of a control at one instant.
type Snapshot struct {
	AttemptID           string     `json:"attempt_id,omitempty"`
	Phase               Phase      `json:"phase"`
	Progress            int        `json:"progress"`
	Message             string     `json:"message,omitempty"`
	Locator             string     `json:"locator,omitempty"`
	EscalationAvailable bool       `json:"escalation_available"`
	Stall               StallState `json:"stall,omitempty"`
}

// File is a photo handed to Submit. Body must yield Size bytes.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

type Options struct {
	ProgressStep     int
	ProgressInterval time.Duration
	ProgressCap      int
	StallAfter       time.Duration
	// RequestTimeout bounds the detached storage request.
	RequestTimeout time.Duration
	// CompensateOrphans deletes stored bytes when the record update fails.
	// When false the bytes are kept for manual recovery and never swept.
	CompensateOrphans bool
	KeyPrefix         string
	Now               func() time.Time
}

func DefaultOptions() Options {
	return Options{
		ProgressStep:      10,
		ProgressInterval:  300 * time.Millisecond,
		ProgressCap:       90,
		StallAfter:        30 * time.Second,
		RequestTimeout:    5 * time.Minute,
		CompensateOrphans: true,
		KeyPrefix:         "athlete-images",
		Now:               time.Now,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ProgressStep <= 0 {
		o.ProgressStep = d.ProgressStep
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = d.ProgressInterval
	}
	if o.ProgressCap <= 0 || o.ProgressCap >= 100 {
		o.ProgressCap = d.ProgressCap
	}
	if o.StallAfter <= 0 {
		o.StallAfter = d.StallAfter
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = d.RequestTimeout
	}
	if o.KeyPrefix == "" {
		o.KeyPrefix = d.KeyPrefix
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

// RecordStore points an athlete record at its stored photo.
type RecordStore interface {
	UpdateField(ctx context.Context, recordID, field, value string) error
}

// Journal records attempts for audit. It is never read to drive state.
type Journal interface {
	CreateUpload(ctx context.Context, u *roster.Upload) error
	UpdateUpload(ctx context.Context, u *roster.Upload) error
}

type attempt struct {
	id          string
	key         string
	ext         string
	contentType string
	stall       StallState
	escalated   bool
	// abandoned is set when a newer accepted file or Cancel replaces the
	// attempt. An abandoned attempt never writes the record.
	abandoned bool
	// cancel stops the progress and stall timers of this attempt.
	cancel context.CancelFunc
	stream chan Snapshot
	logger *slog.Logger

	// row is mutated under Control.mu; jmu orders journal writes.
	row *roster.Upload
	jmu sync.Mutex
}

// Control is the upload state of one athlete. It is safe for concurrent use.
type Control struct {
	subjectID string
	store     storage.Store
	records   RecordStore
	journal   Journal
	opts      Options
	logger    *slog.Logger

	// writeMu orders record writes, so a write that started before an
	// attempt was abandoned completes before the next attempt's write.
	writeMu sync.Mutex

	mu    sync.Mutex
	cur   *attempt
	state Snapshot
	subs  map[chan Snapshot]struct{}
}

func NewControl(subjectID string, store storage.Store, records RecordStore, journal Journal, opts Options, logger *slog.Logger) *Control {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Control{
		subjectID: subjectID,
		store:     store,
		records:   records,
		journal:   journal,
		opts:      opts.withDefaults(),
		logger:    logging.WithAthleteID(logging.WithComponent(logger, "upload"), subjectID),
		state:     Snapshot{Phase: PhaseIdle},
		subs:      make(map[chan Snapshot]struct{}),
	}
}

// Snapshot returns the current state.
func (c *Control) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submit validates f and, when accepted, starts a new attempt that replaces
// any previous one. The returned channel carries snapshots of this attempt and
// is closed after its terminal snapshot, or when the attempt is superseded or
// cancelled. Intermediate snapshots may be coalesced for slow readers.
//
// A rejected file yields a single Failed snapshot and no network call. It
// does not disturb an attempt that is still uploading, and an escalated
// attempt keeps its right to write the record.
func (c *Control) Submit(ctx context.Context, f File) <-chan Snapshot {
	stream := make(chan Snapshot, 1)

	if err := Validate(f.Name, f.Size); err != nil {
		snap := Snapshot{AttemptID: uuid.NewString(), Phase: PhaseFailed, Message: err.Error()}
		c.mu.Lock()
		if c.state.Phase != PhaseUploading {
			c.state = snap
			c.broadcastLocked()
		}
		c.mu.Unlock()
		c.logger.Info("upload rejected", "file_name", f.Name, "size", f.Size, "reason", err.Error())
		stream <- snap
		close(stream)
		return stream
	}

	ext := Extension(f.Name)
	now := c.opts.Now()
	id := uuid.NewString()
	a := &attempt{
		id:          id,
		key:         ObjectKey(c.opts.KeyPrefix, c.subjectID, id, now, ext),
		ext:         ext,
		contentType: ContentType(f.ContentType, ext),
		stall:       StallArmed,
		stream:      stream,
	}
	a.logger = logging.WithAttemptID(c.logger, a.id)
	a.row = &roster.Upload{
		ID:         a.id,
		AthleteID:  c.subjectID,
		StorageKey: a.key,
		FileName:   f.Name,
		Size:       f.Size,
		Phase:      roster.UploadUploading,
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}

	timerCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	c.mu.Lock()
	c.abandonLocked()
	c.cur = a
	c.state = Snapshot{
		AttemptID: a.id,
		Phase:     PhaseUploading,
		Progress:  0,
		Stall:     StallArmed,
	}
	c.publishLocked(a)
	c.mu.Unlock()

	a.logger.Info("upload started", "file_name", f.Name, "size", f.Size, "key", a.key)

	reqCtx := context.WithoutCancel(ctx)
	c.createJournal(reqCtx, a)

	go c.simulateProgress(timerCtx, a)
	go c.watchStall(timerCtx, a)
	go c.run(reqCtx, a, f)

	return stream
}

// Escalate moves a stalled attempt to AwaitingManualReview. It fails with
// ErrEscalationUnavailable unless the stall timer has fired and the attempt
// is still uploading.
func (c *Control) Escalate() (Snapshot, error) {
	c.mu.Lock()
	a := c.cur
	if a == nil || c.state.Phase != PhaseUploading || a.stall != StallFired || a.escalated {
		c.mu.Unlock()
		return Snapshot{}, ErrEscalationUnavailable
	}

	a.escalated = true
	a.cancel()
	c.state.Phase = PhaseAwaitingManualReview
	c.state.Message = EscalationMessage
	c.state.EscalationAvailable = false
	a.row.Phase = roster.UploadAwaitingManualReview
	a.row.Progress = c.state.Progress
	a.row.Message = EscalationMessage
	a.row.Escalated = true
	a.row.UpdatedAt = c.opts.Now().UTC()
	c.publishLocked(a)
	c.closeStreamLocked(a)
	snap := c.state
	c.mu.Unlock()

	a.logger.Warn("upload escalated for manual review", "progress", snap.Progress)
	c.saveJournal(a)
	return snap, nil
}

// Cancel abandons the current attempt and resets the control to Idle. An
// in-flight request keeps running and its outcome is discarded.
func (c *Control) Cancel() Snapshot {
	c.mu.Lock()
	a := c.cur
	abandoned := a != nil && c.state.Phase == PhaseUploading
	c.abandonLocked()
	c.state = Snapshot{Phase: PhaseIdle}
	c.broadcastLocked()
	snap := c.state
	c.mu.Unlock()

	if abandoned {
		a.logger.Info("upload cancelled")
	}
	return snap
}

// Subscribe returns a stream of state changes, starting with the current
// state. Slow readers only see the latest snapshot. The stop func must be
// called to release the subscription; it closes the channel.
func (c *Control) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	offer(ch, c.state)
	c.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			close(ch)
			c.mu.Unlock()
		})
	}
	return ch, stop
}

// abandonLocked stops the timers of the current attempt, ends its stream and
// discards its outcome.
func (c *Control) abandonLocked() {
	a := c.cur
	if a == nil {
		return
	}
	a.abandoned = true
	a.cancel()
	if a.stall == StallArmed {
		a.stall = StallCancelled
	}
	c.closeStreamLocked(a)
	c.cur = nil
}

// publishLocked sends the current state to the attempt stream and all
// subscribers.
func (c *Control) publishLocked(a *attempt) {
	if a != nil && a.stream != nil {
		offer(a.stream, c.state)
	}
	c.broadcastLocked()
}

func (c *Control) broadcastLocked() {
	for ch := range c.subs {
		offer(ch, c.state)
	}
}

func (c *Control) closeStreamLocked(a *attempt) {
	if a.stream != nil {
		close(a.stream)
		a.stream = nil
	}
}

// offer replaces any unread value in a one-slot channel with s. Only the
// holder of the owning control's lock sends, so the loop terminates.
func offer(ch chan Snapshot, s Snapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
