package upload

import (
	"log/slog"
	"sync"

	"github.com/courtside/roster/internal/storage"
)

// Registry hands out one Control per athlete.
type Registry struct {
	store   storage.Store
	records RecordStore
	journal Journal
	opts    Options
	logger  *slog.Logger

	mu       sync.Mutex
	controls map[string]*Control
}

func NewRegistry(store storage.Store, records RecordStore, journal Journal, opts Options, logger *slog.Logger) *Registry {
	return &Registry{
		store:    store,
		records:  records,
		journal:  journal,
		opts:     opts,
		logger:   logger,
		controls: make(map[string]*Control),
	}
}

// Control returns the control for athleteID, creating it on first use.
func (r *Registry) Control(athleteID string) *Control {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.controls[athleteID]
	if !ok {
		c = NewControl(athleteID, r.store, r.records, r.journal, r.opts, r.logger)
		r.controls[athleteID] = c
	}
	return c
}

// Lookup returns the control for athleteID without creating one.
func (r *Registry) Lookup(athleteID string) (*Control, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.controls[athleteID]
	return c, ok
}

// CancelAll resets every control to Idle. Used on shutdown.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	controls := make([]*Control, 0, len(r.controls))
	for _, c := range r.controls {
		controls = append(controls, c)
	}
	r.mu.Unlock()

	for _, c := range controls {
		c.Cancel()
	}
}
