package upload

import (
	"context"
	"time"
)

// watchStall arms the stall deadline for a. When it elapses while a is still
// the uploading attempt, the stall fires and escalation becomes available.
// The phase is left unchanged.
func (c *Control) watchStall(ctx context.Context, a *attempt) {
	timer := time.NewTimer(c.opts.StallAfter)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	c.mu.Lock()
	if c.cur != a || c.state.Phase != PhaseUploading || a.stall != StallArmed {
		c.mu.Unlock()
		return
	}
	a.stall = StallFired
	c.state.Stall = StallFired
	c.state.EscalationAvailable = true
	c.publishLocked(a)
	progress := c.state.Progress
	c.mu.Unlock()

	a.logger.Warn("upload stalled, escalation available", "after", c.opts.StallAfter, "progress", progress)
}
