package upload

import (
	"context"
	"time"
)

// simulateProgress raises the displayed progress by a fixed step every
// interval until the cap. It never reports completion and exits as soon as
// the attempt stops uploading or is replaced.
func (c *Control) simulateProgress(ctx context.Context, a *attempt) {
	ticker := time.NewTicker(c.opts.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if c.cur != a || c.state.Phase != PhaseUploading {
			c.mu.Unlock()
			return
		}
		next := min(c.state.Progress+c.opts.ProgressStep, c.opts.ProgressCap)
		if next > c.state.Progress {
			c.state.Progress = next
			c.publishLocked(a)
		}
		capped := c.state.Progress >= c.opts.ProgressCap
		c.mu.Unlock()

		if capped {
			return
		}
	}
}
