package blob

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor periodically sweeps idle objects out of a Registry.
type Janitor struct {
	cron     *cron.Cron
	registry *Registry
	maxAge   time.Duration
}

// NewJanitor schedules a sweep every maxAge/2 (at least once a second).
func NewJanitor(registry *Registry, maxAge time.Duration) (*Janitor, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("blob max age must be positive, got %s", maxAge)
	}

	interval := max(maxAge/2, time.Second)
	j := &Janitor{
		cron:     cron.New(),
		registry: registry,
		maxAge:   maxAge,
	}
	if _, err := j.cron.AddFunc(fmt.Sprintf("@every %s", interval), j.Run); err != nil {
		return nil, fmt.Errorf("schedule blob sweep: %w", err)
	}
	return j, nil
}

// Run performs one sweep.
func (j *Janitor) Run() {
	if n := j.registry.Sweep(j.maxAge); n > 0 {
		slog.Debug("released idle blobs", "count", n, "max_age", j.maxAge)
	}
}

func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts scheduling and waits for a running sweep, or for ctx.
func (j *Janitor) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
