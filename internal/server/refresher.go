package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/colthorp/ordo-cli-go/internal/cache"
	appLog "github.com/colthorp/ordo-cli-go/internal/log"
)

// refreshTimeout bounds one refresh run.
const refreshTimeout = 5 * time.Minute

// Refresher periodically purges expired years and re-warms the current year
// and its neighbours on a cron schedule.
type Refresher struct {
	manager  *cache.Manager
	spec     string
	parallel int
	now      func() time.Time

	cron *cron.Cron
	mu   sync.Mutex
	runs int
}

// NewRefresher validates spec (standard 5-field cron) and creates a refresher.
func NewRefresher(manager *cache.Manager, spec string, parallel int) (*Refresher, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return &Refresher{
		manager:  manager,
		spec:     spec,
		parallel: parallel,
		now:      time.Now,
	}, nil
}

// Start schedules refresh runs. Calling Start twice is a no-op.
func (r *Refresher) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(r.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := r.RunOnce(ctx); err != nil {
			appLog.Warn("refresh failed", "err", err)
		}
	})
	if err != nil {
		appLog.Error("refresher not scheduled", err, "schedule", r.spec)
		return fmt.Errorf("schedule refresh %q: %w", r.spec, err)
	}
	c.Start()
	r.cron = c
	appLog.Info("refresher started", "schedule", r.spec)
	return nil
}

// Stop halts scheduling and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	appLog.Info("refresher stopped")
}

// RunOnce purges expired entries and prefetches the years around today.
func (r *Refresher) RunOnce(ctx context.Context) error {
	purged := r.manager.Purge()
	year := r.now().Year()
	err := r.manager.Prefetch(ctx, []int{year - 1, year, year + 1}, r.parallel)

	r.mu.Lock()
	r.runs++
	r.mu.Unlock()

	appLog.Info("refresh complete", "purged", purged, "year", year)
	return err
}

// Runs returns how many refreshes have completed.
func (r *Refresher) Runs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}
