// Package poller keeps an open job detail view in sync with the backend.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sumire/jobconsole/internal/domain"
)

// DefaultInterval is the pause between two execution refreshes.
const DefaultInterval = 5 * time.Second

// Loader defines the fetches performed for a detail view.
type Loader interface {
	LoadExecutions(ctx context.Context, jobID string) error
	LoadSchedules(ctx context.Context, jobID string) error
	LoadConfig(ctx context.Context, jobID string) (domain.JobConfig, error)
	RefreshExecutions(ctx context.Context, jobID string) error
}

// Refresher polls the executions of the job shown in a detail view. One
// Refresher serves one view: opening another job stops the previous loop.
type Refresher struct {
	loader   Loader
	interval time.Duration

	mu     sync.Mutex
	jobID  string
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new Refresher.
func New(loader Loader, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Refresher{loader: loader, interval: interval}
}

// Open starts polling jobID, stopping any loop for another job first.
// Opening the job already being polled does nothing.
func (r *Refresher) Open(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done != nil && r.jobID == jobID {
		return
	}
	r.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.jobID = jobID
	r.cancel = cancel
	r.done = done

	slog.Debug("polling started", "job_id", jobID, "interval", r.interval)
	go r.run(ctx, jobID, done)
}

// Close stops polling. When Close returns no further fetch result will be
// merged for the closed view.
func (r *Refresher) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

// JobID returns the job being polled, or "" when closed.
func (r *Refresher) JobID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobID
}

func (r *Refresher) stopLocked() {
	if r.done == nil {
		return
	}
	r.cancel()
	<-r.done
	slog.Debug("polling stopped", "job_id", r.jobID)

	r.jobID = ""
	r.cancel = nil
	r.done = nil
}

func (r *Refresher) run(ctx context.Context, jobID string, done chan struct{}) {
	defer close(done)

	r.initial(ctx, jobID)

	// The timer is re-armed only after a refresh settles, so a slow backend
	// never sees overlapping polls.
	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := r.loader.RefreshExecutions(ctx, jobID); err != nil && ctx.Err() == nil {
				slog.Debug("poll failed", "job_id", jobID, "error", err)
			}
			timer.Reset(r.interval)
		}
	}
}

// initial runs the three independent first fetches concurrently. A failure
// of one does not cancel the others.
func (r *Refresher) initial(ctx context.Context, jobID string) {
	var g errgroup.Group
	g.Go(func() error { return r.loader.LoadExecutions(ctx, jobID) })
	g.Go(func() error { return r.loader.LoadSchedules(ctx, jobID) })
	g.Go(func() error {
		_, err := r.loader.LoadConfig(ctx, jobID)
		return err
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		slog.Warn("initial load failed", "job_id", jobID, "error", err)
	}
}
