package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/masterstatus/internal/directory"
	"github.com/hamed0406/masterstatus/internal/repo"
)

// Rechecker re-runs fetch+scan on an interval and publishes every snapshot
// to its sinks. A failed fetch publishes nothing, so readers keep the
// previous snapshot.
type Rechecker struct {
	Logger *zap.Logger
	Sinks  []repo.SnapshotSink

	mu       sync.Mutex
	fetcher  directory.Fetcher
	scanner  *Scanner
	interval time.Duration
	wake     chan struct{}
}

func NewRechecker(
	logger *zap.Logger,
	fetcher directory.Fetcher,
	scanner *Scanner,
	interval time.Duration,
	sinks ...repo.SnapshotSink,
) *Rechecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval < 0 {
		interval = 0
	}
	return &Rechecker{
		Logger:   logger,
		Sinks:    sinks,
		fetcher:  fetcher,
		scanner:  scanner,
		interval: interval,
		wake:     make(chan struct{}, 1),
	}
}

// Reconfigure swaps the fetcher, scanner and interval used by the next pass.
// A pass already running finishes with the old settings.
func (r *Rechecker) Reconfigure(fetcher directory.Fetcher, scanner *Scanner, interval time.Duration) {
	if interval < 0 {
		interval = 0
	}
	r.mu.Lock()
	r.fetcher = fetcher
	r.scanner = scanner
	r.interval = interval
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
	r.Logger.Info("rechecker_reconfigured", zap.Duration("interval", interval))
}

func (r *Rechecker) settings() (directory.Fetcher, *Scanner, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetcher, r.scanner, r.interval
}

// Run starts the loop. It does an immediate pass, then runs each tick.
// An interval of 0 at startup disables the loop; a later Reconfigure to 0
// pauses it until the next Reconfigure. Stops when ctx is cancelled.
func (r *Rechecker) Run(ctx context.Context) {
	if _, _, every := r.settings(); every == 0 {
		// disabled
		r.Logger.Info("rechecker_disabled")
		return
	}

	// immediate pass
	r.RunOnce(ctx)

	for {
		_, _, every := r.settings()
		if every == 0 {
			r.Logger.Warn("rechecker_paused")
			select {
			case <-ctx.Done():
				r.Logger.Info("rechecker_stopped")
				return
			case <-r.wake:
			}
			if _, _, next := r.settings(); next > 0 {
				r.Logger.Info("rechecker_resumed", zap.Duration("interval", next))
				r.RunOnce(ctx)
			}
			continue
		}
		t := time.NewTimer(every)
		select {
		case <-ctx.Done():
			t.Stop()
			r.Logger.Info("rechecker_stopped")
			return
		case <-r.wake:
			t.Stop()
		case <-t.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single fetch+scan and publishes the result.
// It reports whether a snapshot was published.
func (r *Rechecker) RunOnce(ctx context.Context) bool {
	fetcher, scanner, _ := r.settings()

	snap, err := RunOnce(ctx, fetcher, scanner)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false
		}
		r.Logger.Warn("rechecker_fetch_failed",
			zap.Error(err),
			zap.Bool("directory_failure", errors.Is(err, directory.ErrFetchFailure)),
		)
		return false
	}

	for _, s := range r.Sinks {
		if err := s.Publish(ctx, snap); err != nil {
			r.Logger.Warn("rechecker_publish_error", zap.Error(err))
		}
	}
	return true
}
