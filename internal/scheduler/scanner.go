package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/masterstatus/internal/domain"
)

// ServerChecker probes one server on every configured protocol.
type ServerChecker interface {
	Protocols() []domain.Protocol
	Run(ctx context.Context, srv domain.ServerDescriptor) domain.ServerStatus
}

type Scanner struct {
	Logger      *zap.Logger
	Checker     ServerChecker
	Concurrency int           // max servers checked at once
	Deadline    time.Duration // overall scan deadline; 0 disables

	now func() time.Time
}

func NewScanner(logger *zap.Logger, checker ServerChecker, concurrency int, deadline time.Duration) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if deadline < 0 {
		deadline = 0
	}
	return &Scanner{
		Logger:      logger,
		Checker:     checker,
		Concurrency: concurrency,
		Deadline:    deadline,
		now:         time.Now,
	}
}

// Scan checks every server and returns a snapshot with one status per
// server, in input order. It always returns a complete snapshot: servers
// still pending when the deadline hits are reported down.
func (s *Scanner) Scan(ctx context.Context, servers []domain.ServerDescriptor) domain.Snapshot {
	log := s.Logger.With(zap.String("scan_id", uuid.NewString()))
	start := time.Now()
	log.Info("scan_started",
		zap.Int("servers", len(servers)),
		zap.Duration("deadline", s.Deadline),
	)

	if s.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Deadline)
		defer cancel()
	}

	statuses := make([]domain.ServerStatus, len(servers))

	// One pool per scan, shared by all servers.
	var g errgroup.Group
	g.SetLimit(s.Concurrency)
	for i, srv := range servers {
		i, srv := i, srv
		g.Go(func() error {
			statuses[i] = s.Checker.Run(ctx, srv)
			return nil
		})
	}
	_ = g.Wait()

	snap := domain.Snapshot{
		GeneratedAt: s.now().UTC(),
		Protocols:   s.Checker.Protocols(),
		Statuses:    statuses,
	}

	sum := snap.Summary()
	log.Info("scan_complete",
		zap.Int("servers", sum.Servers),
		zap.Int("all_up", sum.AllUp),
		zap.Int("all_down", sum.AllDown),
		zap.Int("concurrency", s.Concurrency),
		zap.Bool("deadline_hit", ctx.Err() != nil),
		zap.Duration("took", time.Since(start)),
	)
	return snap
}
