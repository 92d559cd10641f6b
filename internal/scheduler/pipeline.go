package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/masterstatus/internal/config"
	"github.com/hamed0406/masterstatus/internal/directory"
	"github.com/hamed0406/masterstatus/internal/domain"
	"github.com/hamed0406/masterstatus/internal/probe"
)

// RunOnce fetches the directory and scans it. A fetch error is returned as
// is (it wraps directory.ErrFetchFailure) and no scan is started.
func RunOnce(ctx context.Context, f directory.Fetcher, s *Scanner) (domain.Snapshot, error) {
	servers, err := f.Fetch(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return s.Scan(ctx, servers), nil
}

// FromConfig wires the directory fetcher and scanner described by cfg.
func FromConfig(cfg config.Config, log *zap.Logger) (*directory.HTTPFetcher, *Scanner, error) {
	checkers, err := probe.FromConfig(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("probes: %w", err)
	}
	mc, err := probe.NewMultiChecker(log, checkers...)
	if err != nil {
		return nil, nil, err
	}
	mc.DiagnoseDNS = true

	fetcher := directory.NewHTTPFetcher(cfg.DirectoryURL, cfg.DirectoryTimeout, log)
	return fetcher, NewScanner(log, mc, cfg.MaxConcurrentServers, cfg.ScanDeadline), nil
}
