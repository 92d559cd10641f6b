package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/masterstatus/internal/domain"
)

// dnsDiagTimeout bounds the DNS classification logged for dead servers.
const dnsDiagTimeout = 2 * time.Second

// MultiChecker runs every configured checker against one server at once and
// merges the verdicts into a ServerStatus.
type MultiChecker struct {
	Checkers []Checker
	Logger   *zap.Logger

	// DiagnoseDNS logs a DNS classification when every probe of a server fails.
	DiagnoseDNS bool
	Resolver    *net.Resolver

	protocols []domain.Protocol
}

func NewMultiChecker(logger *zap.Logger, checkers ...Checker) (*MultiChecker, error) {
	if len(checkers) == 0 {
		return nil, errors.New("multichecker: no checkers")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	seen := make(map[domain.Protocol]bool, len(checkers))
	protocols := make([]domain.Protocol, 0, len(checkers))
	for _, c := range checkers {
		p := c.Protocol()
		if seen[p] {
			return nil, fmt.Errorf("multichecker: duplicate checker for %s", p)
		}
		seen[p] = true
		protocols = append(protocols, p)
	}
	return &MultiChecker{Checkers: checkers, Logger: logger, protocols: protocols}, nil
}

// Protocols lists the protocols every returned status carries, in checker order.
func (m *MultiChecker) Protocols() []domain.Protocol {
	return append([]domain.Protocol(nil), m.protocols...)
}

// Run probes one server. It returns once every checker has answered or hit
// its own timeout; a cancelled ctx makes the remaining probes report down.
func (m *MultiChecker) Run(ctx context.Context, srv domain.ServerDescriptor) domain.ServerStatus {
	results := make(chan CheckResult, len(m.Checkers))
	for _, c := range m.Checkers {
		go func(c Checker) {
			results <- m.runOne(ctx, c, srv.Address)
		}(c)
	}

	verdicts := make([]domain.ProbeResult, 0, len(m.Checkers))
	for range m.Checkers {
		r := <-results
		verdicts = append(verdicts, domain.ProbeResult{Protocol: r.Protocol, Up: r.Up})
		m.Logger.Debug("probe_checked",
			zap.String("server_id", srv.ID),
			zap.String("address", srv.Address),
			zap.String("protocol", string(r.Protocol)),
			zap.Bool("up", r.Up),
			zap.Float64("latency_ms", r.LatencyMS),
			zap.String("reason", r.Reason),
		)
	}

	st := domain.NewServerStatus(srv, m.protocols, verdicts)
	if st.AllDown() {
		m.logDown(ctx, srv)
	}
	return st
}

// runOne enforces the checker's timeout from the outside, so a checker that
// ignores its context cannot hold up the server's status.
func (m *MultiChecker) runOne(ctx context.Context, c Checker, address string) CheckResult {
	p := c.Protocol()
	if ctx.Err() != nil {
		return CheckResult{Protocol: p, Reason: reason(ctx, ctx.Err())}
	}
	pctx, cancel := context.WithTimeout(ctx, c.Timeout())
	defer cancel()

	done := make(chan CheckResult, 1)
	start := time.Now()
	go func() {
		defer func() {
			if v := recover(); v != nil {
				done <- CheckResult{Protocol: p, Reason: fmt.Sprintf("panic: %v", v)}
			}
		}()
		r := c.Check(pctx, address)
		r.Protocol = p
		done <- r
	}()

	select {
	case r := <-done:
		return r
	case <-pctx.Done():
		return CheckResult{Protocol: p, LatencyMS: since(start), Reason: reason(pctx, pctx.Err())}
	}
}

// logDown reports a server whose probes all failed. The DNS classification
// runs in the background on a context detached from the scan, so it never
// delays the status.
func (m *MultiChecker) logDown(ctx context.Context, srv domain.ServerDescriptor) {
	fields := []zap.Field{
		zap.String("server_id", srv.ID),
		zap.String("country", srv.Country),
		zap.String("address", srv.Address),
	}
	if !m.DiagnoseDNS || ctx.Err() != nil {
		m.Logger.Info("server_unreachable", fields...)
		return
	}
	go func() {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dnsDiagTimeout)
		defer cancel()
		dns := ClassifyDNS(dctx, m.Resolver, srv.Address)
		m.Logger.Info("server_unreachable", append(fields,
			zap.String("dns_class", dns.Class),
			zap.String("cname", dns.CNAME),
			zap.Strings("nameservers", dns.Nameservers),
			zap.String("resolver_error", dns.ResolverError),
		)...)
	}()
}
