package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/masterstatus/internal/config"
	"github.com/hamed0406/masterstatus/internal/domain"
)

// CheckResult is the outcome of a single probe.
//
// Fields:
//   - Up: the only value that reaches the snapshot.
//   - Reason, LatencyMS: diagnostics for logs.
type CheckResult struct {
	Protocol  domain.Protocol
	Up        bool
	LatencyMS float64
	Reason    string
}

// Checker tests one protocol against one address. Implementations never
// return errors: every failure is reported as Up=false.
type Checker interface {
	Protocol() domain.Protocol
	Timeout() time.Duration
	Check(ctx context.Context, address string) CheckResult
}

// FromConfig builds one checker per enabled protocol.
func FromConfig(cfg config.Config, log *zap.Logger) ([]Checker, error) {
	var out []Checker
	for _, p := range cfg.EnabledProtocols() {
		switch p {
		case domain.ProtocolTCP:
			out = append(out, NewTCPChecker(cfg.TCPPort, cfg.TCPTimeout))
		case domain.ProtocolHTTP:
			out = append(out, NewHTTPChecker(HTTPOptions{
				Scheme:    cfg.HTTPScheme,
				Path:      cfg.HTTPPath,
				Timeout:   cfg.HTTPTimeout,
				VerifyTLS: cfg.VerifyTLS,
			}))
		case domain.ProtocolICMP:
			out = append(out, NewICMPChecker(cfg.ICMPTimeout, cfg.ICMPPrivileged, log))
		default:
			return nil, fmt.Errorf("no checker for protocol %q", p)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no protocols enabled")
	}
	return out, nil
}

func since(start time.Time) float64 {
	return time.Since(start).Seconds() * 1000
}

// reason condenses a network error into a short, stable label for logs.
func reason(ctx context.Context, err error) string {
	var dnsErr *net.DNSError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), os.IsTimeout(err):
		return "timeout"
	case errors.Is(ctx.Err(), context.Canceled):
		return "canceled"
	case errors.As(err, &dnsErr):
		return "dns_error"
	case errors.Is(err, os.ErrPermission):
		return "permission_denied"
	case strings.Contains(err.Error(), "connection refused"):
		return "connection_refused"
	}
	return err.Error()
}
