package probe

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/hamed0406/masterstatus/internal/domain"
)

type TCPChecker struct {
	Port    int
	timeout time.Duration
	dialer  net.Dialer
}

func NewTCPChecker(port int, timeout time.Duration) *TCPChecker {
	return &TCPChecker{Port: port, timeout: timeout}
}

func (c *TCPChecker) Protocol() domain.Protocol { return domain.ProtocolTCP }
func (c *TCPChecker) Timeout() time.Duration    { return c.timeout }

// Check reports whether a TCP handshake with address:Port completes in time.
func (c *TCPChecker) Check(ctx context.Context, address string) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	conn, err := c.dialer.DialContext(ctx, "tcp", net.JoinHostPort(address, strconv.Itoa(c.Port)))
	latency := since(start)
	if err != nil {
		return CheckResult{Protocol: domain.ProtocolTCP, LatencyMS: latency, Reason: reason(ctx, err)}
	}
	defer conn.Close()

	return CheckResult{Protocol: domain.ProtocolTCP, Up: true, LatencyMS: latency, Reason: "connected"}
}
