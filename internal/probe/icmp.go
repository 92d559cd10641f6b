package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/hamed0406/masterstatus/internal/domain"
)

const (
	protocolICMPv4 = 1
	protocolICMPv6 = 58
)

var echoPayload = []byte("masterstatus")

// ICMPChecker sends one echo request per check.
//
// Privileged selects a raw socket (ip4:icmp); otherwise a datagram ICMP
// socket (udp4) is used, which Linux allows for groups listed in
// net.ipv4.ping_group_range and macOS allows for everyone.
type ICMPChecker struct {
	privileged bool
	timeout    time.Duration
	resolver   *net.Resolver
	log        *zap.Logger

	// listen opens the ICMP socket; icmp.ListenPacket unless replaced in tests.
	listen func(network, address string) (*icmp.PacketConn, error)

	seq      atomic.Uint32
	permOnce sync.Once
}

func NewICMPChecker(timeout time.Duration, privileged bool, log *zap.Logger) *ICMPChecker {
	if log == nil {
		log = zap.NewNop()
	}
	return &ICMPChecker{
		privileged: privileged,
		timeout:    timeout,
		resolver:   net.DefaultResolver,
		log:        log,
		listen:     icmp.ListenPacket,
	}
}

func (c *ICMPChecker) Protocol() domain.Protocol { return domain.ProtocolICMP }
func (c *ICMPChecker) Timeout() time.Duration    { return c.timeout }

func (c *ICMPChecker) Check(ctx context.Context, address string) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	ip, err := c.resolve(ctx, address)
	if err != nil {
		return CheckResult{Protocol: domain.ProtocolICMP, LatencyMS: since(start), Reason: reason(ctx, err)}
	}

	err = c.echo(ctx, ip)
	latency := since(start)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			c.permOnce.Do(func() {
				c.log.Warn("icmp_permission_denied",
					zap.Bool("privileged", c.privileged),
					zap.Error(err),
				)
			})
		}
		return CheckResult{Protocol: domain.ProtocolICMP, LatencyMS: latency, Reason: reason(ctx, err)}
	}
	return CheckResult{Protocol: domain.ProtocolICMP, Up: true, LatencyMS: latency, Reason: "echo_reply"}
}

// resolve prefers an IPv4 address.
func (c *ICMPChecker) resolve(ctx context.Context, address string) (net.IP, error) {
	if ip := net.ParseIP(address); ip != nil {
		return ip, nil
	}
	addrs, err := c.resolver.LookupIPAddr(ctx, address)
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		if a.IP.To4() != nil {
			return a.IP, nil
		}
	}
	if len(addrs) > 0 {
		return addrs[0].IP, nil
	}
	return nil, &net.DNSError{Err: "no addresses", Name: address, IsNotFound: true}
}

func (c *ICMPChecker) network(v4 bool) (network, listen string) {
	switch {
	case v4 && c.privileged:
		return "ip4:icmp", "0.0.0.0"
	case v4:
		return "udp4", "0.0.0.0"
	case c.privileged:
		return "ip6:ipv6-icmp", "::"
	default:
		return "udp6", "::"
	}
}

func (c *ICMPChecker) echo(ctx context.Context, ip net.IP) error {
	v4 := ip.To4() != nil
	network, listen := c.network(v4)

	conn, err := c.listen(network, listen)
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()
	if dl, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(dl); err != nil {
			return err
		}
	}

	id := os.Getpid() & 0xffff
	seq := int(c.seq.Add(1) & 0xffff)
	msg := icmp.Message{
		Code: 0,
		Body: &icmp.Echo{ID: id, Seq: seq, Data: echoPayload},
	}
	proto := protocolICMPv4
	if v4 {
		msg.Type = ipv4.ICMPTypeEcho
	} else {
		msg.Type = ipv6.ICMPTypeEchoRequest
		proto = protocolICMPv6
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return err
	}

	var dst net.Addr = &net.IPAddr{IP: ip}
	if !c.privileged {
		dst = &net.UDPAddr{IP: ip}
	}
	if _, err := conn.WriteTo(wb, dst); err != nil {
		return err
	}

	rb := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(rb)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if !samePeer(peer, ip) {
			continue
		}
		rm, err := icmp.ParseMessage(proto, rb[:n])
		if err != nil {
			continue
		}
		if rm.Type != ipv4.ICMPTypeEchoReply && rm.Type != ipv6.ICMPTypeEchoReply {
			continue
		}
		body, ok := rm.Body.(*icmp.Echo)
		// datagram sockets rewrite the identifier, so only raw sockets compare it
		if ok && body.Seq == seq && (!c.privileged || body.ID == id) {
			return nil
		}
	}
}

func samePeer(peer net.Addr, ip net.IP) bool {
	switch a := peer.(type) {
	case *net.IPAddr:
		return a.IP.Equal(ip)
	case *net.UDPAddr:
		return a.IP.Equal(ip)
	}
	return false
}
