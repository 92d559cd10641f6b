package probe

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hamed0406/masterstatus/internal/config"
	"github.com/hamed0406/masterstatus/internal/domain"
)

// fakeChecker returns a fixed verdict after an optional delay.
type fakeChecker struct {
	protocol domain.Protocol
	up       bool
	delay    time.Duration
	timeout  time.Duration
	panics   bool
	ignore   bool // ignore ctx and block for delay regardless
	calls    atomic.Int32
}

func (f *fakeChecker) Protocol() domain.Protocol { return f.protocol }

func (f *fakeChecker) Timeout() time.Duration {
	if f.timeout == 0 {
		return time.Second
	}
	return f.timeout
}

func (f *fakeChecker) Check(ctx context.Context, _ string) CheckResult {
	f.calls.Add(1)
	if f.panics {
		panic("probe exploded")
	}
	if f.delay > 0 {
		if f.ignore {
			time.Sleep(f.delay)
		} else {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return CheckResult{Protocol: f.protocol, Reason: "ctx"}
			}
		}
	}
	return CheckResult{Protocol: f.protocol, Up: f.up}
}

var srv = domain.ServerDescriptor{ID: "1", Country: "US", Address: "a.example"}

func TestMultiChecker_OneResultPerProtocol(t *testing.T) {
	m, err := NewMultiChecker(zap.NewNop(),
		&fakeChecker{protocol: domain.ProtocolTCP, up: true},
		&fakeChecker{protocol: domain.ProtocolHTTP, up: false},
		&fakeChecker{protocol: domain.ProtocolICMP, up: true},
	)
	if err != nil {
		t.Fatal(err)
	}

	st := m.Run(context.Background(), srv)
	if len(st.Results) != 3 {
		t.Fatalf("want 3 results, got %+v", st.Results)
	}
	if !st.Up(domain.ProtocolTCP) || st.Up(domain.ProtocolHTTP) || !st.Up(domain.ProtocolICMP) {
		t.Fatalf("verdicts mixed up: %+v", st.Results)
	}
	if st.Server != srv {
		t.Fatalf("descriptor not carried: %+v", st.Server)
	}
}

func TestMultiChecker_RejectsDuplicatesAndEmpty(t *testing.T) {
	if _, err := NewMultiChecker(nil); err == nil {
		t.Fatalf("want error for no checkers")
	}
	_, err := NewMultiChecker(nil,
		&fakeChecker{protocol: domain.ProtocolTCP},
		&fakeChecker{protocol: domain.ProtocolTCP},
	)
	if err == nil {
		t.Fatalf("want error for duplicate protocol")
	}
}

func TestMultiChecker_PanicIsIsolated(t *testing.T) {
	m, _ := NewMultiChecker(zap.NewNop(),
		&fakeChecker{protocol: domain.ProtocolTCP, panics: true},
		&fakeChecker{protocol: domain.ProtocolHTTP, up: true},
		&fakeChecker{protocol: domain.ProtocolICMP, up: true},
	)

	st := m.Run(context.Background(), srv)
	if st.Up(domain.ProtocolTCP) {
		t.Fatalf("panicking probe must be down")
	}
	if !st.Up(domain.ProtocolHTTP) || !st.Up(domain.ProtocolICMP) {
		t.Fatalf("other probes must keep their verdicts: %+v", st.Results)
	}
}

func TestMultiChecker_HungProbeBoundedByTimeout(t *testing.T) {
	hung := &fakeChecker{protocol: domain.ProtocolICMP, up: true, delay: 5 * time.Second, ignore: true, timeout: 100 * time.Millisecond}
	m, _ := NewMultiChecker(zap.NewNop(),
		&fakeChecker{protocol: domain.ProtocolTCP, up: true},
		&fakeChecker{protocol: domain.ProtocolHTTP, up: true},
		hung,
	)

	start := time.Now()
	st := m.Run(context.Background(), srv)
	elapsed := time.Since(start)

	if elapsed > 500*time.Millisecond {
		t.Fatalf("hung probe delayed the status: %v", elapsed)
	}
	if st.Up(domain.ProtocolICMP) {
		t.Fatalf("timed-out probe must be down")
	}
	if !st.Up(domain.ProtocolTCP) || !st.Up(domain.ProtocolHTTP) {
		t.Fatalf("fast probes lost their verdicts: %+v", st.Results)
	}
}

func TestMultiChecker_DNSDiagnosisDoesNotDelayStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	hang := func(p domain.Protocol) *fakeChecker {
		return &fakeChecker{protocol: p, up: true, delay: 5 * time.Second, ignore: true, timeout: 100 * time.Millisecond}
	}
	m, _ := NewMultiChecker(zap.New(core),
		hang(domain.ProtocolTCP), hang(domain.ProtocolHTTP), hang(domain.ProtocolICMP))
	m.DiagnoseDNS = true
	// DNS server that never answers
	m.Resolver = &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, _, _ string) (net.Conn, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	start := time.Now()
	st := m.Run(context.Background(), domain.ServerDescriptor{ID: "9", Address: "dead.example"})
	elapsed := time.Since(start)

	if elapsed > 500*time.Millisecond {
		t.Fatalf("status waited for DNS diagnosis: %v", elapsed)
	}
	if !st.AllDown() {
		t.Fatalf("want all down: %+v", st.Results)
	}

	deadline := time.Now().Add(4 * time.Second)
	for logs.FilterMessage("server_unreachable").Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("diagnosis never logged")
		}
		time.Sleep(20 * time.Millisecond)
	}
	entry := logs.FilterMessage("server_unreachable").All()[0]
	if _, ok := entry.ContextMap()["dns_class"]; !ok {
		t.Fatalf("diagnosis missing dns_class: %v", entry.ContextMap())
	}
}

func TestMultiChecker_ProbesRunConcurrently(t *testing.T) {
	d := 150 * time.Millisecond
	m, _ := NewMultiChecker(zap.NewNop(),
		&fakeChecker{protocol: domain.ProtocolTCP, up: true, delay: d},
		&fakeChecker{protocol: domain.ProtocolHTTP, up: true, delay: d},
		&fakeChecker{protocol: domain.ProtocolICMP, up: true, delay: d},
	)

	start := time.Now()
	st := m.Run(context.Background(), srv)
	if elapsed := time.Since(start); elapsed >= 3*d {
		t.Fatalf("probes ran sequentially: %v", elapsed)
	}
	if !st.AllUp() {
		t.Fatalf("want all up: %+v", st.Results)
	}
}

func TestMultiChecker_CancelledContextSkipsProbes(t *testing.T) {
	tcp := &fakeChecker{protocol: domain.ProtocolTCP, up: true}
	m, _ := NewMultiChecker(zap.NewNop(), tcp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st := m.Run(ctx, srv)
	if st.Up(domain.ProtocolTCP) {
		t.Fatalf("cancelled run must report down")
	}
	if tcp.calls.Load() != 0 {
		t.Fatalf("probe ran after cancellation")
	}
}

func TestFromConfig_BuildsEnabledProtocols(t *testing.T) {
	cfg := mustConfig(t, "tcp,icmp")
	checkers, err := FromConfig(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if len(checkers) != 2 || checkers[0].Protocol() != domain.ProtocolTCP || checkers[1].Protocol() != domain.ProtocolICMP {
		t.Fatalf("unexpected checkers: %v", checkers)
	}
	if checkers[0].(*TCPChecker).Port != 50180 {
		t.Fatalf("tcp port not taken from config")
	}
}

func mustConfig(t *testing.T, protocols string) config.Config {
	t.Helper()
	t.Setenv("PROTOCOLS", protocols)
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}
