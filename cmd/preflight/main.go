// cmd/preflight/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/hamed0406/masterstatus/internal/config"
	"github.com/hamed0406/masterstatus/internal/directory"
	"github.com/hamed0406/masterstatus/internal/domain"
	"github.com/hamed0406/masterstatus/internal/probe"
)

func main() {
	cfgPath := pflag.StringP("config", "c", os.Getenv("MASTERSTATUS_CONFIG"), "optional YAML config file")
	skipFetch := pflag.Bool("offline", false, "skip the directory fetch check")
	pflag.Parse()

	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fail(err.Error())
	}
	ok(fmt.Sprintf("config valid (protocols=%v, concurrency=%d)", cfg.Protocols, cfg.MaxConcurrentServers))

	if !cfg.VerifyTLS {
		warn("VERIFY_TLS=false; certificate errors will not mark servers down.")
	}
	if cfg.HTTPScheme == "http" {
		ok("HTTP probe uses plaintext http://<address>" + cfg.HTTPPath)
	}

	// Output dir must be writable for the report files.
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		fail("OUTPUT_DIR not usable: " + err.Error())
	}
	f, err := os.CreateTemp(cfg.OutputDir, ".preflight-*")
	if err != nil {
		fail("OUTPUT_DIR not writable: " + err.Error())
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	abs, _ := filepath.Abs(cfg.OutputDir)
	ok("OUTPUT_DIR writable: " + abs)

	for _, p := range cfg.EnabledProtocols() {
		if p != domain.ProtocolICMP {
			continue
		}
		chk := probe.NewICMPChecker(cfg.ICMPTimeout, cfg.ICMPPrivileged, zap.NewNop())
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ICMPTimeout)
		res := chk.Check(ctx, "127.0.0.1")
		cancel()
		switch {
		case res.Up:
			ok(fmt.Sprintf("ICMP sockets available (privileged=%v)", cfg.ICMPPrivileged))
		case res.Reason == "permission_denied":
			warn("ICMP socket not permitted; every ICMP column will be down. " +
				"Allow unprivileged ping (net.ipv4.ping_group_range) or set ICMP_PRIVILEGED with CAP_NET_RAW.")
		default:
			warn("ICMP loopback check failed: " + res.Reason)
		}
	}

	if *skipFetch {
		warn("directory fetch skipped (--offline)")
	} else {
		fetcher := directory.NewHTTPFetcher(cfg.DirectoryURL, cfg.DirectoryTimeout, zap.NewNop())
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DirectoryTimeout+time.Second)
		servers, err := fetcher.Fetch(ctx)
		cancel()
		if err != nil {
			fail(err.Error())
		}
		if len(servers) == 0 {
			warn("directory returned no servers")
		} else {
			ok(fmt.Sprintf("directory reachable: %d servers", len(servers)))
		}
	}

	ok("preflight passed")
}
