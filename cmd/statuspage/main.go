// cmd/statuspage/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/hamed0406/masterstatus/internal/config"
	"github.com/hamed0406/masterstatus/internal/directory"
	"github.com/hamed0406/masterstatus/internal/logging"
	"github.com/hamed0406/masterstatus/internal/report"
	"github.com/hamed0406/masterstatus/internal/scheduler"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := pflag.StringP("config", "c", os.Getenv("MASTERSTATUS_CONFIG"), "optional YAML config file")
	pflag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	formats, err := report.ParseFormats(cfg.OutputFormats)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger, err := logging.NewLogger(logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel, Console: cfg.LogConsole})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	fetcher, scanner, err := scheduler.FromConfig(cfg, logger)
	if err != nil {
		logger.Error("setup_failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snap, err := scheduler.RunOnce(ctx, fetcher, scanner)
	if err != nil {
		logger.Error("directory_fetch_failed", zap.String("url", cfg.DirectoryURL), zap.Error(err))
		if errors.Is(err, directory.ErrFetchFailure) {
			fmt.Fprintf(os.Stderr, "could not load the server list from %s: %v\n", cfg.DirectoryURL, err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}

	opts := report.Options{Title: cfg.ReportTitle, TCPPort: cfg.TCPPort}
	if err := report.WriteFiles(cfg.OutputDir, formats, snap, opts); err != nil {
		logger.Error("report_write_failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	sum := snap.Summary()
	for _, f := range formats {
		fmt.Printf("written %s/%s\n", cfg.OutputDir, report.Formats[f])
	}
	fmt.Printf("%d servers checked, %d all up, %d all down\n", sum.Servers, sum.AllUp, sum.AllDown)
	return 0
}
