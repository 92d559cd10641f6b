package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/masterstatus/internal/config"
	"github.com/hamed0406/masterstatus/internal/httpapi"
	"github.com/hamed0406/masterstatus/internal/logging"
	"github.com/hamed0406/masterstatus/internal/report"
	"github.com/hamed0406/masterstatus/internal/repo/memory"
	"github.com/hamed0406/masterstatus/internal/scheduler"
	"github.com/hamed0406/masterstatus/internal/ws"
)

func main() {
	cfgPath := os.Getenv("MASTERSTATUS_CONFIG")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel, Console: cfg.LogConsole})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher, scanner, err := scheduler.FromConfig(cfg, logger)
	if err != nil {
		logger.Fatal("setup_failed", zap.Error(err))
	}
	formats, err := report.ParseFormats(cfg.OutputFormats)
	if err != nil {
		logger.Fatal("setup_failed", zap.Error(err))
	}
	opts := report.Options{Title: cfg.ReportTitle, TCPPort: cfg.TCPPort}

	store := memory.New()
	hub := ws.New(logger)
	files := &report.FileSink{Dir: cfg.OutputDir, Formats: formats, Options: opts, Logger: logger}
	rc := scheduler.NewRechecker(logger, fetcher, scanner, cfg.ScanInterval, store, hub, files)

	if cfgPath != "" {
		// Probe and scan settings follow the file; listen address and
		// report options need a restart.
		_, err := config.Watch(cfgPath, logger, func(next config.Config) {
			f, s, err := scheduler.FromConfig(next, logger)
			if err != nil {
				logger.Warn("config_apply_failed", zap.Error(err))
				return
			}
			rc.Reconfigure(f, s, next.ScanInterval)
		})
		if err != nil {
			logger.Fatal("config_watch_failed", zap.Error(err))
		}
	}

	go hub.Run(ctx)
	go rc.Run(ctx)

	api := httpapi.NewServer(logger, store, hub, opts)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(cfg.RateLimitRPM, cfg.RateLimitBurst),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("api_listen", zap.String("addr", cfg.Addr), zap.Duration("scan_interval", cfg.ScanInterval))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("api_listen_failed", zap.Error(err))
	}
	logger.Info("api_stopped")
}
