package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"veilpoll/go-client/internal/config"
	"veilpoll/go-client/internal/daemon"
	"veilpoll/go-client/internal/platform/privacylog"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	dataDir := flag.String("data-dir", "", "Directory for daemon local data (optional)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus listen address (optional)")
	flag.Parse()
	if *showVersion {
		fmt.Printf("veilpoll-daemon version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("veilpoll-daemon failed to load config: %v", err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	logger := slog.New(privacylog.WrapHandler(slog.NewJSONHandler(os.Stdout, nil)))
	d := daemon.New(cfg, logger)

	logger.Info("veilpoll-daemon starting", "version", version)
	if err := d.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("veilpoll-daemon failed: %v", err)
	}
	logger.Info("veilpoll-daemon stopped")
}
