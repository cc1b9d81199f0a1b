package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/fundraise-dialer/internal/app"
	"github.com/ignite/fundraise-dialer/internal/config"
	"github.com/ignite/fundraise-dialer/internal/pkg/logger"
	"github.com/ignite/fundraise-dialer/internal/worker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	a, err := app.Build(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	reconcilerOpts := a.ReconcilerOptions()
	sched := worker.NewScheduler(a.Runner,
		worker.Job{
			Name:     worker.JobDialer,
			Interval: cfg.Dialer.TickInterval(),
			Tick: func(ctx context.Context, now time.Time) (any, error) {
				return a.Dialer.Tick(ctx, now)
			},
		},
		worker.Job{
			Name:     worker.JobReconciler,
			Interval: cfg.Reconciler.TickInterval(),
			Tick: func(ctx context.Context, now time.Time) (any, error) {
				return a.Reconciler.Tick(ctx, now, reconcilerOpts)
			},
		},
	)
	if err := sched.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	logger.Info("worker running",
		"dialer_interval", cfg.Dialer.TickInterval().String(),
		"reconciler_interval", cfg.Reconciler.TickInterval().String())

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker")
	sched.Stop()
	ticks, failures := sched.Stats()
	logger.Info("worker stopped", "ticks", ticks, "errors", failures)
}
