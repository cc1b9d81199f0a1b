// Package app wires configuration into the dialer, the reconciler and their
// optional collaborators. Both binaries build on it.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/fundraise-dialer/internal/alert"
	"github.com/ignite/fundraise-dialer/internal/config"
	"github.com/ignite/fundraise-dialer/internal/events"
	"github.com/ignite/fundraise-dialer/internal/pkg/distlock"
	"github.com/ignite/fundraise-dialer/internal/pkg/logger"
	"github.com/ignite/fundraise-dialer/internal/repository/postgres"
	"github.com/ignite/fundraise-dialer/internal/service/dialer"
	"github.com/ignite/fundraise-dialer/internal/service/reconciler"
	"github.com/ignite/fundraise-dialer/internal/storage"
	"github.com/ignite/fundraise-dialer/internal/voice"
	"github.com/ignite/fundraise-dialer/internal/worker"
)

// App holds the wired services and the resources they own.
type App struct {
	Config     *config.Config
	DB         *sql.DB
	Redis      *redis.Client
	Runner     *worker.Runner
	Dialer     *dialer.Dialer
	Reconciler *reconciler.Reconciler

	closers []func() error
}

// ReconcilerOptions returns the configured reconciler tick options.
func (a *App) ReconcilerOptions() reconciler.Options {
	return reconciler.Options{
		LookbackHours:     a.Config.Reconciler.LookbackHours,
		BatchLimit:        a.Config.Reconciler.BatchLimit,
		AcceptDemoHistory: a.Config.Reconciler.AcceptDemoHistory,
	}
}

// Build connects to the database and every configured collaborator.
// Optional collaborators that fail to initialize are logged and skipped.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.RedactPII != nil {
		logger.SetRedactPII(*cfg.Logging.RedactPII)
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, DB: db}
	a.closers = append(a.closers, db.Close)

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		a.Redis = redis.NewClient(opts)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, tick locks fall back to postgres", "error", err)
			a.Redis.Close()
			a.Redis = nil
		} else {
			a.closers = append(a.closers, a.Redis.Close)
		}
	}

	locks := distlock.NewFactory(a.Redis, db, distlock.DefaultTTL)
	a.Runner = worker.NewRunner(locks, worker.DefaultTickTimeout)

	voiceClient := voice.NewClient(cfg.Voice)
	a.Dialer = dialer.NewDialer(postgres.NewDialerRepo(db), voiceClient, dialer.Options{
		CampaignBatchLimit:   cfg.Dialer.CampaignBatchLimit,
		DefaultPhoneNumberID: cfg.Voice.DefaultPhoneNumberID,
	})
	a.Reconciler = reconciler.NewReconciler(postgres.NewConversationRepo(db), voiceClient)

	if cfg.Events.AMQPURL != "" {
		pub, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			logger.Warn("event publishing disabled", "error", err)
		} else {
			a.Dialer.SetPublisher(pub)
			a.Reconciler.SetPublisher(pub)
			a.closers = append(a.closers, pub.Close)
			logger.Info("publishing events", "exchange", cfg.Events.Exchange)
		}
	}

	archive, ledger, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Warn("AWS storage disabled", "error", err)
	}
	if archive != nil {
		a.Reconciler.SetArchiver(archive)
		logger.Info("archiving transcripts", "bucket", cfg.Storage.TranscriptBucket)
	}
	if ledger != nil {
		a.Runner.AddObserver(ledger)
		logger.Info("recording ticks", "table", cfg.Storage.TickLedgerTable)
	}

	if cfg.Alerts.Enabled {
		alerter, err := alert.NewSESAlerter(ctx, cfg.Alerts)
		if err != nil {
			logger.Warn("alerts disabled", "error", err)
		} else {
			a.Runner.AddObserver(alerter)
			logger.Info("alerting on failed ticks", "recipients", len(cfg.Alerts.To))
		}
	}

	return a, nil
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
}
