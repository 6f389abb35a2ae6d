package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"civicpledge/celebration"
	"civicpledge/config"
	"civicpledge/db"
	"civicpledge/donation"
	"civicpledge/donor"
	"civicpledge/notify"
	"civicpledge/recipient"
)

// engine bundles the wired components. The serving layer mounts Verifier in
// front of the trigger webhook and Enricher behind recipient creation; this
// process runs only the background workers.
type engine struct {
	Celebrations *celebration.Service
	Verifier     *celebration.TriggerVerifier
	Enricher     *recipient.Service
	Sweeper      *celebration.Sweeper
	Relay        *notify.Relay
}

func buildEngine(cfg config.Config, pool *pgxpool.Pool, logger *slog.Logger) engine {
	donors := donor.NewRepository(pool)
	recipients := recipient.NewRepository(pool)
	resolver := recipient.NewCivicsClient(cfg.CivicsAPIBaseURL, cfg.CivicsAPIKey)
	history := donation.NewRepository(pool)
	validator := donation.NewValidator(donors, recipients, history)

	store := celebration.NewStore(pool)
	celebrations := celebration.NewService(store, validator)

	return engine{
		Celebrations: celebrations,
		Verifier:     celebration.NewTriggerVerifier(cfg.TriggerWebhookSecret),
		Enricher:     recipient.NewService(recipients, resolver),
		Sweeper:      celebration.NewSweeper(store, celebrations, logger, cfg.SweepInterval),
		Relay:        notify.NewRelay(pool, logNotifier{logger}, logger, cfg.OutboxInterval),
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		log.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	eng := buildEngine(cfg, pool, logger)

	logger.Info("compliance engine ready",
		"sweep_interval", cfg.SweepInterval,
		"outbox_interval", cfg.OutboxInterval,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Sweeper.Run(gctx) })
	g.Go(func() error { return eng.Relay.Run(gctx) })

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatalf("worker exited: %v", err)
	}
}

// logNotifier stands in for the outbound mailer until one is wired.
type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) Send(_ context.Context, recipientAddress, templateID string, args map[string]any) error {
	n.logger.Info("notification", "to", recipientAddress, "template", templateID, "args", args)
	return nil
}
