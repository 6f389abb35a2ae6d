package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"

	"civicpledge/celebration"
)

const (
	defaultBatchSize   = 10
	defaultMaxAttempts = 5
)

// Relay drains the transactional outbox and hands each message to the
// Notifier. Messages are claimed with SKIP LOCKED so multiple relays can run
// concurrently; a message is marked dead after repeated delivery failures
// rather than blocking the queue.
type Relay struct {
	pool        *pgxpool.Pool
	notifier    Notifier
	logger      *slog.Logger
	interval    time.Duration
	batchSize   int
	maxAttempts int
}

// NewRelay builds an outbox relay.
func NewRelay(pool *pgxpool.Pool, notifier Notifier, logger *slog.Logger, interval time.Duration) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		pool:        pool,
		notifier:    notifier,
		logger:      logger,
		interval:    interval,
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
	}
}

// Run drains the outbox on every tick until the context is canceled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.DrainOnce(ctx); err != nil {
				r.logger.Error("outbox drain failed", "error", err)
			}
		}
	}
}

type outboxMessage struct {
	ID       string
	Topic    string
	Payload  []byte
	Attempts int
}

// DrainOnce claims and delivers one batch of pending outbox messages.
func (r *Relay) DrainOnce(ctx context.Context) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("notify: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, topic, payload, attempts
		FROM outbox
		WHERE status = 'pending'
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, r.batchSize)
	if err != nil {
		return fmt.Errorf("notify: claim outbox batch: %w", err)
	}

	batch := make([]outboxMessage, 0, r.batchSize)
	for rows.Next() {
		var m outboxMessage
		if err := rows.Scan(&m.ID, &m.Topic, &m.Payload, &m.Attempts); err != nil {
			rows.Close()
			return fmt.Errorf("notify: scan outbox message: %w", err)
		}
		batch = append(batch, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("notify: iterate outbox batch: %w", err)
	}

	for _, m := range batch {
		if err := r.deliver(ctx, m); err != nil {
			r.logger.Warn("outbox delivery failed", "outbox_id", m.ID, "topic", m.Topic, "error", err)
			status := "pending"
			if m.Attempts+1 >= r.maxAttempts {
				status = "dead"
			}
			if _, err := tx.Exec(ctx, `
				UPDATE outbox SET attempts = attempts + 1, status = $2, last_attempt = NOW() WHERE id = $1
			`, m.ID, status); err != nil {
				return fmt.Errorf("notify: record failed attempt: %w", err)
			}
			continue
		}
		if _, err := tx.Exec(ctx, `
			UPDATE outbox SET status = 'processed', last_attempt = NOW() WHERE id = $1
		`, m.ID); err != nil {
			return fmt.Errorf("notify: mark processed: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("notify: commit drain: %w", err)
	}
	return nil
}

func (r *Relay) deliver(ctx context.Context, m outboxMessage) error {
	var payload map[string]any
	if err := json.Unmarshal(m.Payload, &payload); err != nil {
		return fmt.Errorf("notify: decode payload: %w", err)
	}

	address, _ := payload["notify_email"].(string)
	if address == "" {
		address = r.lookupDonorEmail(ctx, payload)
	}
	if address == "" {
		// Nothing to deliver to; treat as processed rather than poisoning
		// the queue.
		return nil
	}

	templateID := templateFor(m.Topic)
	if templateID == "" {
		return nil
	}
	return r.notifier.Send(ctx, address, templateID, payload)
}

// lookupDonorEmail resolves the pledging donor's address for messages whose
// payload carries only the celebration id.
func (r *Relay) lookupDonorEmail(ctx context.Context, payload map[string]any) string {
	celebrationID, _ := payload["celebration_id"].(string)
	if celebrationID == "" {
		return ""
	}

	var email string
	err := r.pool.QueryRow(ctx, `
		SELECT d.email
		FROM celebrations c
		JOIN donors d ON d.id = c.donated_by
		WHERE c.id = $1
	`, celebrationID).Scan(&email)
	if err != nil {
		return ""
	}
	return email
}

func templateFor(topic string) string {
	switch topic {
	case celebration.OutboxTopicPledged:
		return TemplatePledgeReceived
	case celebration.OutboxTopicStatusChanged:
		return TemplateStatusChanged
	default:
		return ""
	}
}
