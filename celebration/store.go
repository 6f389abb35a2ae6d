package celebration

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransitionRecord describes one attempted status change. Expected is the
// previous-status precondition embedded in the conditional write.
type TransitionRecord struct {
	CelebrationID string
	Expected      Status
	Next          Status
	Reason        string
	At            time.Time
}

// Store is the persistence contract for Celebrations. ApplyTransition must
// be atomic: the status update, the ledger append and the outbox write either
// all commit or none do, and the status update only succeeds while the
// previous status still matches Expected.
type Store interface {
	GetByID(ctx context.Context, id string) (Celebration, error)
	Ledger(ctx context.Context, id string) ([]LedgerEntry, error)
	Create(ctx context.Context, c Celebration, notifyEmail string) (Celebration, error)
	ApplyTransition(ctx context.Context, rec TransitionRecord) (LedgerEntry, error)
	ListSessionExpired(ctx context.Context, sittingCongress int) ([]Celebration, error)
}

// PGStore implements Store backed by PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a PostgreSQL-backed celebration store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) GetByID(ctx context.Context, id string) (Celebration, error) {
	const selectSQL = `
		SELECT id, donated_by, donee, donation_amount_cents, tip_amount_cents,
		       current_status::text, bill_reference, congress_number, created_at, updated_at
		FROM celebrations
		WHERE id = $1
	`

	var c Celebration
	err := s.pool.QueryRow(ctx, selectSQL, id).Scan(
		&c.ID,
		&c.DonatedBy,
		&c.Donee,
		&c.DonationAmountCents,
		&c.TipAmountCents,
		&c.CurrentStatus,
		&c.BillReference,
		&c.CongressNumber,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Celebration{}, ErrNotFound
		}
		return Celebration{}, fmt.Errorf("celebration: get by id: %w", err)
	}
	return c, nil
}

func (s *PGStore) Ledger(ctx context.Context, id string) ([]LedgerEntry, error) {
	const query = `
		SELECT id, celebration_id, seq, previous_status::text, new_status::text, reason, created_at
		FROM celebration_ledger
		WHERE celebration_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("celebration: list ledger: %w", err)
	}
	defer rows.Close()

	out := make([]LedgerEntry, 0, 4)
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.CelebrationID, &e.Seq, &e.PreviousStatus, &e.NewStatus, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("celebration: scan ledger entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("celebration: iterate ledger: %w", err)
	}
	return out, nil
}

// Create inserts a new active Celebration and enqueues the pledge
// notification in the same transaction.
func (s *PGStore) Create(ctx context.Context, c Celebration, notifyEmail string) (Celebration, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Celebration{}, fmt.Errorf("celebration: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertSQL = `
		INSERT INTO celebrations (id, donated_by, donee, donation_amount_cents, tip_amount_cents,
		                          current_status, bill_reference, congress_number)
		VALUES ($1, $2, $3, $4, $5, $6::celebration_status, $7, $8)
		RETURNING created_at, updated_at
	`
	if err := tx.QueryRow(ctx, insertSQL,
		c.ID,
		c.DonatedBy,
		c.Donee,
		c.DonationAmountCents,
		c.TipAmountCents,
		c.CurrentStatus,
		c.BillReference,
		c.CongressNumber,
	).Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		return Celebration{}, fmt.Errorf("celebration: insert: %w", err)
	}

	payload := map[string]any{
		"celebration_id": c.ID,
		"donor_id":       c.DonatedBy,
		"recipient_id":   c.Donee,
		"amount_cents":   c.DonationAmountCents,
		"notify_email":   notifyEmail,
	}
	if err := enqueueOutbox(ctx, tx, OutboxTopicPledged, payload); err != nil {
		return Celebration{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Celebration{}, fmt.Errorf("celebration: commit pledge: %w", err)
	}
	return c, nil
}

// ApplyTransition performs the conditional status write, the ledger append
// and the outbox enqueue in a single transaction. The status update is keyed
// on the expected previous status so two racing triggers cannot both succeed.
func (s *PGStore) ApplyTransition(ctx context.Context, rec TransitionRecord) (LedgerEntry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return LedgerEntry{}, fmt.Errorf("celebration: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const updateSQL = `
		UPDATE celebrations
		SET current_status = $2::celebration_status,
		    updated_at = $3
		WHERE id = $1 AND current_status = $4::celebration_status
	`
	tag, err := tx.Exec(ctx, updateSQL, rec.CelebrationID, rec.Next, rec.At, rec.Expected)
	if err != nil {
		return LedgerEntry{}, fmt.Errorf("celebration: conditional update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return LedgerEntry{}, s.classifyMiss(ctx, rec)
	}

	entry := LedgerEntry{
		CelebrationID:  rec.CelebrationID,
		PreviousStatus: rec.Expected,
		NewStatus:      rec.Next,
		Reason:         rec.Reason,
		CreatedAt:      rec.At,
	}
	const ledgerSQL = `
		INSERT INTO celebration_ledger (celebration_id, seq, previous_status, new_status, reason, created_at)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2::celebration_status, $3::celebration_status, $4, $5
		FROM celebration_ledger
		WHERE celebration_id = $1
		RETURNING id, seq
	`
	if err := tx.QueryRow(ctx, ledgerSQL,
		rec.CelebrationID,
		rec.Expected,
		rec.Next,
		rec.Reason,
		rec.At,
	).Scan(&entry.ID, &entry.Seq); err != nil {
		return LedgerEntry{}, fmt.Errorf("celebration: append ledger: %w", err)
	}

	payload := map[string]any{
		"celebration_id":  rec.CelebrationID,
		"previous_status": rec.Expected,
		"new_status":      rec.Next,
		"reason":          rec.Reason,
	}
	if err := enqueueOutbox(ctx, tx, OutboxTopicStatusChanged, payload); err != nil {
		return LedgerEntry{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return LedgerEntry{}, fmt.Errorf("celebration: commit transition: %w", err)
	}
	return entry, nil
}

// classifyMiss distinguishes a missing row from a lost race after the
// conditional update matched nothing.
func (s *PGStore) classifyMiss(ctx context.Context, rec TransitionRecord) error {
	var current Status
	err := s.pool.QueryRow(ctx, `SELECT current_status::text FROM celebrations WHERE id = $1`, rec.CelebrationID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("celebration: fetch status after miss: %w", err)
	}
	return fmt.Errorf("%w: expected %s, found %s", ErrStaleTransition, rec.Expected, current)
}

// ListSessionExpired returns non-terminal Celebrations whose Congress has
// left session, i.e. the session-end sweep's work list.
func (s *PGStore) ListSessionExpired(ctx context.Context, sittingCongress int) ([]Celebration, error) {
	const query = `
		SELECT id, donated_by, donee, donation_amount_cents, tip_amount_cents,
		       current_status::text, bill_reference, congress_number, created_at, updated_at
		FROM celebrations
		WHERE congress_number < $1
		  AND current_status IN ('active', 'paused')
		ORDER BY created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, sittingCongress)
	if err != nil {
		return nil, fmt.Errorf("celebration: list session expired: %w", err)
	}
	defer rows.Close()

	out := make([]Celebration, 0, 16)
	for rows.Next() {
		var c Celebration
		if err := rows.Scan(
			&c.ID,
			&c.DonatedBy,
			&c.Donee,
			&c.DonationAmountCents,
			&c.TipAmountCents,
			&c.CurrentStatus,
			&c.BillReference,
			&c.CongressNumber,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("celebration: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("celebration: iterate: %w", err)
	}
	return out, nil
}

func enqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("celebration: marshal outbox payload: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO outbox (topic, payload) VALUES ($1, $2::jsonb)`, topic, body); err != nil {
		return fmt.Errorf("celebration: enqueue outbox: %w", err)
	}
	return nil
}
