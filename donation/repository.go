package donation

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides read access to donation history.
type Repository interface {
	// ListByDonorRecipient returns every donation from the donor to the
	// recipient in one consistent read; the validator sums the result
	// rather than streaming it.
	ListByDonorRecipient(ctx context.Context, donorID, recipientID string) ([]Donation, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed donation repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) ListByDonorRecipient(ctx context.Context, donorID, recipientID string) ([]Donation, error) {
	const query = `
		SELECT id, donor_id, recipient_id, amount_cents, tip_cents, donated_at, created_at
		FROM donations
		WHERE donor_id = $1 AND recipient_id = $2
		ORDER BY donated_at ASC
	`

	rows, err := r.pool.Query(ctx, query, donorID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("donation: list history: %w", err)
	}
	defer rows.Close()

	out := make([]Donation, 0, 8)
	for rows.Next() {
		var d Donation
		if err := rows.Scan(&d.ID, &d.DonorID, &d.RecipientID, &d.AmountCents, &d.TipCents, &d.DonatedAt, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("donation: scan: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("donation: iterate: %w", err)
	}
	return out, nil
}
