package recipient

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals that no recipient row exists for the identifier.
var ErrNotFound = errors.New("recipient: not found")

// Reader abstracts repository operations for consumers.
type Reader interface {
	GetByID(ctx context.Context, id string) (Recipient, error)
	List(ctx context.Context, limit int) ([]Recipient, error)
}

// PGRepository implements Reader backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed recipient repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetByID returns the recipient for the given identifier.
func (r *PGRepository) GetByID(ctx context.Context, id string) (Recipient, error) {
	const selectSQL = `
		SELECT id, name, ocd_district_id, office, state, seat_class, created_at
		FROM recipients
		WHERE id = $1
	`

	rec, err := scanRecipient(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Recipient{}, ErrNotFound
		}
		return Recipient{}, fmt.Errorf("recipient: get by id: %w", err)
	}
	return rec, nil
}

// List returns up to limit recipients, newest first.
func (r *PGRepository) List(ctx context.Context, limit int) ([]Recipient, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	const query = `
		SELECT id, name, ocd_district_id, office, state, seat_class, created_at
		FROM recipients
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("recipient: list: %w", err)
	}
	defer rows.Close()

	out := make([]Recipient, 0, limit)
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, fmt.Errorf("recipient: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recipient: iterate: %w", err)
	}
	return out, nil
}

// UpdateDistrict stores a resolved district on the recipient.
func (r *PGRepository) UpdateDistrict(ctx context.Context, id, ocdDistrictID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE recipients SET ocd_district_id = $2 WHERE id = $1`, id, ocdDistrictID)
	if err != nil {
		return fmt.Errorf("recipient: update district: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecipient(row pgx.Row) (Recipient, error) {
	var (
		rec       Recipient
		ocd       *string
		seatClass *string
	)
	err := row.Scan(&rec.ID, &rec.Name, &ocd, &rec.Office, &rec.State, &seatClass, &rec.CreatedAt)
	if err != nil {
		return Recipient{}, err
	}
	if ocd != nil {
		rec.OCDDistrictID = *ocd
	}
	if seatClass != nil {
		rec.SeatClass = *seatClass
	}
	return rec, nil
}
