package donor

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals that no donor row exists for the identifier.
var ErrNotFound = errors.New("donor: not found")

// Repository provides read access to donor profiles.
type Repository interface {
	GetByID(ctx context.Context, donorID string) (Profile, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed donor repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetByID retrieves a donor profile by identifier.
func (r *PGRepository) GetByID(ctx context.Context, donorID string) (Profile, error) {
	const selectSQL = `
		SELECT id, full_name, email, address_line1, city, state, zip,
		       is_employed, occupation, employer, employment_verified,
		       created_at, updated_at
		FROM donors
		WHERE id = $1
	`

	var (
		p          Profile
		occupation *string
		employer   *string
	)
	err := r.pool.QueryRow(ctx, selectSQL, donorID).Scan(
		&p.ID,
		&p.FullName,
		&p.Email,
		&p.AddressLine1,
		&p.City,
		&p.State,
		&p.Zip,
		&p.IsEmployed,
		&occupation,
		&employer,
		&p.EmploymentVerified,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("donor: get by id: %w", err)
	}

	if occupation != nil {
		p.Occupation = *occupation
	}
	if employer != nil {
		p.Employer = *employer
	}
	return p, nil
}
