package celebration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TestApplyTransition_Integration connects to a real PostgreSQL via
// DATABASE_URL and verifies the conditional status write, the ledger append
// and the outbox enqueue against a live schema, including the lost-race path.
func TestApplyTransition_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	for _, table := range []string{"celebrations", "celebration_ledger", "outbox", "donors", "recipients"} {
		if !tableExists(ctx, t, pool, table) {
			t.Skipf("table %s missing; apply migrations/0001_init.sql first", table)
		}
	}

	var donorID, recipientID string
	if err := pool.QueryRow(ctx, `INSERT INTO donors (full_name, email, is_employed) VALUES ($1, $2, false) RETURNING id`,
		"Integration Donor", fmt.Sprintf("itest+%d@example.com", time.Now().UnixNano())).Scan(&donorID); err != nil {
		t.Fatalf("seed donor: %v", err)
	}
	if err := pool.QueryRow(ctx, `INSERT INTO recipients (name, office, state) VALUES ($1, 'senate', 'VT') RETURNING id`,
		fmt.Sprintf("Sen. Test %d", time.Now().UnixNano())).Scan(&recipientID); err != nil {
		t.Fatalf("seed recipient: %v", err)
	}

	store := NewStore(pool)

	created, err := store.Create(ctx, Celebration{
		ID:                  uuid.NewString(),
		DonatedBy:           donorID,
		Donee:               recipientID,
		DonationAmountCents: 5000,
		CurrentStatus:       StatusActive,
		BillReference:       "s-1234",
		CongressNumber:      119,
	}, "itest@example.com")
	if err != nil {
		t.Fatalf("create celebration: %v", err)
	}

	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM celebration_ledger WHERE celebration_id = $1`, created.ID)
		pool.Exec(ctx2, `DELETE FROM outbox WHERE payload->>'celebration_id' = $1`, created.ID)
		pool.Exec(ctx2, `DELETE FROM celebrations WHERE id = $1`, created.ID)
		pool.Exec(ctx2, `DELETE FROM recipients WHERE id = $1`, recipientID)
		pool.Exec(ctx2, `DELETE FROM donors WHERE id = $1`, donorID)
	})

	// pledge enqueues exactly one notification
	var pledgeOut int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE topic = $1 AND payload->>'celebration_id' = $2`,
		OutboxTopicPledged, created.ID).Scan(&pledgeOut); err != nil {
		t.Fatalf("verify pledge outbox: %v", err)
	}
	if pledgeOut != 1 {
		t.Fatalf("expected 1 pledge outbox message, got %d", pledgeOut)
	}

	// first transition wins
	entry, err := store.ApplyTransition(ctx, TransitionRecord{
		CelebrationID: created.ID,
		Expected:      StatusActive,
		Next:          StatusPaused,
		Reason:        "challenger reappeared",
		At:            time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("apply transition: %v", err)
	}
	if entry.Seq != 1 {
		t.Fatalf("expected first ledger entry seq=1, got %d", entry.Seq)
	}

	var status string
	if err := pool.QueryRow(ctx, `SELECT current_status::text FROM celebrations WHERE id = $1`, created.ID).Scan(&status); err != nil {
		t.Fatalf("verify status: %v", err)
	}
	if status != string(StatusPaused) {
		t.Fatalf("expected status paused, got %q", status)
	}

	// replay with the now-stale precondition loses and writes nothing
	_, err = store.ApplyTransition(ctx, TransitionRecord{
		CelebrationID: created.ID,
		Expected:      StatusActive,
		Next:          StatusPaused,
		Reason:        "challenger reappeared",
		At:            time.Now().UTC(),
	})
	if !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("expected ErrStaleTransition on replay, got %v", err)
	}

	var ledgerCount, changeOut int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM celebration_ledger WHERE celebration_id = $1`, created.ID).Scan(&ledgerCount); err != nil {
		t.Fatalf("re-verify ledger: %v", err)
	}
	if ledgerCount != 1 {
		t.Fatalf("expected ledger to remain at 1 entry after stale replay, got %d", ledgerCount)
	}
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE topic = $1 AND payload->>'celebration_id' = $2`,
		OutboxTopicStatusChanged, created.ID).Scan(&changeOut); err != nil {
		t.Fatalf("re-verify outbox: %v", err)
	}
	if changeOut != 1 {
		t.Fatalf("expected 1 status-changed outbox message, got %d", changeOut)
	}

	// unknown id classifies as not found, not stale
	_, err = store.ApplyTransition(ctx, TransitionRecord{
		CelebrationID: uuid.NewString(),
		Expected:      StatusActive,
		Next:          StatusResolved,
		Reason:        "bill passed",
		At:            time.Now().UTC(),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func tableExists(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()
	var exists bool
	err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`, name).Scan(&exists)
	if err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	return exists
}
