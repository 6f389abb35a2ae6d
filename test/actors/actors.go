package actors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"civicpledge/celebration"
	"civicpledge/notify"
)

// Pledger creates new active Celebrations for the seeded donor/recipient pair.
func Pledger(ctx context.Context, store celebration.Store, donorID, recipientID string, sittingCongress int, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		c := celebration.Celebration{
			ID:                  uuid.NewString(),
			DonatedBy:           donorID,
			Donee:               recipientID,
			DonationAmountCents: int64(100 + rand.Intn(5000)),
			CurrentStatus:       celebration.StatusActive,
			BillReference:       fmt.Sprintf("hr-%d", rand.Intn(9000)+1000),
			CongressNumber:      sittingCongress,
		}
		// connection drops from the chaos actor are expected; the oracles
		// catch anything that actually corrupted state
		_, _ = store.Create(ctx, c, "stress@example.com")
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// TriggerFlipper reads a random non-terminal Celebration and races a trigger
// against it using the status it just read as the precondition. Lost races
// surface as stale-transition errors, which are the expected outcome under
// contention.
func TriggerFlipper(ctx context.Context, pool *pgxpool.Pool, store celebration.Store, stop <-chan struct{}) error {
	flips := map[celebration.Status]celebration.Trigger{
		celebration.StatusActive: celebration.TriggerChallengerLost,
		celebration.StatusPaused: celebration.TriggerChallengerReappeared,
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		var id string
		var current celebration.Status
		err := pool.QueryRow(ctx, `SELECT id, current_status::text FROM celebrations
			WHERE current_status IN ('active','paused') ORDER BY random() LIMIT 1`).Scan(&id, &current)
		if err == nil {
			trig := flips[current]
			next, nerr := celebration.NextStatus(current, trig)
			if nerr == nil {
				_, _ = store.ApplyTransition(ctx, celebration.TransitionRecord{
					CelebrationID: id,
					Expected:      current,
					Next:          next,
					Reason:        "stress flip",
					At:            time.Now().UTC(),
				})
			}
		}
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// Resolver occasionally settles an active Celebration as resolved, putting
// terminal rows into the pool so other actors exercise the terminal guard.
func Resolver(ctx context.Context, pool *pgxpool.Pool, store celebration.Store, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		var id string
		err := pool.QueryRow(ctx, `SELECT id FROM celebrations
			WHERE current_status = 'active' ORDER BY random() LIMIT 1`).Scan(&id)
		if err == nil {
			_, _ = store.ApplyTransition(ctx, celebration.TransitionRecord{
				CelebrationID: id,
				Expected:      celebration.StatusActive,
				Next:          celebration.StatusResolved,
				Reason:        "bill passed",
				At:            time.Now().UTC(),
			})
		}
		time.Sleep(time.Duration(150+rand.Intn(150)) * time.Millisecond)
	}
}

// SessionEnder repeatedly sweeps Celebrations from expired Congresses to
// defunct, the same walk the background sweeper performs.
func SessionEnder(ctx context.Context, store celebration.Store, sittingCongress int, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		expired, err := store.ListSessionExpired(ctx, sittingCongress)
		if err != nil {
			time.Sleep(200 * time.Millisecond)
			continue
		}
		for _, c := range expired {
			next, nerr := celebration.NextStatus(c.CurrentStatus, celebration.TriggerSessionEnded)
			if nerr != nil {
				continue
			}
			_, _ = store.ApplyTransition(ctx, celebration.TransitionRecord{
				CelebrationID: c.ID,
				Expected:      c.CurrentStatus,
				Next:          next,
				Reason:        "congressional session ended",
				At:            time.Now().UTC(),
			})
		}
		time.Sleep(time.Duration(100+rand.Intn(100)) * time.Millisecond)
	}
}

// OutboxWorker drains the outbox through the real relay with a notifier that
// fails randomly, exercising the retry and dead-letter paths.
func OutboxWorker(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	relay := notify.NewRelay(pool, flakyNotifier{}, slog.Default(), time.Second)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_ = relay.DrainOnce(ctx)
		time.Sleep(100 * time.Millisecond)
	}
}

type flakyNotifier struct{}

func (flakyNotifier) Send(ctx context.Context, recipientAddress, templateID string, args map[string]any) error {
	if rand.Intn(10) == 0 {
		return errors.New("actors: simulated delivery failure")
	}
	return nil
}
