package celebration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"civicpledge/cycle"
)

const defaultSweepConcurrency = 4

// Sweeper periodically marks Celebrations defunct once their Congress has
// left session. Concurrent sweeps and manual triggers are safe: the store's
// conditional write lets exactly one transition per Celebration commit, and
// the loser's ErrStaleTransition is logged and skipped.
type Sweeper struct {
	store       Store
	svc         *Service
	logger      *slog.Logger
	interval    time.Duration
	concurrency int
	now         func() time.Time
}

// NewSweeper builds a session-end sweeper around the service.
func NewSweeper(store Store, svc *Service, logger *slog.Logger, interval time.Duration) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:       store,
		svc:         svc,
		logger:      logger,
		interval:    interval,
		concurrency: defaultSweepConcurrency,
		now:         time.Now,
	}
}

// WithClock overrides the clock for deterministic tests.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run sweeps on every tick until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			swept, err := s.SweepOnce(ctx)
			if err != nil {
				s.logger.Error("session-end sweep failed", "error", err)
				continue
			}
			if swept > 0 {
				s.logger.Info("session-end sweep complete", "defunct", swept)
			}
		}
	}
}

// SweepOnce transitions every session-expired Celebration to defunct and
// returns how many transitions committed. Re-running is idempotent: already
// swept Celebrations are terminal and no longer listed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	sitting, err := cycle.CongressNumber(s.now())
	if err != nil {
		return 0, err
	}

	expired, err := s.store.ListSessionExpired(ctx, sitting)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	var swept atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, c := range expired {
		g.Go(func() error {
			reason := "congressional session ended before resolution"
			if end, err := cycle.CongressEnd(c.CongressNumber); err == nil {
				reason = fmt.Sprintf("congress %d ended %s before resolution", c.CongressNumber, end.Format("January 2, 2006"))
			}
			_, err := s.svc.Transition(gctx, TransitionParams{
				CelebrationID: c.ID,
				Trigger:       TriggerSessionEnded,
				Reason:        reason,
			})
			if err != nil {
				// A concurrent trigger got there first; the next
				// sweep will no longer list this row.
				if errors.Is(err, ErrStaleTransition) {
					s.logger.Debug("sweep lost race", "celebration_id", c.ID)
					return nil
				}
				return err
			}
			swept.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(swept.Load()), err
	}
	return int(swept.Load()), nil
}
