package celebration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"civicpledge/cycle"
	"civicpledge/donation"
)

// ErrLimitExceeded rejects a pledge that would exceed the donor's remaining
// contribution headroom.
var ErrLimitExceeded = errors.New("celebration: contribution limit exceeded")

type pledgeGate interface {
	CheckPledge(ctx context.Context, donorID, recipientID string, amountCents int64, at time.Time) (donation.PledgeDecision, error)
}

// Service drives the Celebration lifecycle: pledge creation gated by the
// limit validator, and status transitions applied through the store's
// conditional write.
type Service struct {
	store Store
	gate  pledgeGate
	now   func() time.Time
	idGen func() string
}

// NewService builds a Service. The gate may be nil for deployments that
// validate limits upstream.
func NewService(store Store, gate pledgeGate) *Service {
	return &Service{
		store: store,
		gate:  gate,
		now:   time.Now,
		idGen: func() string { return uuid.NewString() },
	}
}

// WithClock overrides the clock for deterministic tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithIDGenerator overrides id generation for deterministic tests.
func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

// PledgeParams enumerates the fields required to create a Celebration.
type PledgeParams struct {
	DonorID       string
	RecipientID   string
	AmountCents   int64
	TipCents      int64
	BillReference string
	NotifyEmail   string
}

// Pledge validates headroom and creates an active Celebration pinned to the
// sitting Congress.
func (s *Service) Pledge(ctx context.Context, params PledgeParams) (Celebration, error) {
	if params.DonorID == "" || params.RecipientID == "" {
		return Celebration{}, fmt.Errorf("celebration: donor and recipient ids required")
	}
	if params.AmountCents <= 0 {
		return Celebration{}, fmt.Errorf("celebration: invalid donation amount %d", params.AmountCents)
	}
	if params.TipCents < 0 {
		return Celebration{}, fmt.Errorf("celebration: invalid tip amount %d", params.TipCents)
	}
	if params.BillReference == "" {
		return Celebration{}, fmt.Errorf("celebration: bill reference required")
	}

	now := s.now()

	if s.gate != nil {
		decision, err := s.gate.CheckPledge(ctx, params.DonorID, params.RecipientID, params.AmountCents, now)
		if err != nil {
			return Celebration{}, err
		}
		if !decision.Allowed {
			return Celebration{}, fmt.Errorf("%w: %d cents remaining in %s tier",
				ErrLimitExceeded, decision.RemainingCents, decision.Tier)
		}
	}

	congress, err := cycle.CongressNumber(now)
	if err != nil {
		return Celebration{}, err
	}

	c := Celebration{
		ID:                  s.idGen(),
		DonatedBy:           params.DonorID,
		Donee:               params.RecipientID,
		DonationAmountCents: params.AmountCents,
		TipAmountCents:      params.TipCents,
		CurrentStatus:       StatusActive,
		BillReference:       params.BillReference,
		CongressNumber:      congress,
	}
	return s.store.Create(ctx, c, params.NotifyEmail)
}

// TransitionParams identifies one trigger fired at one Celebration.
type TransitionParams struct {
	CelebrationID string
	Trigger       Trigger
	Reason        string
}

// Transition reads the current status, resolves the trigger's target, and
// applies the change through the store's conditional write. A lost race or a
// trigger that no longer applies surfaces as ErrStaleTransition; the caller
// should re-read and decide whether to re-trigger or drop. A challenger
// reappearance is only honored while the Celebration's Congress is still in
// session; a late webhook arriving after session end is stale even if the
// sweep has not defuncted the row yet.
func (s *Service) Transition(ctx context.Context, params TransitionParams) (LedgerEntry, error) {
	if params.CelebrationID == "" {
		return LedgerEntry{}, fmt.Errorf("celebration: missing celebration id")
	}

	current, err := s.store.GetByID(ctx, params.CelebrationID)
	if err != nil {
		return LedgerEntry{}, err
	}

	if params.Trigger == TriggerChallengerReappeared {
		sitting, err := cycle.CongressNumber(s.now())
		if err != nil {
			return LedgerEntry{}, err
		}
		if current.CongressNumber < sitting {
			return LedgerEntry{}, fmt.Errorf("%w: congress %d has left session", ErrStaleTransition, current.CongressNumber)
		}
	}

	next, err := NextStatus(current.CurrentStatus, params.Trigger)
	if err != nil {
		return LedgerEntry{}, err
	}

	return s.store.ApplyTransition(ctx, TransitionRecord{
		CelebrationID: params.CelebrationID,
		Expected:      current.CurrentStatus,
		Next:          next,
		Reason:        params.Reason,
		At:            s.now(),
	})
}

// EvaluationResult reports the outcome of one trigger within an evaluation
// pass.
type EvaluationResult struct {
	Trigger Trigger
	Entry   LedgerEntry
	Err     error
}

// Evaluate applies a batch of triggers gathered in one evaluation pass
// against a single Celebration, in precedence order: session end first,
// since it is irreversible. Later triggers that lost to an earlier one are
// reported with ErrStaleTransition rather than dropped.
func (s *Service) Evaluate(ctx context.Context, celebrationID string, triggers []Trigger) []EvaluationResult {
	ordered := make([]Trigger, len(triggers))
	copy(ordered, triggers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return triggerPrecedence(ordered[i]) < triggerPrecedence(ordered[j])
	})

	results := make([]EvaluationResult, 0, len(ordered))
	for _, t := range ordered {
		entry, err := s.Transition(ctx, TransitionParams{
			CelebrationID: celebrationID,
			Trigger:       t,
			Reason:        fmt.Sprintf("trigger %s", t),
		})
		results = append(results, EvaluationResult{Trigger: t, Entry: entry, Err: err})
	}
	return results
}

// Get returns a Celebration with its full ledger.
func (s *Service) Get(ctx context.Context, id string) (Celebration, []LedgerEntry, error) {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Celebration{}, nil, err
	}
	ledger, err := s.store.Ledger(ctx, id)
	if err != nil {
		return Celebration{}, nil, err
	}
	return c, ledger, nil
}
