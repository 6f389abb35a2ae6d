package celebration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"civicpledge/donation"
)

// memStore implements Store with the same compare-and-swap discipline as the
// PostgreSQL conditional update, so race behavior can be exercised without a
// database.
type memStore struct {
	mu           sync.Mutex
	celebrations map[string]Celebration
	ledgers      map[string][]LedgerEntry
	outboxTopics []string
}

func newMemStore() *memStore {
	return &memStore{
		celebrations: make(map[string]Celebration),
		ledgers:      make(map[string][]LedgerEntry),
	}
}

func (m *memStore) GetByID(_ context.Context, id string) (Celebration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.celebrations[id]
	if !ok {
		return Celebration{}, ErrNotFound
	}
	return c, nil
}

func (m *memStore) Ledger(_ context.Context, id string) ([]LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LedgerEntry, len(m.ledgers[id]))
	copy(out, m.ledgers[id])
	return out, nil
}

func (m *memStore) Create(_ context.Context, c Celebration, _ string) (Celebration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.celebrations[c.ID]; exists {
		return Celebration{}, fmt.Errorf("celebration: duplicate id %s", c.ID)
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	m.celebrations[c.ID] = c
	m.outboxTopics = append(m.outboxTopics, OutboxTopicPledged)
	return c, nil
}

func (m *memStore) ApplyTransition(_ context.Context, rec TransitionRecord) (LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.celebrations[rec.CelebrationID]
	if !ok {
		return LedgerEntry{}, ErrNotFound
	}
	if c.CurrentStatus != rec.Expected {
		return LedgerEntry{}, fmt.Errorf("%w: expected %s, found %s", ErrStaleTransition, rec.Expected, c.CurrentStatus)
	}

	c.CurrentStatus = rec.Next
	c.UpdatedAt = rec.At
	m.celebrations[rec.CelebrationID] = c

	entry := LedgerEntry{
		ID:             fmt.Sprintf("entry-%d", len(m.ledgers[rec.CelebrationID])+1),
		CelebrationID:  rec.CelebrationID,
		Seq:            len(m.ledgers[rec.CelebrationID]) + 1,
		PreviousStatus: rec.Expected,
		NewStatus:      rec.Next,
		Reason:         rec.Reason,
		CreatedAt:      rec.At,
	}
	m.ledgers[rec.CelebrationID] = append(m.ledgers[rec.CelebrationID], entry)
	m.outboxTopics = append(m.outboxTopics, OutboxTopicStatusChanged)
	return entry, nil
}

func (m *memStore) ListSessionExpired(_ context.Context, sittingCongress int) ([]Celebration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Celebration, 0)
	for _, c := range m.celebrations {
		if c.CongressNumber < sittingCongress && !IsTerminal(c.CurrentStatus) {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeGate struct {
	decision donation.PledgeDecision
	err      error
}

func (f *fakeGate) CheckPledge(context.Context, string, string, int64, time.Time) (donation.PledgeDecision, error) {
	return f.decision, f.err
}

func pinnedClock() func() time.Time {
	return func() time.Time { return time.Date(2025, time.August, 29, 12, 0, 0, 0, time.Local) }
}

func seedCelebration(store *memStore, id string, status Status, congress int) {
	store.celebrations[id] = Celebration{
		ID:             id,
		DonatedBy:      "donor-1",
		Donee:          "rec-1",
		CurrentStatus:  status,
		CongressNumber: congress,
	}
}

func TestPledge_CreatesActiveCelebration(t *testing.T) {
	store := newMemStore()
	gate := &fakeGate{decision: donation.PledgeDecision{Allowed: true}}
	svc := NewService(store, gate).
		WithClock(pinnedClock()).
		WithIDGenerator(func() string { return "celebration-1" })

	c, err := svc.Pledge(context.Background(), PledgeParams{
		DonorID:       "donor-1",
		RecipientID:   "rec-1",
		AmountCents:   1_000_00,
		TipCents:      50_00,
		BillReference: "hr-1234",
	})
	if err != nil {
		t.Fatal(err)
	}
	if c.CurrentStatus != StatusActive {
		t.Errorf("expected active, got %s", c.CurrentStatus)
	}
	if c.CongressNumber != 119 {
		t.Errorf("expected congress 119, got %d", c.CongressNumber)
	}
	if len(store.outboxTopics) != 1 || store.outboxTopics[0] != OutboxTopicPledged {
		t.Errorf("expected one pledge outbox message, got %v", store.outboxTopics)
	}
}

func TestPledge_DeniedWhenOverLimit(t *testing.T) {
	store := newMemStore()
	gate := &fakeGate{decision: donation.PledgeDecision{Allowed: false}}
	svc := NewService(store, gate).WithClock(pinnedClock())

	_, err := svc.Pledge(context.Background(), PledgeParams{
		DonorID:       "donor-1",
		RecipientID:   "rec-1",
		AmountCents:   9_999_00,
		BillReference: "hr-1234",
	})
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
	if len(store.celebrations) != 0 {
		t.Error("denied pledge must not create a celebration")
	}
}

func TestTransition_SessionEndedThenStale(t *testing.T) {
	store := newMemStore()
	seedCelebration(store, "c1", StatusActive, 118)
	svc := NewService(store, nil).WithClock(pinnedClock())

	entry, err := svc.Transition(context.Background(), TransitionParams{
		CelebrationID: "c1",
		Trigger:       TriggerSessionEnded,
		Reason:        "session ended",
	})
	if err != nil {
		t.Fatal(err)
	}
	if entry.PreviousStatus != StatusActive || entry.NewStatus != StatusDefunct {
		t.Errorf("unexpected ledger entry: %+v", entry)
	}
	if got := len(store.ledgers["c1"]); got != 1 {
		t.Fatalf("expected exactly one ledger entry, got %d", got)
	}

	_, err = svc.Transition(context.Background(), TransitionParams{
		CelebrationID: "c1",
		Trigger:       TriggerSessionEnded,
		Reason:        "session ended again",
	})
	if !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("expected ErrStaleTransition on replay, got %v", err)
	}
	if got := len(store.ledgers["c1"]); got != 1 {
		t.Fatalf("replay must append nothing, ledger has %d entries", got)
	}
}

// A challenger webhook landing after the Congress has left session must not
// reactivate a paused Celebration, even if the sweep has not caught it yet.
func TestTransition_ReactivationAfterSessionEndIsStale(t *testing.T) {
	store := newMemStore()
	seedCelebration(store, "c1", StatusPaused, 118)
	svc := NewService(store, nil).WithClock(pinnedClock())

	_, err := svc.Transition(context.Background(), TransitionParams{
		CelebrationID: "c1",
		Trigger:       TriggerChallengerReappeared,
		Reason:        "challenger filed again",
	})
	if !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("expected ErrStaleTransition for reactivation after session end, got %v", err)
	}
	if got := len(store.ledgers["c1"]); got != 0 {
		t.Fatalf("late reactivation must append nothing, ledger has %d entries", got)
	}
	c, err := store.GetByID(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if c.CurrentStatus != StatusPaused {
		t.Fatalf("expected status to remain paused, got %s", c.CurrentStatus)
	}

	// same trigger against the sitting Congress still reactivates
	seedCelebration(store, "c2", StatusPaused, 119)
	entry, err := svc.Transition(context.Background(), TransitionParams{
		CelebrationID: "c2",
		Trigger:       TriggerChallengerReappeared,
		Reason:        "challenger filed again",
	})
	if err != nil {
		t.Fatalf("in-session reactivation: %v", err)
	}
	if entry.NewStatus != StatusActive {
		t.Fatalf("expected active, got %s", entry.NewStatus)
	}
}

func TestTransition_NotFound(t *testing.T) {
	svc := NewService(newMemStore(), nil)
	_, err := svc.Transition(context.Background(), TransitionParams{
		CelebrationID: "missing",
		Trigger:       TriggerSessionEnded,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// Two triggers that read the same snapshot race for the conditional write:
// exactly one wins, the ledger gains exactly one entry, and the loser
// observes ErrStaleTransition.
func TestApplyTransition_RaceHasOneWinner(t *testing.T) {
	store := newMemStore()
	seedCelebration(store, "c1", StatusPaused, 118)
	at := pinnedClock()()

	attempts := []TransitionRecord{
		{CelebrationID: "c1", Expected: StatusPaused, Next: StatusActive, Reason: "challenger reappeared", At: at},
		{CelebrationID: "c1", Expected: StatusPaused, Next: StatusDefunct, Reason: "session ended", At: at},
	}

	errs := make([]error, len(attempts))
	g := new(errgroup.Group)
	for i, rec := range attempts {
		g.Go(func() error {
			_, errs[i] = store.ApplyTransition(context.Background(), rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	var wins, stales int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrStaleTransition):
			stales++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || stales != 1 {
		t.Fatalf("expected 1 winner and 1 stale, got %d winners, %d stale", wins, stales)
	}
	if got := len(store.ledgers["c1"]); got != 1 {
		t.Fatalf("expected exactly one ledger entry, got %d", got)
	}
}

func TestEvaluate_SessionEndTakesPrecedence(t *testing.T) {
	store := newMemStore()
	seedCelebration(store, "c1", StatusPaused, 118)
	svc := NewService(store, nil).WithClock(pinnedClock())

	results := svc.Evaluate(context.Background(), "c1", []Trigger{
		TriggerChallengerReappeared,
		TriggerSessionEnded,
	})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	if results[0].Trigger != TriggerSessionEnded {
		t.Fatalf("session end must be evaluated first, got %s", results[0].Trigger)
	}
	if results[0].Err != nil {
		t.Fatalf("session end should win: %v", results[0].Err)
	}
	if !errors.Is(results[1].Err, ErrStaleTransition) {
		t.Fatalf("challenger reappearance should be stale, got %v", results[1].Err)
	}

	c, ledger, err := svc.Get(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if c.CurrentStatus != StatusDefunct {
		t.Errorf("expected defunct, got %s", c.CurrentStatus)
	}
	if len(ledger) != 1 {
		t.Errorf("expected exactly one ledger entry, got %d", len(ledger))
	}
}

// The current status must always equal the newStatus of the last ledger
// entry.
func TestLedgerInvariant(t *testing.T) {
	store := newMemStore()
	seedCelebration(store, "c1", StatusActive, 119)
	svc := NewService(store, nil).WithClock(pinnedClock())

	steps := []Trigger{TriggerChallengerLost, TriggerChallengerReappeared, TriggerBillResolved}
	for _, trigger := range steps {
		if _, err := svc.Transition(context.Background(), TransitionParams{
			CelebrationID: "c1",
			Trigger:       trigger,
			Reason:        string(trigger),
		}); err != nil {
			t.Fatalf("%s: %v", trigger, err)
		}

		c, ledger, err := svc.Get(context.Background(), "c1")
		if err != nil {
			t.Fatal(err)
		}
		if len(ledger) == 0 {
			t.Fatal("expected ledger entries")
		}
		last := ledger[len(ledger)-1]
		if c.CurrentStatus != last.NewStatus {
			t.Fatalf("status %s diverged from last ledger entry %s", c.CurrentStatus, last.NewStatus)
		}
		if last.Seq != len(ledger) {
			t.Fatalf("ledger sequence gap: last seq %d with %d entries", last.Seq, len(ledger))
		}
	}
}
