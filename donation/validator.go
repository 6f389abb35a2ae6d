package donation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civicpledge/compliance"
	"civicpledge/cycle"
	"civicpledge/donor"
	"civicpledge/recipient"
)

// ErrUnresolvableRecipient signals that the recipient has no resolvable
// election-cycle metadata. The donation request is blocked rather than
// falling back to an arbitrary ceiling.
var ErrUnresolvableRecipient = errors.New("donation: recipient election cycle unresolvable")

// primaryCutoffMonth/Day split an election year into the primary and general
// accounting buckets for the compliant tier.
const (
	primaryCutoffMonth = time.June
	primaryCutoffDay   = 30
)

type donorReader interface {
	GetByID(ctx context.Context, donorID string) (donor.Profile, error)
}

type recipientReader interface {
	GetByID(ctx context.Context, id string) (recipient.Recipient, error)
}

// LimitResult answers how much headroom remains for a donor toward a
// recipient, and when the applicable bucket resets.
type LimitResult struct {
	RemainingCents int64
	Tier           compliance.Tier
	ResetDate      time.Time
}

// PledgeDecision is LimitResult plus the accept/deny gate for a specific
// pledge amount.
type PledgeDecision struct {
	LimitResult
	Allowed bool
}

// Validator computes remaining contribution headroom. It is a pure read:
// one consistent history fetch, no writes, no retained state.
type Validator struct {
	donors     donorReader
	recipients recipientReader
	history    Repository
	now        func() time.Time
}

// NewValidator builds a Validator over the given stores.
func NewValidator(donors donorReader, recipients recipientReader, history Repository) *Validator {
	return &Validator{
		donors:     donors,
		recipients: recipients,
		history:    history,
		now:        time.Now,
	}
}

// WithClock overrides the clock for deterministic tests.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// RemainingLimit computes the headroom for donorID toward recipientID as of
// at. A zero at means now. The result never goes negative regardless of how
// far history exceeds the ceiling.
func (v *Validator) RemainingLimit(ctx context.Context, donorID, recipientID string, at time.Time) (LimitResult, error) {
	if at.IsZero() {
		at = v.now()
	}

	profile, err := v.donors.GetByID(ctx, donorID)
	if err != nil {
		return LimitResult{}, err
	}

	rec, err := v.recipients.GetByID(ctx, recipientID)
	if err != nil {
		return LimitResult{}, err
	}
	if !rec.HasSeatMetadata() {
		return LimitResult{}, fmt.Errorf("%w: recipient %s has no seat metadata", ErrUnresolvableRecipient, rec.ID)
	}

	tier := compliance.Classify(profile)

	history, err := v.history.ListByDonorRecipient(ctx, donorID, recipientID)
	if err != nil {
		return LimitResult{}, err
	}

	boundary, err := cycle.ElectionBoundary(at)
	if err != nil {
		return LimitResult{}, err
	}

	var reset time.Time
	if compliance.PerElection(tier) {
		reset = electionBucketReset(at, boundary)
	} else {
		cyc, err := cycle.CurrentCycle(at)
		if err != nil {
			return LimitResult{}, err
		}
		reset = cyc.Next().Start
	}

	var sum int64
	for _, d := range history {
		counts, err := v.countsTowardBucket(d, at, boundary, tier)
		if err != nil {
			return LimitResult{}, err
		}
		if counts {
			sum += d.AmountCents
		}
	}

	remaining := compliance.Ceiling(tier) - sum
	if remaining < 0 {
		remaining = 0
	}

	return LimitResult{
		RemainingCents: remaining,
		Tier:           tier,
		ResetDate:      reset,
	}, nil
}

// CheckPledge gates a prospective pledge of amountCents against the current
// headroom.
func (v *Validator) CheckPledge(ctx context.Context, donorID, recipientID string, amountCents int64, at time.Time) (PledgeDecision, error) {
	if amountCents <= 0 {
		return PledgeDecision{}, fmt.Errorf("donation: invalid pledge amount %d", amountCents)
	}

	res, err := v.RemainingLimit(ctx, donorID, recipientID, at)
	if err != nil {
		return PledgeDecision{}, err
	}
	return PledgeDecision{
		LimitResult: res,
		Allowed:     amountCents <= res.RemainingCents,
	}, nil
}

// countsTowardBucket reports whether a historical donation accrues against
// the bucket at draws from. All tiers require the donation to target the same
// election boundary as at; the compliant tier additionally splits the
// election year into primary and general buckets.
func (v *Validator) countsTowardBucket(d Donation, at, boundary time.Time, tier compliance.Tier) (bool, error) {
	in, err := cycle.WithinCurrentCycle(d.DonatedAt, at)
	if err != nil {
		return false, err
	}
	if !in {
		return false, nil
	}

	donatedBoundary, err := cycle.ElectionBoundary(d.DonatedAt)
	if err != nil {
		return false, err
	}
	if !donatedBoundary.Equal(boundary) {
		return false, nil
	}

	if !compliance.PerElection(tier) {
		return true, nil
	}
	return inPrimaryBucket(d.DonatedAt, boundary) == inPrimaryBucket(at, boundary), nil
}

func primaryCutoff(boundary time.Time) time.Time {
	return time.Date(boundary.Year(), primaryCutoffMonth, primaryCutoffDay, 0, 0, 0, 0, boundary.Location())
}

func inPrimaryBucket(t, boundary time.Time) bool {
	return t.Before(primaryCutoff(boundary))
}

// electionBucketReset is the instant the compliant tier's active bucket
// closes: the primary cutoff while inside the primary bucket, election day
// otherwise.
func electionBucketReset(at, boundary time.Time) time.Time {
	if inPrimaryBucket(at, boundary) {
		return primaryCutoff(boundary)
	}
	return boundary
}
