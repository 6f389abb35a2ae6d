// Package compliance derives a donor's regulatory tier from profile
// completeness. The tier is a derived view, never persisted, so it cannot
// drift from the underlying fields.
package compliance

import "civicpledge/donor"

// Tier classifies a donor's disclosure completeness.
type Tier string

const (
	// TierIncomplete covers donors missing any FEC-mandated field. Only a
	// nominal first-donation allowance applies.
	TierIncomplete Tier = "incomplete"
	// TierBasic covers donors with all required fields present but
	// employment disclosure not yet reconciled. A fixed per-cycle ceiling
	// applies.
	TierBasic Tier = "basic"
	// TierCompliant covers fully disclosed donors. The statutory
	// per-election limit applies, bucketed per election rather than per
	// cycle.
	TierCompliant Tier = "compliant"
)

// Contribution ceilings in cents per recipient.
const (
	// CeilingIncompleteCents is the nominal first-donation allowance.
	CeilingIncompleteCents int64 = 50_00
	// CeilingBasicCents applies per cycle.
	CeilingBasicCents int64 = 200_00
	// CeilingCompliantCents applies per election (primary and general are
	// separate buckets).
	CeilingCompliantCents int64 = 3_300_00
)

// Classify derives the tier for a donor profile. The derivation is pure and
// idempotent; call it again after any profile mutation.
func Classify(p donor.Profile) Tier {
	if !p.HasFullName() || !p.HasCompleteAddress() || !p.HasEmploymentDisclosure() {
		return TierIncomplete
	}
	if p.IsEmployed && !p.EmploymentVerified {
		return TierBasic
	}
	return TierCompliant
}

// Ceiling returns the contribution ceiling in cents for a tier.
func Ceiling(t Tier) int64 {
	switch t {
	case TierBasic:
		return CeilingBasicCents
	case TierCompliant:
		return CeilingCompliantCents
	default:
		return CeilingIncompleteCents
	}
}

// PerElection reports whether the tier's ceiling is accounted per election
// instead of per cycle.
func PerElection(t Tier) bool {
	return t == TierCompliant
}
