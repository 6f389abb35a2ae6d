package donation

import "time"

// Donation mirrors the donations table. Amounts are cents; TipCents goes to
// the platform and never counts against contribution limits.
type Donation struct {
	ID          string
	DonorID     string
	RecipientID string
	AmountCents int64
	TipCents    int64
	DonatedAt   time.Time
	CreatedAt   time.Time
}
