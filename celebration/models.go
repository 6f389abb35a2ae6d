package celebration

import "time"

// Status is the lifecycle state of a pledged donation.
type Status string

const (
	// StatusActive is the initial state of every Celebration.
	StatusActive Status = "active"
	// StatusPaused means the recipient's seat is currently uncontested.
	StatusPaused Status = "paused"
	// StatusResolved is terminal: the referenced bill reached its
	// triggering outcome before session end.
	StatusResolved Status = "resolved"
	// StatusDefunct is terminal: the congressional session ended before
	// resolution.
	StatusDefunct Status = "defunct"
)

// Trigger identifies the external event driving a transition.
type Trigger string

const (
	TriggerChallengerLost       Trigger = "challenger_lost"
	TriggerChallengerReappeared Trigger = "challenger_reappeared"
	TriggerBillResolved         Trigger = "bill_resolved"
	TriggerSessionEnded         Trigger = "session_ended"
)

// Celebration is a pledged donation tracked from pledge to resolution.
// Rows are never deleted; terminal statuses are final markers.
type Celebration struct {
	ID                  string
	DonatedBy           string
	Donee               string
	DonationAmountCents int64
	TipAmountCents      int64
	CurrentStatus       Status
	BillReference       string
	CongressNumber      int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// LedgerEntry is one immutable status-change record. Insertion order (Seq)
// is the source of truth for history; entries are never edited or reordered.
type LedgerEntry struct {
	ID             string
	CelebrationID  string
	Seq            int
	PreviousStatus Status
	NewStatus      Status
	Reason         string
	CreatedAt      time.Time
}

const (
	// OutboxTopicPledged is published when a Celebration is created.
	OutboxTopicPledged = "celebration.pledged"
	// OutboxTopicStatusChanged is published on every committed transition.
	OutboxTopicStatusChanged = "celebration.status_changed"
)
