package recipient

import "time"

// Recipient is a candidate or officeholder that donations are pledged toward.
type Recipient struct {
	ID            string
	Name          string
	OCDDistrictID string
	Office        string
	State         string
	SeatClass     string
	CreatedAt     time.Time
}

// HasSeatMetadata reports whether the recipient carries enough seat
// information to resolve an election cycle. Recipients without it cannot be
// validated against contribution limits.
func (r Recipient) HasSeatMetadata() bool {
	return r.OCDDistrictID != "" && r.Office != ""
}

// District is the civics collaborator's view of a congressional district.
type District struct {
	OCDDistrictID  string
	Representative string
}
