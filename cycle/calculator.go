// Package cycle implements federal election-cycle date arithmetic. Everything
// here is a pure function over time.Time values; callers inject "now" so tests
// can pin the clock.
package cycle

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDate signals a malformed or out-of-range date input. It is never
// recovered locally; the calculator has no I/O so there is nothing to retry.
var ErrInvalidDate = errors.New("cycle: invalid date")

// firstElectionYear is the earliest year with a federal general election.
const firstElectionYear = 1788

// longDateFormat renders boundaries as "January 1, 2027".
const longDateFormat = "January 2, 2006"

// Cycle is a two-calendar-year contribution accounting window. Start is
// January 1 of an odd year; End is December 31 of the following even year.
type Cycle struct {
	Start time.Time
	End   time.Time
}

// GeneralElectionDate returns the federal general election date for an even
// year: the first Tuesday after the first Monday of November, at midnight
// local time. That is always the Tuesday falling on November 2-8; naive
// weekday arithmetic can land on November 1, which the statute excludes
// because no Monday precedes it, so that case shifts forward one week.
func GeneralElectionDate(year int) (time.Time, error) {
	if year < firstElectionYear || year%2 != 0 {
		return time.Time{}, fmt.Errorf("%w: no general election in year %d", ErrInvalidDate, year)
	}

	nov1 := time.Date(year, time.November, 1, 0, 0, 0, 0, time.Local)
	daysUntilTuesday := (int(time.Tuesday) - int(nov1.Weekday()) + 7) % 7
	d := nov1.AddDate(0, 0, daysUntilTuesday)
	if d.Day() == 1 {
		d = d.AddDate(0, 0, 7)
	}
	return d, nil
}

// CurrentCycle returns the campaign cycle containing ref. An odd reference
// year starts its own cycle; an even year belongs to the cycle started the
// previous year.
func CurrentCycle(ref time.Time) (Cycle, error) {
	if err := validate(ref); err != nil {
		return Cycle{}, err
	}

	startYear := ref.Year()
	if startYear%2 == 0 {
		startYear--
	}
	return Cycle{
		Start: time.Date(startYear, time.January, 1, 0, 0, 0, 0, time.Local),
		End:   time.Date(startYear+1, time.December, 31, 0, 0, 0, 0, time.Local),
	}, nil
}

// Next returns the cycle immediately following c, both boundaries advanced by
// exactly two years.
func (c Cycle) Next() Cycle {
	return Cycle{
		Start: c.Start.AddDate(2, 0, 0),
		End:   c.End.AddDate(2, 0, 0),
	}
}

// ElectionDate returns the general election date of c's even year.
func (c Cycle) ElectionDate() (time.Time, error) {
	return GeneralElectionDate(c.End.Year())
}

// ContainsDonation reports whether a donation dated at donated counts toward
// c. The accounting boundary is the general election date, not December 31: a
// donation strictly before election day belongs to the cycle ending there,
// and one dated exactly on election day does not. The strict comparison
// mirrors longstanding behavior; do not loosen it.
func (c Cycle) ContainsDonation(donated time.Time) (bool, error) {
	if err := validate(donated); err != nil {
		return false, err
	}
	elect, err := c.ElectionDate()
	if err != nil {
		return false, err
	}
	return !donated.Before(c.Start) && donated.Before(elect), nil
}

// NextCycleStart formats the start of the cycle after the one containing ref,
// e.g. "January 1, 2027".
func NextCycleStart(ref time.Time) (string, error) {
	c, err := CurrentCycle(ref)
	if err != nil {
		return "", err
	}
	return c.Next().Start.Format(longDateFormat), nil
}

// NextCycleEnd formats the end of the cycle after the one containing ref,
// e.g. "December 31, 2028".
func NextCycleEnd(ref time.Time) (string, error) {
	c, err := CurrentCycle(ref)
	if err != nil {
		return "", err
	}
	return c.Next().End.Format(longDateFormat), nil
}

// WithinCurrentCycle reports whether a donation dated at donated falls in the
// cycle considered current as of now. A donation strictly before the election
// date of its own cycle is in that cycle. Past that date the donation rolls
// into the following cycle's window, which only counts while now itself has
// not passed that cycle's election date: a cycle is current only while it is
// chronologically reachable and not yet superseded.
func WithinCurrentCycle(donated, now time.Time) (bool, error) {
	if err := validate(donated); err != nil {
		return false, err
	}
	if err := validate(now); err != nil {
		return false, err
	}

	c, err := CurrentCycle(donated)
	if err != nil {
		return false, err
	}
	elect, err := c.ElectionDate()
	if err != nil {
		return false, err
	}
	if donated.Before(elect) {
		return true, nil
	}

	nextElect, err := c.Next().ElectionDate()
	if err != nil {
		return false, err
	}
	return donated.Before(nextElect) && now.Before(nextElect), nil
}

// ElectionBoundary returns the general election a date's contributions
// accrue toward: the containing cycle's election while the date is strictly
// before it, otherwise the following cycle's. Two dates with equal boundaries
// count toward the same election.
func ElectionBoundary(ref time.Time) (time.Time, error) {
	c, err := CurrentCycle(ref)
	if err != nil {
		return time.Time{}, err
	}
	elect, err := c.ElectionDate()
	if err != nil {
		return time.Time{}, err
	}
	if ref.Before(elect) {
		return elect, nil
	}
	return c.Next().ElectionDate()
}

func validate(t time.Time) error {
	if t.IsZero() {
		return fmt.Errorf("%w: zero time", ErrInvalidDate)
	}
	if t.Year() < firstElectionYear {
		return fmt.Errorf("%w: year %d predates federal elections", ErrInvalidDate, t.Year())
	}
	return nil
}
