package cycle

import (
	"fmt"
	"time"
)

// firstCongressYear is the convening year of the 1st Congress.
const firstCongressYear = 1789

// congressConveneDay is the day in January on which a new Congress convenes.
const congressConveneDay = 3

// CongressNumber returns the ordinal of the Congress in session at ref. A
// Congress convenes on January 3 of each odd year, so odd-year dates before
// the 3rd still belong to the outgoing Congress. The boundary is deliberate:
// a session that ends in the first days of January is attributed to the
// Congress that held it, not the incoming one.
func CongressNumber(ref time.Time) (int, error) {
	if ref.IsZero() || ref.Year() < firstCongressYear {
		return 0, fmt.Errorf("%w: no Congress in session", ErrInvalidDate)
	}

	startYear := ref.Year()
	switch {
	case startYear%2 == 0:
		startYear--
	case ref.Before(time.Date(startYear, time.January, congressConveneDay, 0, 0, 0, 0, time.Local)):
		startYear -= 2
	}
	if startYear < firstCongressYear {
		return 0, fmt.Errorf("%w: no Congress in session", ErrInvalidDate)
	}
	return (startYear-firstCongressYear)/2 + 1, nil
}

// CongressEnd returns the instant the given Congress leaves session: the
// convening of its successor on January 3 two years after its own start.
func CongressEnd(number int) (time.Time, error) {
	if number < 1 {
		return time.Time{}, fmt.Errorf("%w: invalid congress number %d", ErrInvalidDate, number)
	}
	startYear := firstCongressYear + (number-1)*2
	return time.Date(startYear+2, time.January, congressConveneDay, 0, 0, 0, 0, time.Local), nil
}
