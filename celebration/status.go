package celebration

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no Celebration exists for the identifier.
	ErrNotFound = errors.New("celebration: not found")
	// ErrStaleTransition rejects a transition whose expected previous
	// status no longer matches: the caller lost a race or the Celebration
	// is already terminal. It is expected under concurrency; re-read the
	// current state before retrying, at most once.
	ErrStaleTransition = errors.New("celebration: stale transition")
)

// IsTerminal reports whether no transition is defined out of s.
func IsTerminal(s Status) bool {
	return s == StatusResolved || s == StatusDefunct
}

// NextStatus resolves the target status for a trigger fired against the
// current status. Triggers that do not apply (including any trigger against
// a terminal status) are rejected with ErrStaleTransition rather than
// silently ignored, so callers can detect stale triggers.
func NextStatus(current Status, t Trigger) (Status, error) {
	switch t {
	case TriggerChallengerLost:
		if current == StatusActive {
			return StatusPaused, nil
		}
	case TriggerChallengerReappeared:
		if current == StatusPaused {
			return StatusActive, nil
		}
	case TriggerBillResolved:
		if current == StatusActive {
			return StatusResolved, nil
		}
	case TriggerSessionEnded:
		if current == StatusActive || current == StatusPaused {
			return StatusDefunct, nil
		}
	default:
		return "", fmt.Errorf("celebration: unknown trigger %q", t)
	}
	return "", fmt.Errorf("%w: trigger %s does not apply to status %s", ErrStaleTransition, t, current)
}

// triggerPrecedence orders triggers within a single evaluation pass. Session
// end is irreversible and reflects a hard real-world deadline, so it wins
// over a simultaneous challenger reappearance.
func triggerPrecedence(t Trigger) int {
	switch t {
	case TriggerSessionEnded:
		return 0
	case TriggerBillResolved:
		return 1
	case TriggerChallengerLost:
		return 2
	case TriggerChallengerReappeared:
		return 3
	default:
		return 4
	}
}
