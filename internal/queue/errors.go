package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEligibleEntry - nobody is waiting for the station
	ErrNoEligibleEntry = errors.New("no eligible entry waiting for this station")
	// ErrEntryNotEligible - the entry cannot take this transition in its current state
	ErrEntryNotEligible = errors.New("entry is not eligible for this station")
	// ErrNoOpenVisit - no CALLED or IN_PROGRESS visit for (entry, station)
	ErrNoOpenVisit = errors.New("no open visit for this entry at this station")
	// ErrRecallThresholdNotMet is matched by *RecallThresholdError.
	ErrRecallThresholdNotMet = errors.New("recall threshold not met")
	// ErrCooldownActive is only returned when strict cooldown is enabled.
	ErrCooldownActive = errors.New("recall cooldown still running")

	ErrEntryNotFound   = errors.New("queue entry not found")
	ErrUnknownStation  = errors.New("unknown station")
	ErrReceptionClosed = errors.New("reception is closed")

	// ErrConflict is returned by stores when a concurrent mutation won.
	// The controller never returns it to callers.
	ErrConflict = errors.New("concurrent modification")
)

// RecallThresholdError reports how many recalls a visit has so far, so the
// caller can render "x/3".
type RecallThresholdError struct {
	Count    int
	Required int
}

func (e *RecallThresholdError) Error() string {
	return fmt.Sprintf("cancel needs %d recalls, entry has %d", e.Required, e.Count)
}

func (e *RecallThresholdError) Is(target error) bool {
	return target == ErrRecallThresholdNotMet
}
