package domain

import (
	"fmt"
	"time"
)

// DefaultJoinWindow matches the behavior the original product enforced.
// Operators can widen it via configuration.
const DefaultJoinWindow = 5 * time.Minute

// JoinPolicy decides whether a video room is reachable around a slot
// start. It is a pure function of two instants and the half-window; the
// caller is responsible for checking the appointment is confirmed and
// the requester is a participant.
type JoinPolicy struct {
	Window time.Duration
}

type JoinDecision struct {
	Allowed    bool
	Reason     string
	UntilStart time.Duration // negative once the start has passed
}

func (p JoinPolicy) Decide(now, slotStart time.Time) JoinDecision {
	window := p.Window
	if window <= 0 {
		window = DefaultJoinWindow
	}

	until := slotStart.Sub(now)

	switch {
	case until > window:
		return JoinDecision{
			Reason:     fmt.Sprintf("consultation starts in %d minutes", ceilMinutes(until)),
			UntilStart: until,
		}
	case until < -window:
		return JoinDecision{
			Reason:     "consultation has ended",
			UntilStart: until,
		}
	default:
		return JoinDecision{Allowed: true, UntilStart: until}
	}
}

func ceilMinutes(d time.Duration) int {
	return int((d + time.Minute - time.Nanosecond) / time.Minute)
}
