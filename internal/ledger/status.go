package ledger

import (
	"fmt"

	"krishisetu-api-server/internal/models"
)

// stage orders the non-terminal statuses; both terminal statuses sit at the end.
var stage = map[models.BookingStatus]int{
	models.BookingPending:   0,
	models.BookingConfirmed: 1,
	models.BookingActive:    2,
	models.BookingCompleted: 3,
	models.BookingCancelled: 3,
}

func IsTerminal(s models.BookingStatus) bool {
	return s == models.BookingCompleted || s == models.BookingCancelled
}

// holdsCapacity reports whether a booking in status s counts against availableCapacity.
func holdsCapacity(s models.BookingStatus) bool {
	_, known := stage[s]
	return known && !IsTerminal(s)
}

func ParseStatus(s string) (models.BookingStatus, error) {
	status := models.BookingStatus(s)
	if _, ok := stage[status]; !ok {
		return "", fmt.Errorf("unknown booking status %q: %w", s, ErrValidation)
	}
	return status, nil
}

// checkTransition enforces: nothing leaves a terminal status, cancellation is
// reachable from every other status, and otherwise status only moves forward.
func checkTransition(from, to models.BookingStatus) error {
	if IsTerminal(from) {
		if from == to {
			return fmt.Errorf("booking is already %s: %w", from, ErrAlreadyTerminal)
		}
		return fmt.Errorf("booking is %s, cannot move to %s: %w", from, to, ErrInvalidTransition)
	}
	if to == models.BookingCancelled {
		return nil
	}
	if stage[to] < stage[from] {
		return fmt.Errorf("cannot move booking from %s back to %s: %w", from, to, ErrInvalidTransition)
	}
	return nil
}
