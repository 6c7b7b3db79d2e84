package ledger

import "errors"

// Failure kinds surfaced to callers. Everything else is unexpected.
var (
	ErrValidation             = errors.New("validation error")
	ErrInsufficientCapacity   = errors.New("insufficient capacity available")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrAlreadyTerminal        = errors.New("booking already in terminal status")
	ErrNotAuthorized          = errors.New("not authorized")
	ErrNotFound               = errors.New("not found")
	ErrConcurrentModification = errors.New("concurrent modification")
)

// errNoChange tells the retry loop that the mutation decided nothing needs writing.
var errNoChange = errors.New("no change")
