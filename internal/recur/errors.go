package recur

import "errors"

var (
	// ErrInvalidPattern reports a malformed recurrence rule.
	ErrInvalidPattern = errors.New("invalid recurrence pattern")
	// ErrInvalidWindow reports a query window whose start is not before its end.
	ErrInvalidWindow = errors.New("invalid window")
	// ErrInvalidTemplate reports an event template with a negative duration.
	ErrInvalidTemplate = errors.New("invalid event template")
)
