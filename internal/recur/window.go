package recur

import (
	"fmt"
	"time"
)

// Window is the half-open query range [From, To) in absolute time.
type Window struct {
	From time.Time
	To   time.Time
}

// NewWindow returns a validated window.
func NewWindow(from, to time.Time) (Window, error) {
	w := Window{From: from, To: to}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// Validate requires From to be strictly before To.
func (w Window) Validate() error {
	if !w.From.Before(w.To) {
		return fmt.Errorf("%w: from %s is not before to %s",
			ErrInvalidWindow, w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether From <= t < To.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// Verdict is the window's decision on one start in an ascending stream.
type Verdict int

const (
	// Keep passes the start through.
	Keep Verdict = iota
	// Skip drops the start; later ones may still fall inside.
	Skip
	// Stop drops the start and every start after it.
	Stop
)

// Admit classifies start, assuming starts arrive in ascending order.
func (w Window) Admit(start time.Time) Verdict {
	switch {
	case start.Before(w.From):
		return Skip
	case start.Before(w.To):
		return Keep
	default:
		return Stop
	}
}
