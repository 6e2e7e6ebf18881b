package recur

import (
	"iter"
	"time"

	"recurcal/internal/tzdb"
)

// Fold classifies how a wall-clock time maps onto a zone.
type Fold int

const (
	// FoldNone means the wall time occurs exactly once.
	FoldNone Fold = iota
	// FoldGap means the clock skipped over the wall time.
	FoldGap
	// FoldOverlap means the clock showed the wall time twice.
	FoldOverlap
)

func (f Fold) String() string {
	switch f {
	case FoldGap:
		return "gap"
	case FoldOverlap:
		return "overlap"
	default:
		return "none"
	}
}

// Resolver turns wall-clock times into instants using the rules a zone had
// on the date in question. It is a value and safe to share.
type Resolver struct {
	zone *tzdb.Zone
}

// NewResolver returns a resolver for z.
func NewResolver(z *tzdb.Zone) Resolver {
	return Resolver{zone: z}
}

// Zone returns the zone the resolver applies.
func (r Resolver) Zone() *tzdb.Zone { return r.zone }

// Instant returns the instant for w, located in the resolver's zone.
func (r Resolver) Instant(w Wall) time.Time {
	t, _ := r.Resolve(w)
	return t
}

// Resolve returns the instant for w and how it was chosen.
//
// A wall time inside a spring-forward gap moves forward by the size of the
// gap, which is the same as reading it with the offset from before the
// transition. An ambiguous wall time inside a fall-back overlap resolves to
// its first, pre-transition occurrence.
func (r Resolver) Resolve(w Wall) (time.Time, Fold) {
	loc := r.zone.Location()
	u := w.utc()
	span := r.zone.At(u)

	// The true instant lies within a day of u, so only the transitions
	// bracketing u's span can affect it.
	for _, tr := range [...]time.Time{span.Start, span.End} {
		if tr.IsZero() {
			continue
		}
		before := r.zone.OffsetAt(tr.Add(-time.Nanosecond))
		after := r.zone.OffsetAt(tr)
		if before == after {
			continue
		}
		lo := tr.Add(seconds(min(before, after)))
		hi := tr.Add(seconds(max(before, after)))
		if u.Before(lo) || !u.Before(hi) {
			continue
		}
		fold := FoldOverlap
		if after > before {
			fold = FoldGap
		}
		return u.Add(-seconds(before)).In(loc), fold
	}

	offsets := []int{span.Offset}
	if !span.Start.IsZero() {
		offsets = append(offsets, r.zone.OffsetAt(span.Start.Add(-time.Nanosecond)))
	}
	if !span.End.IsZero() {
		offsets = append(offsets, r.zone.OffsetAt(span.End))
	}
	for _, off := range offsets {
		t := u.Add(-seconds(off))
		if r.zone.OffsetAt(t) == off {
			return t.In(loc), FoldNone
		}
	}
	return u.Add(-seconds(span.Offset)).In(loc), FoldNone
}

// Starts resolves each wall time of seq and yields it with its instant,
// dropping any whose instant is not strictly after the last one yielded. A
// transition that skips a whole day moves a candidate onto the instant of
// the next one.
func (r Resolver) Starts(seq iter.Seq[Wall]) iter.Seq2[Wall, time.Time] {
	return func(yield func(Wall, time.Time) bool) {
		var last time.Time
		seen := false
		for w := range seq {
			at := r.Instant(w)
			if seen && !at.After(last) {
				continue
			}
			last, seen = at, true
			if !yield(w, at) {
				return
			}
		}
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
