package recur

import (
	"iter"
	"slices"
	"time"

	"recurcal/internal/tzdb"
)

// windowMargin widens a window's wall-clock bounds so that no candidate is
// missed whatever offset the zone applies at either end.
const windowMargin = 2 // days

// Occurrence is one concrete instance of a recurring event.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// Duration returns the elapsed time between Start and End, which differs
// from the template duration when a transition falls inside the occurrence.
func (o Occurrence) Duration() time.Duration { return o.End.Sub(o.Start) }

// ZoneSource looks up timezone rules by identifier.
type ZoneSource interface {
	Load(name string) (*tzdb.Zone, error)
}

// Materialize builds the occurrence starting at the wall time start. The end
// is start plus d on the wall clock, resolved on its own, so an occurrence
// keeps its nominal local length across a transition.
func Materialize(r Resolver, start Wall, d time.Duration) Occurrence {
	return Occurrence{
		Start: r.Instant(start),
		End:   r.Instant(start.Add(d)),
	}
}

// Expand returns the occurrences of p anchored at t whose start falls in w,
// in ascending order. All validation happens before Expand returns; the
// sequence itself cannot fail. A nil zones uses tzdb.Default.
//
// The sequence is lazy: nothing past the first start at or after w.To is
// computed, and a consumer may stop early.
func Expand(p Pattern, t Template, w Window, zones ZoneSource) (iter.Seq[Occurrence], error) {
	g, r, err := prepare(p, t, zones)
	if err != nil {
		return nil, err
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	loc := r.Zone().Location()
	lo := WallOf(w.From.In(loc)).AddDate(0, 0, -windowMargin)
	hi := WallOf(w.To.In(loc)).AddDate(0, 0, windowMargin)

	return func(yield func(Occurrence) bool) {
		for start, at := range r.Starts(g.Between(lo, hi)) {
			switch w.Admit(at) {
			case Skip:
				continue
			case Stop:
				return
			}
			occ := Occurrence{Start: at, End: r.Instant(start.Add(t.Duration))}
			if !yield(occ) {
				return
			}
		}
	}, nil
}

// Occurrences collects Expand into a slice.
func Occurrences(p Pattern, t Template, w Window, zones ZoneSource) ([]Occurrence, error) {
	seq, err := Expand(p, t, w, zones)
	if err != nil {
		return nil, err
	}
	return slices.Collect(seq), nil
}

// Next returns the first occurrence starting at or after the instant after.
// The boolean is false when the pattern has no such occurrence.
func Next(p Pattern, t Template, after time.Time, zones ZoneSource) (Occurrence, bool, error) {
	g, r, err := prepare(p, t, zones)
	if err != nil {
		return Occurrence{}, false, err
	}

	from := WallOf(after.In(r.Zone().Location())).AddDate(0, 0, -windowMargin)
	for start, at := range r.Starts(g.From(g.BlockAt(from))) {
		if !at.Before(after) {
			return Materialize(r, start, t.Duration), true, nil
		}
	}
	return Occurrence{}, false, nil
}

func prepare(p Pattern, t Template, zones ZoneSource) (*Generator, Resolver, error) {
	if err := t.Validate(); err != nil {
		return nil, Resolver{}, err
	}
	g, err := NewGenerator(p, t.Start)
	if err != nil {
		return nil, Resolver{}, err
	}
	if zones == nil {
		zones = tzdb.Default
	}
	z, err := zones.Load(t.Zone)
	if err != nil {
		return nil, Resolver{}, err
	}
	return g, NewResolver(z), nil
}
