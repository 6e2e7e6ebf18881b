// Package tzdb looks up timezone rules by IANA identifier.
//
// A Zone answers two questions for any absolute instant: which UTC offset is
// in effect, and which transitions bracket it. Zones are immutable once
// loaded and may be shared between goroutines.
package tzdb

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	// Embed the zone database so lookups do not depend on the host.
	_ "time/tzdata"
)

// ErrUnknownZone is returned when an identifier has no rules in the database.
var ErrUnknownZone = errors.New("unknown timezone")

// Span describes the zone period in effect at an instant.
type Span struct {
	// Abbrev is the zone abbreviation, e.g. "CST".
	Abbrev string
	// Offset is seconds east of UTC.
	Offset int
	// Start is the transition that opened this span; zero if unbounded.
	Start time.Time
	// End is the transition that closes this span; zero if unbounded.
	End time.Time
}

// Zone is a loaded set of timezone rules.
type Zone struct {
	name string
	loc  *time.Location
}

// Name returns the identifier the zone was loaded with.
func (z *Zone) Name() string { return z.name }

// Location returns the underlying *time.Location.
func (z *Zone) Location() *time.Location { return z.loc }

// At returns the span in effect at instant t, using the rules that applied
// at that historical date.
func (z *Zone) At(t time.Time) Span {
	lt := t.In(z.loc)
	abbrev, offset := lt.Zone()
	start, end := lt.ZoneBounds()
	return Span{Abbrev: abbrev, Offset: offset, Start: start, End: end}
}

// OffsetAt returns the UTC offset in seconds in effect at instant t.
func (z *Zone) OffsetAt(t time.Time) int {
	_, offset := t.In(z.loc).Zone()
	return offset
}

// FromLocation wraps an already loaded location.
func FromLocation(loc *time.Location) *Zone {
	return &Zone{name: loc.String(), loc: loc}
}

// UTC is the zone with no offset and no transitions.
var UTC = FromLocation(time.UTC)

// Registry loads zones and keeps them for reuse.
type Registry struct {
	mu    sync.RWMutex
	zones map[string]*Zone
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{zones: make(map[string]*Zone)}
}

// Default is the process-wide registry.
var Default = NewRegistry()

// Load returns the zone for name. "Local" and the empty string are refused:
// an occurrence must never depend on the host's configured zone.
func (r *Registry) Load(name string) (*Zone, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownZone, name)
	}

	r.mu.RLock()
	z, ok := r.zones[name]
	r.mu.RUnlock()
	if ok {
		return z, nil
	}

	canonical := name
	if iana, ok := windowsZones[name]; ok {
		canonical = iana
	}
	loc, err := time.LoadLocation(canonical)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownZone, name)
	}
	z = &Zone{name: canonical, loc: loc}

	r.mu.Lock()
	if existing, ok := r.zones[name]; ok {
		z = existing
	} else {
		r.zones[name] = z
	}
	r.mu.Unlock()
	return z, nil
}

// Load is shorthand for Default.Load.
func Load(name string) (*Zone, error) {
	return Default.Load(name)
}
