package ics

import (
	"cmp"
	"errors"
	"slices"
	"time"

	appLog "recurcal/internal/log"
	"recurcal/internal/model"
	"recurcal/internal/recur"
	"recurcal/internal/tzdb"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone to which all occurrences will be converted.
	// If nil, UTC is used.
	DisplayLocation *time.Location

	// Window selects occurrences by start: From inclusive, To exclusive.
	Window recur.Window

	// MaxOccurrencesPerEvent is a safety cap per UID. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int

	// Zones resolves event timezones; nil uses tzdb.Default.
	Zones recur.ZoneSource
}

// ExpandResult wraps the expanded occurrences and the events that could not
// be fully expanded.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
	// FailedEvents records UIDs whose pattern or template was rejected.
	FailedEvents []string
}

// ExpandOccurrences expands parsed events into concrete occurrences whose
// start lies in cfg.Window. It handles:
//
//   - Single non-recurring events
//   - RRULE-based recurrence (DAILY/WEEKLY/MONTHLY/YEARLY)
//   - EXDATE for exception removal
//   - RECURRENCE-ID overrides
//
// The result is sorted by start, then source and UID.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if err := cfg.Window.Validate(); err != nil {
		return result, err
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.UTC
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}
	if cfg.Zones == nil {
		cfg.Zones = tzdb.Default
	}

	// Group base events and overrides by source and UID.
	type key struct{ source, uid string }
	var order []key
	baseByUID := make(map[key][]ParsedEvent)
	overridesByUID := make(map[key][]ParsedEvent)

	for _, ev := range events {
		k := key{ev.Source.ID, ev.UID}
		if ev.IsOverride() {
			overridesByUID[k] = append(overridesByUID[k], ev)
			continue
		}
		if _, seen := baseByUID[k]; !seen {
			order = append(order, k)
		}
		baseByUID[k] = append(baseByUID[k], ev)
	}

	all := make([]model.Occurrence, 0)
	for _, k := range order {
		ov := overridesByUID[k]
		truncated, failed := false, false

		for _, ev := range baseByUID[k] {
			occ, hitCap, err := expandEvent(ev, ov, cfg)
			if err != nil {
				appLog.Error("expand: event skipped", err, "source", k.source, "uid", k.uid)
				failed = true
				continue
			}
			truncated = truncated || hitCap
			all = append(all, occ...)
		}

		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, k.uid)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", k.uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
		if failed {
			result.FailedEvents = append(result.FailedEvents, k.uid)
		}
	}

	SortOccurrences(all)
	result.Occurrences = all
	return result, nil
}

// SortOccurrences orders occurrences by start, then source, UID and instance.
func SortOccurrences(occ []model.Occurrence) {
	slices.SortStableFunc(occ, func(a, b model.Occurrence) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		if c := cmp.Compare(a.SourceID, b.SourceID); c != 0 {
			return c
		}
		if c := cmp.Compare(a.UID, b.UID); c != 0 {
			return c
		}
		return cmp.Compare(a.InstanceKey, b.InstanceKey)
	})
}

// expandEvent expands one base event with its overrides, returning the
// occurrences and whether the cap was hit.
func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool, error) {
	pattern, recurring := ev.Recurrence.Get()
	if !recurring {
		occ, ok, err := expandSingleEvent(ev, overrides, cfg)
		if err != nil || !ok {
			return nil, false, err
		}
		return []model.Occurrence{occ}, false, nil
	}
	return expandRecurringEvent(ev, pattern, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) (model.Occurrence, bool, error) {
	if err := ev.Template.Validate(); err != nil {
		return model.Occurrence{}, false, err
	}
	zone, err := cfg.Zones.Load(ev.Template.Zone)
	if err != nil {
		return model.Occurrence{}, false, err
	}
	base := recur.Materialize(recur.NewResolver(zone), ev.Template.Start, ev.Template.Duration)
	if !cfg.Window.Contains(base.Start) {
		return model.Occurrence{}, false, nil
	}
	return resolveInstance(ev, base, overrides, cfg)
}

func expandRecurringEvent(ev ParsedEvent, pattern recur.Pattern, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool, error) {
	seq, err := recur.Expand(pattern, ev.Template, cfg.Window, cfg.Zones)
	if err != nil {
		return nil, false, err
	}

	out := make([]model.Occurrence, 0)
	hitCap := false
	for base := range seq {
		if isExcluded(ev.ExDates, base.Start) {
			continue
		}
		if len(out) >= cfg.MaxOccurrencesPerEvent {
			hitCap = true
			break
		}
		occ, ok, err := resolveInstance(ev, base, overrides, cfg)
		if err != nil {
			appLog.Error("expand: override skipped", err, "uid", ev.UID, "start", base.Start)
			occ, ok = makeOccurrence(ev, base, base.Start, cfg.DisplayLocation), true
		}
		if ok {
			out = append(out, occ)
		}
	}
	return out, hitCap, nil
}

// resolveInstance applies a matching RECURRENCE-ID override to a generated
// occurrence. The instance key always stays on the original start.
func resolveInstance(ev ParsedEvent, base recur.Occurrence, overrides []ParsedEvent, cfg ExpandConfig) (model.Occurrence, bool, error) {
	o, ok := findOverrideForStart(overrides, base.Start)
	if !ok {
		return makeOccurrence(ev, base, base.Start, cfg.DisplayLocation), true, nil
	}
	if err := o.Template.Validate(); err != nil {
		return model.Occurrence{}, false, err
	}
	zone, err := cfg.Zones.Load(o.Template.Zone)
	if err != nil {
		return model.Occurrence{}, false, err
	}
	moved := recur.Materialize(recur.NewResolver(zone), o.Template.Start, o.Template.Duration)
	occ := makeOccurrence(o, moved, base.Start, cfg.DisplayLocation)
	occ.Overridden = true
	return occ, true, nil
}

func isExcluded(exdates []time.Time, start time.Time) bool {
	return slices.ContainsFunc(exdates, start.Equal)
}

// findOverrideForStart finds the override whose RECURRENCE-ID equals start.
// With several candidates the highest SEQUENCE wins.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	var (
		best  ParsedEvent
		found bool
	)
	for _, ov := range overrides {
		rid, ok := ov.RecurrenceID.Get()
		if !ok || !rid.Equal(start) {
			continue
		}
		if !found || ov.Seq > best.Seq {
			best, found = ov, true
		}
	}
	return best, found
}

// makeOccurrence converts an event plus resolved instants into a
// model.Occurrence normalized into displayLoc.
func makeOccurrence(ev ParsedEvent, occ recur.Occurrence, original time.Time, displayLoc *time.Location) model.Occurrence {
	return model.Occurrence{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		InstanceKey: model.InstanceKeyFor(original),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       occ.Start.In(displayLoc),
		End:         occ.End.In(displayLoc),
	}
}
