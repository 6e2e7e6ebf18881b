package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/samber/mo"

	appLog "recurcal/internal/log"
	"recurcal/internal/recur"
	"recurcal/internal/tzdb"
)

// ParsedEvent is a VEVENT reduced to what expansion needs: an anchor
// template, an optional pattern, and the exceptions around it.
type ParsedEvent struct {
	Source Source

	UID string
	Seq int

	Summary     string
	Description string
	Location    string
	AllDay      bool

	Template recur.Template
	// Recurrence is the RRULE with any COUNT already folded into Until.
	Recurrence mo.Option[recur.Pattern]
	// ExDates are instants of removed occurrences.
	ExDates []time.Time
	// RecurrenceID is set on overrides: the original start it replaces.
	RecurrenceID mo.Option[time.Time]
}

// IsOverride reports whether the event replaces one occurrence of another.
func (e ParsedEvent) IsOverride() bool { return e.RecurrenceID.IsPresent() }

// ParseOptions controls how times without an explicit zone are read.
type ParseOptions struct {
	// DefaultZone applies to floating and all-day times.
	DefaultZone string
	// Zones resolves TZID values; nil uses tzdb.Default.
	Zones recur.ZoneSource
}

// ParseICS parses a single iCalendar payload. An event that cannot be read
// is logged and skipped; the rest of the calendar is still returned.
func ParseICS(src Source, body []byte, opts ParseOptions) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if opts.Zones == nil {
		opts.Zones = tzdb.Default
	}
	if opts.DefaultZone == "" {
		opts.DefaultZone = "UTC"
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(src, comp, opts)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent, opts ParseOptions) (ParsedEvent, error) {
	out := ParsedEvent{Source: src}

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySequence); p != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(p.Value)); err == nil {
			out.Seq = n
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return out, fmt.Errorf("event %s: missing DTSTART", out.UID)
	}
	start, err := parseDateTime(startProp.Value, startProp.ICalParameters, opts.DefaultZone)
	if err != nil {
		return out, fmt.Errorf("event %s: DTSTART: %w", out.UID, err)
	}
	zone, err := opts.Zones.Load(start.zone)
	if err != nil {
		return out, fmt.Errorf("event %s: %w", out.UID, err)
	}
	out.AllDay = start.allDay

	dur, err := eventDuration(ve, start, opts)
	if err != nil {
		return out, fmt.Errorf("event %s: %w", out.UID, err)
	}
	out.Template = recur.Template{Start: start.wall, Duration: dur, Zone: zone.Name()}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		rule, err := ParseRRule(p.Value, zone.Location())
		if err != nil {
			return out, fmt.Errorf("event %s: %w", out.UID, err)
		}
		pattern, err := CountToUntil(rule.Pattern, start.wall, rule.Count, recur.NewResolver(zone))
		if err != nil {
			return out, fmt.Errorf("event %s: %w", out.UID, err)
		}
		out.Recurrence = mo.Some(pattern)
	}

	// EXDATE can appear multiple times, each with a comma-separated list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			at, err := resolveDateTime(part, p.ICalParameters, start.zone, opts.Zones)
			if err != nil {
				appLog.Error("ics exdate skipped", err, "uid", out.UID, "value", part)
				continue
			}
			out.ExDates = append(out.ExDates, at)
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		at, err := resolveDateTime(p.Value, p.ICalParameters, start.zone, opts.Zones)
		if err != nil {
			return out, fmt.Errorf("event %s: RECURRENCE-ID: %w", out.UID, err)
		}
		out.RecurrenceID = mo.Some(at)
	}

	return out, nil
}

// eventDuration derives the wall-clock length from DTEND, DURATION, or the
// RFC 5545 defaults (one day for all-day events, zero otherwise).
func eventDuration(ve *ical.VEvent, start dateTime, opts ParseOptions) (time.Duration, error) {
	if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
		end, err := parseDateTime(p.Value, p.ICalParameters, opts.DefaultZone)
		if err != nil {
			return 0, fmt.Errorf("DTEND: %w", err)
		}
		if end.zone == start.zone {
			return end.wall.Sub(start.wall), nil
		}
		// Different zones: only the elapsed time between the instants is meaningful.
		s, err := instantOf(start, opts.Zones)
		if err != nil {
			return 0, err
		}
		e, err := instantOf(end, opts.Zones)
		if err != nil {
			return 0, err
		}
		return e.Sub(s), nil
	}
	if p := ve.GetProperty("DURATION"); p != nil {
		d, err := parseDuration(p.Value)
		if err != nil {
			return 0, fmt.Errorf("DURATION: %w", err)
		}
		return d, nil
	}
	if start.allDay {
		return 24 * time.Hour, nil
	}
	return 0, nil
}

type dateTime struct {
	wall   recur.Wall
	zone   string
	allDay bool
}

// parseDateTime reads a DATE or DATE-TIME value. UTC values ("Z") get the
// UTC zone, TZID wins over the default, and floating values take the default.
func parseDateTime(v string, params map[string][]string, defaultZone string) (dateTime, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return dateTime{}, errors.New("empty time value")
	}

	out := dateTime{zone: defaultZone}
	if tz := params["TZID"]; len(tz) > 0 && tz[0] != "" {
		out.zone = tz[0]
	}
	if vs := params["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		out.allDay = true
	}

	var (
		t   time.Time
		err error
	)
	switch {
	case strings.HasSuffix(v, "Z"):
		t, err = time.Parse("20060102T150405Z", v)
		out.zone = "UTC"
	case strings.Contains(v, "T"):
		t, err = time.Parse("20060102T150405", v)
	default:
		t, err = time.Parse("20060102", v)
		out.allDay = true
	}
	if err != nil {
		return dateTime{}, err
	}
	out.wall = recur.WallOf(t)
	return out, nil
}

func resolveDateTime(v string, params map[string][]string, defaultZone string, zones recur.ZoneSource) (time.Time, error) {
	dt, err := parseDateTime(v, params, defaultZone)
	if err != nil {
		return time.Time{}, err
	}
	return instantOf(dt, zones)
}

func instantOf(dt dateTime, zones recur.ZoneSource) (time.Time, error) {
	z, err := zones.Load(dt.zone)
	if err != nil {
		return time.Time{}, err
	}
	return recur.NewResolver(z).Instant(dt.wall), nil
}
