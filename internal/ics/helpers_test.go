package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"recurcal/internal/recur"
)

const chicago = "America/Chicago"

// icsLines joins lines with CRLF as RFC 5545 requires.
func icsLines(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

// standupFeed holds a weekly series with a COUNT, one EXDATE and one moved
// instance, plus an all-day event and a UTC event with a DURATION.
var standupFeed = icsLines(
	"BEGIN:VCALENDAR",
	"VERSION:2.0",
	"PRODID:-//test//feed//EN",
	"BEGIN:VEVENT",
	"UID:standup@example.com",
	"SEQUENCE:1",
	"SUMMARY:Standup",
	"LOCATION:Room 4",
	"DTSTART;TZID=America/Chicago:20230918T083000",
	"DTEND;TZID=America/Chicago:20230918T093000",
	"RRULE:FREQ=WEEKLY;BYDAY=MO,TU,WE;COUNT=6",
	"EXDATE;TZID=America/Chicago:20230919T083000",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:standup@example.com",
	"SEQUENCE:2",
	"SUMMARY:Standup (moved)",
	"RECURRENCE-ID;TZID=America/Chicago:20230920T083000",
	"DTSTART;TZID=America/Chicago:20230920T120000",
	"DTEND;TZID=America/Chicago:20230920T130000",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:offsite@example.com",
	"SUMMARY:Offsite",
	"DTSTART;VALUE=DATE:20230922",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:call@example.com",
	"SUMMARY:Call",
	"DTSTART:20230921T150000Z",
	"DURATION:PT45M",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"SUMMARY:No UID",
	"DTSTART:20230921T150000Z",
	"END:VEVENT",
	"END:VCALENDAR",
)

func chicagoTime(t *testing.T, s string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(chicago)
	require.NoError(t, err)
	v, err := time.ParseInLocation("2006-01-02T15:04", s, loc)
	require.NoError(t, err)
	return v
}

func window(t *testing.T, from, to time.Time) recur.Window {
	t.Helper()
	w, err := recur.NewWindow(from, to)
	require.NoError(t, err)
	return w
}

func parseFeed(t *testing.T, body []byte) []ParsedEvent {
	t.Helper()
	events, err := ParseICS(Source{ID: "work", URL: "https://example.com/cal.ics"}, body, ParseOptions{DefaultZone: chicago})
	require.NoError(t, err)
	return events
}

func byUID(events []ParsedEvent, uid string, override bool) (ParsedEvent, bool) {
	for _, ev := range events {
		if ev.UID == uid && ev.IsOverride() == override {
			return ev, true
		}
	}
	return ParsedEvent{}, false
}
