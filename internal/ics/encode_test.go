package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeOccurrences(t *testing.T) {
	events := parseFeed(t, standupFeed)
	res, err := ExpandOccurrences(events, ExpandConfig{
		Window: window(t, chicagoTime(t, "2023-09-18T00:00"), chicagoTime(t, "2023-10-01T00:00")),
	})
	require.NoError(t, err)

	stamp := time.Date(2023, time.September, 1, 0, 0, 0, 0, time.UTC)
	out := EncodeOccurrences(res.Occurrences, stamp)

	assert.Contains(t, out, "PRODID:"+ProductID)
	assert.Contains(t, out, "METHOD:PUBLISH")
	assert.Equal(t, len(res.Occurrences), strings.Count(out, "BEGIN:VEVENT"))
	assert.Contains(t, out, "DTSTART:20230918T133000Z")
	assert.Contains(t, out, "DTEND:20230918T143000Z")
	assert.NotContains(t, out, "RRULE")

	// Encoding is stable for the same input.
	assert.Equal(t, out, EncodeOccurrences(res.Occurrences, stamp))

	// The flat calendar parses back to one single event per occurrence.
	back, err := ParseICS(Source{ID: "export"}, []byte(out), ParseOptions{})
	require.NoError(t, err)
	assert.Len(t, back, len(res.Occurrences))
	for _, ev := range back {
		assert.True(t, ev.Recurrence.IsAbsent())
	}
}

func TestOccurrenceUID(t *testing.T) {
	events := parseFeed(t, standupFeed)
	res, err := ExpandOccurrences(events, ExpandConfig{
		Window: window(t, chicagoTime(t, "2023-09-18T00:00"), chicagoTime(t, "2023-10-01T00:00")),
	})
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, o := range res.Occurrences {
		uid := OccurrenceUID(o)
		assert.True(t, strings.HasSuffix(uid, "@recurcal"))
		assert.False(t, seen[uid], "duplicate uid %s", uid)
		seen[uid] = true
	}
	assert.Equal(t, OccurrenceUID(res.Occurrences[0]), OccurrenceUID(res.Occurrences[0]))
}
