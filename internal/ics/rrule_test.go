package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recurcal/internal/recur"
	"recurcal/internal/tzdb"
)

var utcResolver = recur.NewResolver(tzdb.FromLocation(time.UTC))

func TestParseRRule_RoundTripsSupportedParts(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"FREQ=DAILY", "FREQ=DAILY"},
		{"RRULE:FREQ=WEEKLY;BYDAY=MO,TU,WE", "FREQ=WEEKLY;BYDAY=MO,TU,WE"},
		{"FREQ=MONTHLY;INTERVAL=2;BYMONTHDAY=10", "FREQ=MONTHLY;INTERVAL=2;BYMONTHDAY=10"},
		{"FREQ=MONTHLY;BYDAY=-1FR", "FREQ=MONTHLY;BYDAY=-1FR"},
		{"FREQ=YEARLY;BYMONTH=11;BYDAY=4TH", "FREQ=YEARLY;BYMONTH=11;BYDAY=4TH"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			rule, err := ParseRRule(tt.in, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rule.Pattern.String())
			assert.Zero(t, rule.Count)
		})
	}
}

func TestParseRRule_UntilUsesEventWallClock(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	rule, err := ParseRRule("FREQ=DAILY;UNTIL=20231231T235959Z", loc)
	require.NoError(t, err)

	until, ok := rule.Pattern.Until.Get()
	require.True(t, ok)
	assert.Equal(t, "2023-12-31T17:59:59", until.String())

	rule, err = ParseRRule("FREQ=DAILY;UNTIL=20231231T235959", loc)
	require.NoError(t, err)
	until, _ = rule.Pattern.Until.Get()
	assert.Equal(t, "2023-12-31T23:59:59", until.String())
}

func TestParseRRule_Count(t *testing.T) {
	rule, err := ParseRRule("FREQ=WEEKLY;COUNT=5;BYDAY=FR", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, rule.Count)
	assert.True(t, rule.Pattern.Until.IsAbsent())
}

func TestParseRRule_Rejects(t *testing.T) {
	for _, in := range []string{
		"",
		"INTERVAL=2",
		"FREQ=HOURLY",
		"FREQ=MINUTELY",
		"FREQ=MONTHLY;BYDAY=MO;BYSETPOS=1",
		"FREQ=YEARLY;BYYEARDAY=100",
		"FREQ=YEARLY;BYWEEKNO=20",
		"FREQ=DAILY;BYHOUR=9",
		"FREQ=MONTHLY;BYMONTHDAY=0",
		"FREQ=SOMETIMES",
	} {
		_, err := ParseRRule(in, nil)
		assert.ErrorIs(t, err, recur.ErrInvalidPattern, "rule %q", in)
	}
}

func TestCountToUntil(t *testing.T) {
	rule, err := ParseRRule("FREQ=WEEKLY;BYDAY=MO,TU,WE;COUNT=4", nil)
	require.NoError(t, err)
	anchor := recur.NewWall(2023, time.September, 18, 8, 30, 0)

	p, err := CountToUntil(rule.Pattern, anchor, rule.Count, utcResolver)
	require.NoError(t, err)

	until, ok := p.Until.Get()
	require.True(t, ok)
	assert.Equal(t, "2023-09-25T08:30:00", until.String())

	g, err := recur.NewGenerator(p, anchor)
	require.NoError(t, err)
	n := 0
	for range g.All() {
		n++
	}
	assert.Equal(t, 4, n)
}

func TestCountToUntil_KeepsEarlierUntil(t *testing.T) {
	rule, err := ParseRRule("FREQ=DAILY;UNTIL=20230920T083000", nil)
	require.NoError(t, err)
	anchor := recur.NewWall(2023, time.September, 18, 8, 30, 0)

	p, err := CountToUntil(rule.Pattern, anchor, 10, utcResolver)
	require.NoError(t, err)
	until, _ := p.Until.Get()
	assert.Equal(t, "2023-09-20T08:30:00", until.String())
}

func TestCountToUntil_SkippedDayCountsOnce(t *testing.T) {
	// Apia skipped 2011-12-30 entirely; the gap pushes that candidate onto
	// 2011-12-31 10:00, which must not be counted twice.
	zone, err := tzdb.Load("Pacific/Apia")
	require.NoError(t, err)
	rule, err := ParseRRule("FREQ=DAILY;COUNT=4", zone.Location())
	require.NoError(t, err)
	anchor := recur.NewWall(2011, time.December, 28, 10, 0, 0)

	p, err := CountToUntil(rule.Pattern, anchor, rule.Count, recur.NewResolver(zone))
	require.NoError(t, err)
	until, ok := p.Until.Get()
	require.True(t, ok)
	assert.Equal(t, "2012-01-01T10:00:00", until.String())
}

func TestCountToUntil_FiltersThatNeverMatch(t *testing.T) {
	rule, err := ParseRRule("FREQ=DAILY;COUNT=5;BYMONTH=2;BYMONTHDAY=30", nil)
	require.NoError(t, err)
	anchor := recur.NewWall(2023, time.January, 10, 9, 0, 0)

	p, err := CountToUntil(rule.Pattern, anchor, rule.Count, utcResolver)
	require.NoError(t, err)
	assert.True(t, p.Until.IsAbsent(), "only the anchor exists, so COUNT is never reached")
}

func TestParseDuration(t *testing.T) {
	tests := map[string]time.Duration{
		"PT1H":       time.Hour,
		"PT1H30M":    90 * time.Minute,
		"P1D":        24 * time.Hour,
		"P1W":        7 * 24 * time.Hour,
		"P1DT2H":     26 * time.Hour,
		"-PT15M":     -15 * time.Minute,
		"+PT10S":     10 * time.Second,
		" pt45m ":    45 * time.Minute,
		"P2DT0H0M5S": 48*time.Hour + 5*time.Second,
	}
	for in, want := range tests {
		got, err := parseDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "P", "PT", "1H", "PT1D", "P1H", "PTT1H", "P1.5D"} {
		_, err := parseDuration(in)
		assert.Error(t, err, in)
	}
}
