package recur

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		zone     string
		wall     string
		wantUTC  string
		wantFold Fold
		wantHour int
	}{
		{
			name: "standard time", zone: chicago, wall: "2023-01-15T09:00:00",
			wantUTC: "2023-01-15T15:00:00Z", wantFold: FoldNone, wantHour: 9,
		},
		{
			name: "daylight time", zone: chicago, wall: "2023-07-15T09:00:00",
			wantUTC: "2023-07-15T14:00:00Z", wantFold: FoldNone, wantHour: 9,
		},
		{
			name: "spring gap moves forward by the gap", zone: chicago, wall: "2023-03-12T02:30:00",
			wantUTC: "2023-03-12T08:30:00Z", wantFold: FoldGap, wantHour: 3,
		},
		{
			name: "start of gap", zone: chicago, wall: "2023-03-12T02:00:00",
			wantUTC: "2023-03-12T08:00:00Z", wantFold: FoldGap, wantHour: 3,
		},
		{
			name: "first valid time after gap", zone: chicago, wall: "2023-03-12T03:00:00",
			wantUTC: "2023-03-12T08:00:00Z", wantFold: FoldNone, wantHour: 3,
		},
		{
			name: "fall overlap picks the earlier instant", zone: chicago, wall: "2023-11-05T01:30:00",
			wantUTC: "2023-11-05T06:30:00Z", wantFold: FoldOverlap, wantHour: 1,
		},
		{
			name: "just after overlap", zone: chicago, wall: "2023-11-05T02:00:00",
			wantUTC: "2023-11-05T08:00:00Z", wantFold: FoldNone, wantHour: 2,
		},
		{
			name: "historical rules apply", zone: chicago, wall: "2006-03-12T02:30:00",
			wantUTC: "2006-03-12T08:30:00Z", wantFold: FoldNone, wantHour: 2,
		},
		{
			name: "historical gap", zone: chicago, wall: "2006-04-02T02:30:00",
			wantUTC: "2006-04-02T08:30:00Z", wantFold: FoldGap, wantHour: 3,
		},
		{
			name: "southern hemisphere gap", zone: "Australia/Sydney", wall: "2023-10-01T02:30:00",
			wantUTC: "2023-09-30T16:30:00Z", wantFold: FoldGap, wantHour: 3,
		},
		{
			name: "southern hemisphere overlap", zone: "Australia/Sydney", wall: "2023-04-02T02:30:00",
			wantUTC: "2023-04-01T15:30:00Z", wantFold: FoldOverlap, wantHour: 2,
		},
		{
			name: "europe gap", zone: "Europe/Berlin", wall: "2023-03-26T02:30:00",
			wantUTC: "2023-03-26T01:30:00Z", wantFold: FoldGap, wantHour: 3,
		},
		{
			name: "utc", zone: "UTC", wall: "2023-03-12T02:30:00",
			wantUTC: "2023-03-12T02:30:00Z", wantFold: FoldNone, wantHour: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(mustZone(t, tt.zone))

			got, fold := r.Resolve(mustWall(t, tt.wall))

			assert.Equal(t, tt.wantUTC, got.UTC().Format(time.RFC3339))
			assert.Equal(t, tt.wantFold, fold)
			assert.Equal(t, tt.wantHour, got.Hour())
			assert.Equal(t, tt.zone, got.Location().String())
		})
	}
}

func TestResolver_MonotonicAcrossTransitions(t *testing.T) {
	r := NewResolver(mustZone(t, chicago))

	for _, start := range []string{"2023-03-11T00:00:00", "2023-11-04T00:00:00"} {
		w := mustWall(t, start)
		prev := r.Instant(w)
		// Walk the two days around the transition hour by hour, skipping
		// the gap hour itself, whose readings land after the gap.
		for i := 1; i < 48; i++ {
			next := w.Add(time.Duration(i) * time.Hour)
			_, fold := r.Resolve(next)
			if fold == FoldGap {
				continue
			}
			at := r.Instant(next)
			assert.True(t, at.After(prev), "%s resolved to %s, not after %s", next, at, prev)
			prev = at
		}
	}
}
