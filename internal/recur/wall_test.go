package recur

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWall(t *testing.T) {
	for _, in := range []string{"2023-09-19T08:30:00", "2023-09-19T08:30"} {
		w, err := ParseWall(in)
		require.NoError(t, err, in)
		assert.Equal(t, "2023-09-19T08:30:00", w.String())
	}

	w, err := ParseWall("2023-09-19")
	require.NoError(t, err)
	assert.Equal(t, "2023-09-19T00:00:00", w.String())

	_, err = ParseWall("19/09/2023")
	assert.Error(t, err)
}

func TestWallOf_KeepsLocalFields(t *testing.T) {
	loc := time.FixedZone("X", -6*3600)
	w := WallOf(time.Date(2023, 3, 12, 2, 30, 0, 0, loc))

	assert.Equal(t, "2023-03-12T02:30:00", w.String())
	assert.Equal(t, time.Sunday, w.Weekday())
}

func TestWall_Arithmetic(t *testing.T) {
	w := NewWall(2024, time.January, 31, 22, 0, 0)

	assert.Equal(t, "2024-03-02T22:00:00", w.AddDate(0, 1, 0).String())
	assert.Equal(t, "2024-02-01T01:00:00", w.Add(3*time.Hour).String())
	assert.Equal(t, "2024-01-31T00:00:00", w.Date().String())
	assert.Equal(t, 3*time.Hour, w.Add(3*time.Hour).Sub(w))
	assert.Equal(t, "2024-01-29T00:00:00", weekStart(w).String())
	assert.Equal(t, 29, daysIn(2024, time.February))
	assert.Equal(t, 28, daysIn(2023, time.February))
	assert.Equal(t, 366, daysBetween(NewWall(2024, 1, 1, 0, 0, 0), NewWall(2025, 1, 1, 0, 0, 0)))
}

func TestWall_JSON(t *testing.T) {
	type payload struct {
		Start Wall `json:"start"`
	}

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"start":"2023-09-19T08:30"}`), &p))
	assert.Equal(t, NewWall(2023, time.September, 19, 8, 30, 0), p.Start)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"2023-09-19T08:30:00"}`, string(out))
}
