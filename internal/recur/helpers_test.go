package recur

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"recurcal/internal/tzdb"
)

const chicago = "America/Chicago"

func mustWall(t *testing.T, s string) Wall {
	t.Helper()
	w, err := ParseWall(s)
	require.NoError(t, err)
	return w
}

func mustZone(t *testing.T, name string) *tzdb.Zone {
	t.Helper()
	z, err := tzdb.Load(name)
	require.NoError(t, err)
	return z
}

// localTime returns the instant that reads s on the wall clock in zone name.
func localTime(t *testing.T, name, s string) time.Time {
	t.Helper()
	return NewResolver(mustZone(t, name)).Instant(mustWall(t, s))
}

// take returns up to n candidates from g.
func take(g *Generator, n int) []Wall {
	out := make([]Wall, 0, n)
	for w := range g.All() {
		out = append(out, w)
		if len(out) == n {
			break
		}
	}
	return out
}

func wallStrings(ws []Wall) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.String()
	}
	return out
}
