package recur

import (
	"time"
)

// Wall is a civil date and time of day with no zone attached. It is what a
// person reads off a clock on the wall, before any offset is applied.
//
// The zero Wall is January 1, year 1, 00:00:00.
type Wall struct {
	// t holds the civil fields in UTC; its instant is meaningless.
	t time.Time
}

// NewWall builds a wall clock value. Out-of-range fields normalize the way
// time.Date does (October 32 is November 1).
func NewWall(year int, month time.Month, day, hour, min, sec int) Wall {
	return Wall{t: time.Date(year, month, day, hour, min, sec, 0, time.UTC)}
}

// WallOf returns the civil fields of t as seen in t's own location.
func WallOf(t time.Time) Wall {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return Wall{t: time.Date(y, mo, d, h, mi, s, t.Nanosecond(), time.UTC)}
}

// ParseWall parses "2006-01-02T15:04:05", "2006-01-02T15:04" or "2006-01-02".
func ParseWall(s string) (Wall, error) {
	var (
		t   time.Time
		err error
	)
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", time.DateOnly} {
		t, err = time.Parse(layout, s)
		if err == nil {
			return Wall{t: t}, nil
		}
	}
	return Wall{}, err
}

func (w Wall) Year() int { return w.t.Year() }
func (w Wall) Month() time.Month { return w.t.Month() }
func (w Wall) Day() int { return w.t.Day() }
func (w Wall) Hour() int { return w.t.Hour() }
func (w Wall) Minute() int { return w.t.Minute() }
func (w Wall) Second() int { return w.t.Second() }
func (w Wall) Weekday() time.Weekday { return w.t.Weekday() }
func (w Wall) YearDay() int { return w.t.YearDay() }

// IsZero reports whether w is the zero Wall.
func (w Wall) IsZero() bool { return w.t.IsZero() }

func (w Wall) Before(u Wall) bool { return w.t.Before(u.t) }
func (w Wall) After(u Wall) bool { return w.t.After(u.t) }
func (w Wall) Equal(u Wall) bool { return w.t.Equal(u.t) }

// Compare returns -1, 0 or +1.
func (w Wall) Compare(u Wall) int { return w.t.Compare(u.t) }

// AddDate adds calendar years, months and days, normalizing like time.AddDate.
func (w Wall) AddDate(years, months, days int) Wall {
	return Wall{t: w.t.AddDate(years, months, days)}
}

// Add advances the clock reading by d, ignoring any offset change a real
// zone would apply along the way.
func (w Wall) Add(d time.Duration) Wall {
	return Wall{t: w.t.Add(d)}
}

// Sub returns the wall-clock difference w-u.
func (w Wall) Sub(u Wall) time.Duration { return w.t.Sub(u.t) }

// Date returns midnight of w's day.
func (w Wall) Date() Wall {
	y, m, d := w.t.Date()
	return NewWall(y, m, d, 0, 0, 0)
}

// At returns the day of w at the clock time of c.
func (w Wall) At(c Wall) Wall {
	y, m, d := w.t.Date()
	return Wall{t: time.Date(y, m, d, c.t.Hour(), c.t.Minute(), c.t.Second(), c.t.Nanosecond(), time.UTC)}
}

// In returns the instant whose civil fields in loc equal w. Go picks one of
// the two candidates around a transition; use a Resolver when the choice matters.
func (w Wall) In(loc *time.Location) time.Time {
	y, m, d := w.t.Date()
	return time.Date(y, m, d, w.t.Hour(), w.t.Minute(), w.t.Second(), w.t.Nanosecond(), loc)
}

// utc is the instant that has w's civil fields in UTC.
func (w Wall) utc() time.Time { return w.t }

func (w Wall) String() string {
	return w.t.Format("2006-01-02T15:04:05")
}

// MarshalText encodes w in the ParseWall layout.
func (w Wall) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// UnmarshalText accepts any ParseWall layout.
func (w *Wall) UnmarshalText(b []byte) error {
	v, err := ParseWall(string(b))
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// daysBetween returns whole calendar days from a to b (b-a).
func daysBetween(a, b Wall) int {
	return int((b.Date().t.Unix() - a.Date().t.Unix()) / 86400)
}

// weekStart returns midnight of the Monday on or before w.
func weekStart(w Wall) Wall {
	back := (int(w.Weekday()) + 6) % 7
	return w.Date().AddDate(0, 0, -back)
}
