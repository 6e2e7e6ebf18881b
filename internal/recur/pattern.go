package recur

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
)

// Frequency is the unit a pattern repeats in.
type Frequency int

const (
	// FrequencyUnset is the zero value and never valid.
	FrequencyUnset Frequency = iota
	Daily
	Weekly
	Monthly
	Yearly
)

func (f Frequency) String() string {
	switch f {
	case Daily:
		return "DAILY"
	case Weekly:
		return "WEEKLY"
	case Monthly:
		return "MONTHLY"
	case Yearly:
		return "YEARLY"
	case FrequencyUnset:
		return "UNSET"
	default:
		return "Frequency(" + strconv.Itoa(int(f)) + ")"
	}
}

// ParseFrequency accepts the RFC 5545 names, case-insensitively.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DAILY":
		return Daily, nil
	case "WEEKLY":
		return Weekly, nil
	case "MONTHLY":
		return Monthly, nil
	case "YEARLY":
		return Yearly, nil
	}
	return FrequencyUnset, fmt.Errorf("%w: unsupported frequency %q", ErrInvalidPattern, s)
}

// WeekdayNum selects a weekday, optionally only its Nth occurrence within
// the enclosing month or year. A negative Nth counts back from the end.
type WeekdayNum struct {
	Weekday time.Weekday
	Nth     mo.Option[int]
}

// Every matches every wd in the period.
func Every(wd time.Weekday) WeekdayNum {
	return WeekdayNum{Weekday: wd, Nth: mo.None[int]()}
}

// Nth matches the nth wd in the period.
func Nth(n int, wd time.Weekday) WeekdayNum {
	return WeekdayNum{Weekday: wd, Nth: mo.Some(n)}
}

func (d WeekdayNum) String() string {
	name := strings.ToUpper(d.Weekday.String()[:2])
	if n, ok := d.Nth.Get(); ok {
		return strconv.Itoa(n) + name
	}
	return name
}

// Pattern describes how an event repeats. Empty filter sets fall back to the
// corresponding field of the anchor the pattern is expanded against.
type Pattern struct {
	Frequency Frequency
	// Interval is the number of Frequency units between blocks.
	Interval int
	// Until bounds candidate starts, inclusive, in the pattern's wall clock.
	Until      mo.Option[Wall]
	ByMonth    []time.Month
	ByMonthDay []int
	ByDay      []WeekdayNum
}

// Validate checks the pattern and returns an error wrapping ErrInvalidPattern.
func (p Pattern) Validate() error {
	switch p.Frequency {
	case Daily, Weekly, Monthly, Yearly:
	case FrequencyUnset:
		return fmt.Errorf("%w: frequency is not set", ErrInvalidPattern)
	default:
		return fmt.Errorf("%w: unrecognized frequency %d", ErrInvalidPattern, int(p.Frequency))
	}
	if p.Interval < 1 {
		return fmt.Errorf("%w: interval %d is less than 1", ErrInvalidPattern, p.Interval)
	}
	for _, m := range p.ByMonth {
		if m < time.January || m > time.December {
			return fmt.Errorf("%w: month %d out of range", ErrInvalidPattern, int(m))
		}
	}
	for _, d := range p.ByMonthDay {
		if d == 0 || d > 31 || d < -31 {
			return fmt.Errorf("%w: day of month %d out of range", ErrInvalidPattern, d)
		}
	}
	for _, wd := range p.ByDay {
		if wd.Weekday < time.Sunday || wd.Weekday > time.Saturday {
			return fmt.Errorf("%w: weekday %d out of range", ErrInvalidPattern, int(wd.Weekday))
		}
		if n, ok := wd.Nth.Get(); ok && (n == 0 || n > 53 || n < -53) {
			return fmt.Errorf("%w: weekday offset %d out of range", ErrInvalidPattern, n)
		}
	}
	return nil
}

// normalized returns a deep copy with filter sets sorted and deduplicated,
// so later changes to the caller's slices cannot reach a generator.
func (p Pattern) normalized() Pattern {
	out := p
	out.ByMonth = slices.Compact(slices.Sorted(slices.Values(p.ByMonth)))
	out.ByMonthDay = slices.Compact(slices.Sorted(slices.Values(p.ByMonthDay)))
	out.ByDay = slices.Clone(p.ByDay)
	slices.SortFunc(out.ByDay, func(a, b WeekdayNum) int {
		if a.Weekday != b.Weekday {
			return int(a.Weekday) - int(b.Weekday)
		}
		return a.Nth.OrElse(0) - b.Nth.OrElse(0)
	})
	out.ByDay = slices.CompactFunc(out.ByDay, func(a, b WeekdayNum) bool {
		return a.Weekday == b.Weekday && a.Nth.IsPresent() == b.Nth.IsPresent() && a.Nth.OrElse(0) == b.Nth.OrElse(0)
	})
	return out
}

// String renders the pattern in RRULE form, e.g. "FREQ=MONTHLY;INTERVAL=2;BYMONTHDAY=10".
func (p Pattern) String() string {
	parts := []string{"FREQ=" + p.Frequency.String()}
	if p.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(p.Interval))
	}
	if u, ok := p.Until.Get(); ok {
		parts = append(parts, "UNTIL="+u.t.Format("20060102T150405"))
	}
	if len(p.ByMonth) > 0 {
		ms := make([]string, len(p.ByMonth))
		for i, m := range p.ByMonth {
			ms[i] = strconv.Itoa(int(m))
		}
		parts = append(parts, "BYMONTH="+strings.Join(ms, ","))
	}
	if len(p.ByMonthDay) > 0 {
		ds := make([]string, len(p.ByMonthDay))
		for i, d := range p.ByMonthDay {
			ds[i] = strconv.Itoa(d)
		}
		parts = append(parts, "BYMONTHDAY="+strings.Join(ds, ","))
	}
	if len(p.ByDay) > 0 {
		ds := make([]string, len(p.ByDay))
		for i, d := range p.ByDay {
			ds[i] = d.String()
		}
		parts = append(parts, "BYDAY="+strings.Join(ds, ","))
	}
	return strings.Join(parts, ";")
}

// Template anchors a pattern: the first start, how long each occurrence
// lasts on the wall clock, and the zone the wall clock belongs to.
type Template struct {
	Start    Wall
	Duration time.Duration
	Zone     string
}

// Validate rejects negative durations.
func (t Template) Validate() error {
	if t.Duration < 0 {
		return fmt.Errorf("%w: negative duration %s", ErrInvalidTemplate, t.Duration)
	}
	return nil
}
