package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"

	"recurcal/internal/recur"
)

// Rule is an RRULE value split into the engine pattern and the COUNT limit,
// which the engine does not model directly.
type Rule struct {
	Pattern recur.Pattern
	// Count is the RRULE COUNT, 0 when absent.
	Count int
}

// ParseRRule parses an RRULE value such as "FREQ=WEEKLY;BYDAY=MO,TU,WE".
// A floating UNTIL is read in loc; a UTC UNTIL is converted into loc so the
// bound is compared on the event's own wall clock. Rules that need
// sub-daily frequencies or BYSETPOS, BYYEARDAY, BYWEEKNO or BYHOUR style
// parts are rejected with recur.ErrInvalidPattern.
func ParseRRule(text string, loc *time.Location) (Rule, error) {
	text = strings.TrimPrefix(strings.TrimSpace(text), "RRULE:")
	if text == "" {
		return Rule{}, fmt.Errorf("%w: empty RRULE", recur.ErrInvalidPattern)
	}
	if !strings.Contains(strings.ToUpper(text), "FREQ=") {
		return Rule{}, fmt.Errorf("%w: RRULE without FREQ", recur.ErrInvalidPattern)
	}
	if loc == nil {
		loc = time.UTC
	}

	opt, err := rrule.StrToROptionInLocation(text, loc)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %v", recur.ErrInvalidPattern, err)
	}

	var p recur.Pattern
	switch opt.Freq {
	case rrule.DAILY:
		p.Frequency = recur.Daily
	case rrule.WEEKLY:
		p.Frequency = recur.Weekly
	case rrule.MONTHLY:
		p.Frequency = recur.Monthly
	case rrule.YEARLY:
		p.Frequency = recur.Yearly
	default:
		return Rule{}, fmt.Errorf("%w: unsupported frequency in %q", recur.ErrInvalidPattern, text)
	}
	if err := rejectUnsupported(opt); err != nil {
		return Rule{}, fmt.Errorf("%w: %v in %q", recur.ErrInvalidPattern, err, text)
	}

	p.Interval = opt.Interval
	if p.Interval == 0 {
		p.Interval = 1
	}
	if !opt.Until.IsZero() {
		p.Until = mo.Some(recur.WallOf(opt.Until.In(loc)))
	}
	for _, m := range opt.Bymonth {
		p.ByMonth = append(p.ByMonth, time.Month(m))
	}
	p.ByMonthDay = append(p.ByMonthDay, opt.Bymonthday...)
	for i := range opt.Byweekday {
		wd := &opt.Byweekday[i]
		// rrule-go numbers weekdays from Monday.
		day := recur.Every(time.Weekday((wd.Day() + 1) % 7))
		if n := wd.N(); n != 0 {
			day.Nth = mo.Some(n)
		}
		p.ByDay = append(p.ByDay, day)
	}

	if err := p.Validate(); err != nil {
		return Rule{}, err
	}
	return Rule{Pattern: p, Count: opt.Count}, nil
}

func rejectUnsupported(opt *rrule.ROption) error {
	switch {
	case len(opt.Bysetpos) > 0:
		return errors.New("BYSETPOS is not supported")
	case len(opt.Byyearday) > 0:
		return errors.New("BYYEARDAY is not supported")
	case len(opt.Byweekno) > 0:
		return errors.New("BYWEEKNO is not supported")
	case len(opt.Byhour) > 0, len(opt.Byminute) > 0, len(opt.Bysecond) > 0:
		return errors.New("time-of-day filters are not supported")
	case len(opt.Byeaster) > 0:
		return errors.New("BYEASTER is not supported")
	}
	return nil
}

// CountToUntil turns a COUNT limit into the equivalent inclusive Until: the
// wall start of the count-th occurrence. Candidates that r resolves onto an
// instant already counted do not count again. The pattern is returned
// unchanged when count is zero or when an earlier Until already ends the
// series.
func CountToUntil(p recur.Pattern, anchor recur.Wall, count int, r recur.Resolver) (recur.Pattern, error) {
	if count <= 0 {
		return p, nil
	}
	g, err := recur.NewGenerator(p, anchor)
	if err != nil {
		return p, err
	}
	n := 0
	for w := range r.Starts(g.All()) {
		n++
		if n == count {
			p.Until = mo.Some(w)
			break
		}
	}
	return p, nil
}
