package recur

import (
	"iter"
	"time"
)

// maxYear ends generation for patterns whose Until lies beyond reach.
const maxYear = 9999

// The Gregorian calendar repeats every 400 years, which is a whole number
// of days, weeks, months and years.
const (
	cycleDays   = 146097
	cycleWeeks  = cycleDays / 7
	cycleMonths = 400 * 12
	cycleYears  = 400
)

// Generator produces the wall-clock start times implied by a pattern
// anchored at a template start.
//
// Candidates are grouped in blocks: block k covers the day, week (Monday to
// Sunday), month or year that lies k*Interval units after the one holding
// the anchor. Every block is computed from k alone, so a Generator holds no
// cursor and any number of goroutines may iterate it at once.
//
// The anchor is always the first candidate. Every later candidate falls
// strictly after the anchor and never after Until.
type Generator struct {
	p      Pattern
	anchor Wall
	origin Wall
}

// NewGenerator validates p and binds it to anchor.
func NewGenerator(p Pattern, anchor Wall) (*Generator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	g := &Generator{p: p.normalized(), anchor: anchor}

	switch g.p.Frequency {
	case Daily:
		g.origin = anchor.Date()
	case Weekly:
		g.origin = weekStart(anchor)
	case Monthly:
		g.origin = NewWall(anchor.Year(), anchor.Month(), 1, 0, 0, 0)
	case Yearly:
		g.origin = NewWall(anchor.Year(), time.January, 1, 0, 0, 0)
	}
	return g, nil
}

// Pattern returns a copy of the normalized pattern.
func (g *Generator) Pattern() Pattern { return g.p.normalized() }

// Anchor returns the first candidate.
func (g *Generator) Anchor() Wall { return g.anchor }

// BlockStart returns midnight of the first day of block k.
func (g *Generator) BlockStart(k int) Wall {
	n := k * g.p.Interval
	switch g.p.Frequency {
	case Daily:
		return g.origin.AddDate(0, 0, n)
	case Weekly:
		return g.origin.AddDate(0, 0, 7*n)
	case Monthly:
		return g.origin.AddDate(0, n, 0)
	default:
		return g.origin.AddDate(n, 0, 0)
	}
}

// BlockAt returns the largest block index whose start is at or before w,
// or 0 when w precedes the first block.
func (g *Generator) BlockAt(w Wall) int {
	if !w.After(g.origin) {
		return 0
	}
	var units int
	switch g.p.Frequency {
	case Daily:
		units = daysBetween(g.origin, w)
	case Weekly:
		units = daysBetween(g.origin, w) / 7
	case Monthly:
		units = (w.Year()-g.origin.Year())*12 + int(w.Month()) - int(g.origin.Month())
	default:
		units = w.Year() - g.origin.Year()
	}
	return units / g.p.Interval
}

// Block returns the candidates of block k in ascending order. Block 0 holds
// the anchor.
func (g *Generator) Block(k int) []Wall {
	if k < 0 || g.exhausted(k) {
		return nil
	}
	var out []Wall
	if k == 0 && g.withinUntil(g.anchor) {
		out = append(out, g.anchor)
	}
	for _, c := range g.rawBlock(k) {
		if !c.After(g.anchor) {
			continue
		}
		if !g.withinUntil(c) {
			break
		}
		out = append(out, c)
	}
	return out
}

// All returns every candidate from the anchor on. Without Until the
// sequence ends at year 9999 or once the filters can no longer match;
// stop consuming when done.
func (g *Generator) All() iter.Seq[Wall] {
	return g.From(0)
}

// From returns the candidates of block k and every block after it.
func (g *Generator) From(k int) iter.Seq[Wall] {
	if k < 0 {
		k = 0
	}
	return func(yield func(Wall) bool) {
		idle := 0
		for i := k; !g.exhausted(i) && idle < g.idleLimit(); i++ {
			block := g.Block(i)
			if len(block) == 0 {
				idle++
				continue
			}
			idle = 0
			for _, c := range block {
				if !yield(c) {
					return
				}
			}
		}
	}
}

// Between returns the candidates c with lo <= c <= hi. It starts at the
// block holding lo and ends at the first block beyond hi, whether or not
// any candidate matched.
func (g *Generator) Between(lo, hi Wall) iter.Seq[Wall] {
	return func(yield func(Wall) bool) {
		idle := 0
		for k := g.BlockAt(lo); !g.exhausted(k) && !g.BlockStart(k).After(hi) && idle < g.idleLimit(); k++ {
			block := g.Block(k)
			if len(block) == 0 {
				idle++
				continue
			}
			idle = 0
			for _, c := range block {
				if c.Before(lo) {
					continue
				}
				if c.After(hi) || !yield(c) {
					return
				}
			}
		}
	}
}

func (g *Generator) exhausted(k int) bool {
	start := g.BlockStart(k)
	if start.Year() > maxYear {
		return true
	}
	if until, ok := g.p.Until.Get(); ok && start.After(until) {
		return true
	}
	return false
}

// idleLimit is the number of consecutive empty blocks after which no block
// can produce a candidate again. Block contents depend only on where the
// block starts in the 400-year calendar cycle, and the block starts revisit
// the same positions after this many blocks.
func (g *Generator) idleLimit() int {
	var units int
	switch g.p.Frequency {
	case Daily:
		units = cycleDays
	case Weekly:
		units = cycleWeeks
	case Monthly:
		units = cycleMonths
	default:
		units = cycleYears
	}
	return units / gcd(units, g.p.Interval)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func (g *Generator) withinUntil(w Wall) bool {
	until, ok := g.p.Until.Get()
	return !ok || !w.After(until)
}

// rawBlock returns the dates block k selects, at the anchor's clock time,
// before anchor and Until bounds are applied.
func (g *Generator) rawBlock(k int) []Wall {
	start := g.BlockStart(k)

	var days []Wall
	switch g.p.Frequency {
	case Daily:
		if g.monthMatches(start.Month()) && g.monthDayMatches(start) && g.weekdayListed(start.Weekday()) {
			days = append(days, start)
		}
	case Weekly:
		for i := range 7 {
			d := start.AddDate(0, 0, i)
			if !g.monthMatches(d.Month()) {
				continue
			}
			if len(g.p.ByDay) == 0 && d.Weekday() != g.anchor.Weekday() {
				continue
			}
			if g.weekdayListed(d.Weekday()) {
				days = append(days, d)
			}
		}
	case Monthly:
		if g.monthMatches(start.Month()) {
			days = g.monthDays(start.Year(), start.Month())
		}
	case Yearly:
		days = g.yearDays(start.Year())
	}

	for i := range days {
		days[i] = days[i].At(g.anchor)
	}
	return days
}

// monthDays selects days of one month. With no day filters it falls back to
// the anchor's day of month, which some months lack.
func (g *Generator) monthDays(year int, month time.Month) []Wall {
	n := daysIn(year, month)
	if len(g.p.ByMonthDay) == 0 && len(g.p.ByDay) == 0 {
		if d := g.anchor.Day(); d <= n {
			return []Wall{NewWall(year, month, d, 0, 0, 0)}
		}
		return nil
	}
	return g.periodDays(NewWall(year, month, 1, 0, 0, 0), n)
}

func (g *Generator) yearDays(year int) []Wall {
	if len(g.p.ByDay) > 0 && len(g.p.ByMonth) == 0 {
		// Nth weekday counts across the whole year.
		first := NewWall(year, time.January, 1, 0, 0, 0)
		return g.periodDays(first, daysBetween(first, first.AddDate(1, 0, 0)))
	}

	months := g.p.ByMonth
	if len(months) == 0 {
		if len(g.p.ByMonthDay) > 0 {
			months = allMonths
		} else {
			months = []time.Month{g.anchor.Month()}
		}
	}
	var out []Wall
	for _, m := range months {
		out = append(out, g.monthDays(year, m)...)
	}
	return out
}

var allMonths = []time.Month{
	time.January, time.February, time.March, time.April, time.May, time.June,
	time.July, time.August, time.September, time.October, time.November, time.December,
}

// periodDays selects days of the n-day period starting at first. ByDay picks
// weekdays with Nth counted inside the period; ByMonthDay and ByMonth then
// narrow the result. Output is ascending.
func (g *Generator) periodDays(first Wall, n int) []Wall {
	picked := make([]bool, n)
	if len(g.p.ByDay) == 0 {
		for i := range picked {
			picked[i] = true
		}
	}
	for _, wd := range g.p.ByDay {
		for _, i := range weekdayIndexes(first.Weekday(), n, wd) {
			picked[i] = true
		}
	}

	var out []Wall
	for i, ok := range picked {
		if !ok {
			continue
		}
		d := first.AddDate(0, 0, i)
		if g.monthMatches(d.Month()) && g.monthDayMatches(d) {
			out = append(out, d)
		}
	}
	return out
}

// weekdayIndexes returns the 0-based offsets within an n-day period whose
// first day falls on firstDay that wd selects.
func weekdayIndexes(firstDay time.Weekday, n int, wd WeekdayNum) []int {
	head := (int(wd.Weekday) - int(firstDay) + 7) % 7
	if head >= n {
		return nil
	}
	nth, ok := wd.Nth.Get()
	if !ok {
		out := make([]int, 0, (n-head+6)/7)
		for i := head; i < n; i += 7 {
			out = append(out, i)
		}
		return out
	}

	var i int
	if nth > 0 {
		i = head + 7*(nth-1)
	} else {
		last := head + 7*((n-1-head)/7)
		i = last + 7*(nth+1)
	}
	if i < 0 || i >= n {
		return nil
	}
	return []int{i}
}

func (g *Generator) monthMatches(m time.Month) bool {
	if len(g.p.ByMonth) == 0 {
		return true
	}
	for _, bm := range g.p.ByMonth {
		if bm == m {
			return true
		}
	}
	return false
}

func (g *Generator) monthDayMatches(d Wall) bool {
	if len(g.p.ByMonthDay) == 0 {
		return true
	}
	n := daysIn(d.Year(), d.Month())
	for _, md := range g.p.ByMonthDay {
		if md > 0 && md == d.Day() {
			return true
		}
		if md < 0 && n+md+1 == d.Day() {
			return true
		}
	}
	return false
}

// weekdayListed reports whether ByDay is empty or names wd. Nth is not
// meaningful for daily and weekly blocks and is ignored here.
func (g *Generator) weekdayListed(wd time.Weekday) bool {
	if len(g.p.ByDay) == 0 {
		return true
	}
	for _, d := range g.p.ByDay {
		if d.Weekday == wd {
			return true
		}
	}
	return false
}
