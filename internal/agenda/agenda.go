// Package agenda keeps the set of known events (configured rules plus
// fetched feeds) and expands it on demand.
package agenda

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"recurcal/internal/clock"
	"recurcal/internal/config"
	"recurcal/internal/ics"
	appLog "recurcal/internal/log"
	"recurcal/internal/recur"
	"recurcal/internal/tzdb"
)

// Fetcher retrieves raw feed bodies.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []ics.Source) ([]ics.FetchResult, []error)
}

// Status describes the current snapshot.
type Status struct {
	RefreshedAt time.Time `json:"refreshed_at"`
	Rules       int       `json:"rules"`
	FeedEvents  int       `json:"feed_events"`
	FeedErrors  []string  `json:"feed_errors,omitempty"`
}

type snapshot struct {
	feeds       []ics.ParsedEvent
	refreshedAt time.Time
	feedErrors  []string
}

// Agenda holds an immutable snapshot of parsed feed events swapped by
// Refresh. Queries copy the snapshot reference and expand without locks.
type Agenda struct {
	cfg     *config.Config
	fetcher Fetcher
	zones   recur.ZoneSource
	clock   clock.Clock
	display *tzdb.Zone
	rules   []ics.ParsedEvent
	sources []ics.Source

	mu   sync.RWMutex
	snap snapshot
}

// Option configures an Agenda.
type Option func(*Agenda)

// WithClock overrides the clock used for default windows.
func WithClock(c clock.Clock) Option {
	return func(a *Agenda) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithZones overrides the zone source (tzdb.Default otherwise).
func WithZones(z recur.ZoneSource) Option {
	return func(a *Agenda) {
		if z != nil {
			a.zones = z
		}
	}
}

// New compiles the configured rules. Unknown zones and malformed rules are
// fatal here rather than at query time. A nil fetcher disables feeds.
func New(cfg *config.Config, fetcher Fetcher, opts ...Option) (*Agenda, error) {
	if cfg == nil {
		return nil, errors.New("agenda: config is nil")
	}
	a := &Agenda{
		cfg:     cfg,
		fetcher: fetcher,
		zones:   tzdb.Default,
		clock:   clock.NewSystem(),
	}
	for _, opt := range opts {
		opt(a)
	}

	display, err := a.zones.Load(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("agenda: timezone: %w", err)
	}
	a.display = display

	rules, err := CompileRules(cfg.Rules, display.Name(), a.zones)
	if err != nil {
		return nil, fmt.Errorf("agenda: %w", err)
	}
	a.rules = rules

	for _, s := range cfg.ICS {
		a.sources = append(a.sources, ics.Source{ID: s.ID, URL: s.URL, Name: s.Name})
	}
	return a, nil
}

// Location is the display timezone.
func (a *Agenda) Location() *time.Location { return a.display.Location() }

// Zones is the zone source used for expansion.
func (a *Agenda) Zones() recur.ZoneSource { return a.zones }

// Now returns the agenda clock's current time.
func (a *Agenda) Now() time.Time { return a.clock.Now() }

// DefaultWindow covers now through now plus the configured horizon.
func (a *Agenda) DefaultWindow() recur.Window {
	now := a.clock.Now()
	return recur.Window{From: now, To: now.AddDate(0, 0, a.cfg.HorizonDays)}
}

// Refresh fetches and parses every feed, then swaps the snapshot. Feeds that
// fail keep no events until the next successful refresh, unless the fetcher
// falls back to its cache. The returned error joins per-feed failures.
func (a *Agenda) Refresh(ctx context.Context) error {
	if a.fetcher == nil || len(a.sources) == 0 {
		a.swap(snapshot{refreshedAt: a.clock.Now()})
		return nil
	}

	results, errs := a.fetcher.FetchAll(ctx, a.sources)
	next := snapshot{refreshedAt: a.clock.Now()}
	opts := ics.ParseOptions{DefaultZone: a.display.Name(), Zones: a.zones}
	for _, res := range results {
		events, err := ics.ParseICS(res.Source, res.Body, opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", res.Source.ID, err))
			continue
		}
		next.feeds = append(next.feeds, events...)
	}
	for _, err := range errs {
		next.feedErrors = append(next.feedErrors, err.Error())
	}

	a.swap(next)
	appLog.Info("agenda refreshed", "feeds", len(results), "events", len(next.feeds), "errors", len(errs))
	return errors.Join(errs...)
}

func (a *Agenda) swap(s snapshot) {
	a.mu.Lock()
	a.snap = s
	a.mu.Unlock()
}

func (a *Agenda) current() snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap
}

// Status reports the current snapshot.
func (a *Agenda) Status() Status {
	s := a.current()
	return Status{
		RefreshedAt: s.refreshedAt,
		Rules:       len(a.rules),
		FeedEvents:  len(s.feeds),
		FeedErrors:  slices.Clone(s.feedErrors),
	}
}

// Occurrences expands rules and feed events whose start falls in w.
func (a *Agenda) Occurrences(w recur.Window) (ics.ExpandResult, error) {
	s := a.current()
	events := make([]ics.ParsedEvent, 0, len(a.rules)+len(s.feeds))
	events = append(events, a.rules...)
	events = append(events, s.feeds...)

	return ics.ExpandOccurrences(events, ics.ExpandConfig{
		DisplayLocation:        a.display.Location(),
		Window:                 w,
		MaxOccurrencesPerEvent: a.cfg.MaxOccurrences,
		Zones:                  a.zones,
	})
}

// Run refreshes once, then on the configured cron schedule until ctx is
// done. Overlapping runs are skipped.
func (a *Agenda) Run(ctx context.Context) error {
	if err := a.Refresh(ctx); err != nil {
		appLog.Error("initial refresh incomplete", err)
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(a.display.Location()),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(a.cfg.RefreshCron, func() {
		if err := a.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh incomplete", err)
		}
	}); err != nil {
		return fmt.Errorf("agenda: refresh schedule %q: %w", a.cfg.RefreshCron, err)
	}

	c.Start()
	appLog.Info("refresh scheduler started", "schedule", a.cfg.RefreshCron)
	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("refresh scheduler stopped")
	return nil
}

// cronLogger routes cron's logging through appLog.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	appLog.Error("cron: "+msg, err, kv...)
}
