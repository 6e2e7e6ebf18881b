package agenda

import (
	"fmt"

	"github.com/samber/mo"

	"recurcal/internal/config"
	"recurcal/internal/ics"
	"recurcal/internal/recur"
)

// RulesSource is the source ID of events defined in the config file.
const RulesSource = "config"

// CompileRules turns configured rules into events ready for expansion.
// Rules without a timezone use defaultZone. The first bad rule fails the
// whole set.
func CompileRules(rules []config.RuleConfig, defaultZone string, zones recur.ZoneSource) ([]ics.ParsedEvent, error) {
	out := make([]ics.ParsedEvent, 0, len(rules))
	for _, r := range rules {
		ev, err := compileRule(r, defaultZone, zones)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func compileRule(r config.RuleConfig, defaultZone string, zones recur.ZoneSource) (ics.ParsedEvent, error) {
	zoneName := r.Timezone
	if zoneName == "" {
		zoneName = defaultZone
	}
	zone, err := zones.Load(zoneName)
	if err != nil {
		return ics.ParsedEvent{}, err
	}
	start, err := recur.ParseWall(r.Start)
	if err != nil {
		return ics.ParsedEvent{}, fmt.Errorf("%w: start: %v", recur.ErrInvalidTemplate, err)
	}
	d, err := r.ParsedDuration()
	if err != nil {
		return ics.ParsedEvent{}, fmt.Errorf("%w: %v", recur.ErrInvalidTemplate, err)
	}

	rule, err := ics.ParseRRule(r.RRule, zone.Location())
	if err != nil {
		return ics.ParsedEvent{}, err
	}
	pattern, err := ics.CountToUntil(rule.Pattern, start, rule.Count, recur.NewResolver(zone))
	if err != nil {
		return ics.ParsedEvent{}, err
	}

	return ics.ParsedEvent{
		Source:     ics.Source{ID: RulesSource, Name: "Configured rules"},
		UID:        r.ID,
		Summary:    r.Summary,
		Template:   recur.Template{Start: start, Duration: d, Zone: zone.Name()},
		Recurrence: mo.Some(pattern),
	}, nil
}
