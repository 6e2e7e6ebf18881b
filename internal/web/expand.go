package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"

	"recurcal/internal/ics"
	"recurcal/internal/recur"
)

// expandRequest is the body of POST /api/expand. The pattern is given either
// as an RRULE value or as separate fields; Until is a wall time in Timezone, which defaults to
// the configured zone.
type expandRequest struct {
	RRule string `json:"rrule,omitempty"`

	Frequency  string   `json:"frequency,omitempty"`
	Interval   int      `json:"interval,omitempty"`
	Until      string   `json:"until,omitempty"`
	ByMonth    []int    `json:"by_month,omitempty"`
	ByMonthDay []int    `json:"by_month_day,omitempty"`
	ByDay      []string `json:"by_day,omitempty"`

	Start    string `json:"start"`
	Duration string `json:"duration,omitempty"`
	Timezone string `json:"timezone"`

	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	// Limit caps the response; 0 uses the configured maximum.
	Limit int `json:"limit,omitempty"`
}

type expandOccurrence struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type expandResponse struct {
	Pattern     string             `json:"pattern"`
	Timezone    string             `json:"timezone"`
	Occurrences []expandOccurrence `json:"occurrences"`
	Truncated   bool               `json:"truncated,omitempty"`
}

// rruleText renders the field form of the request as an RRULE value.
func (req expandRequest) rruleText() string {
	if req.RRule != "" {
		return req.RRule
	}
	parts := []string{"FREQ=" + strings.ToUpper(req.Frequency)}
	if req.Interval != 0 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(req.Interval))
	}
	if len(req.ByMonth) > 0 {
		parts = append(parts, "BYMONTH="+joinInts(req.ByMonth))
	}
	if len(req.ByMonthDay) > 0 {
		parts = append(parts, "BYMONTHDAY="+joinInts(req.ByMonthDay))
	}
	if len(req.ByDay) > 0 {
		parts = append(parts, "BYDAY="+strings.ToUpper(strings.Join(req.ByDay, ",")))
	}
	return strings.Join(parts, ";")
}

func joinInts(ns []int) string {
	ss := make([]string, len(ns))
	for i, n := range ns {
		ss[i] = strconv.Itoa(n)
	}
	return strings.Join(ss, ",")
}

// handleExpand expands an ad-hoc pattern without touching the agenda.
//
// POST /api/expand
//
//	{"rrule":"FREQ=WEEKLY;BYDAY=MO,TU,WE","start":"2023-09-18T08:30",
//	 "duration":"1h","timezone":"America/Chicago",
//	 "from":"2023-09-18T00:00:00-05:00","to":"2023-10-01T00:00:00-05:00"}
func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	var req expandRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	if req.Timezone == "" {
		req.Timezone = s.cfg.Timezone
	}
	zone, err := s.agenda.Zones().Load(req.Timezone)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	tmpl, err := req.template(zone.Name())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	rule, err := ics.ParseRRule(req.rruleText(), zone.Location())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	pattern := rule.Pattern
	if req.Until != "" {
		u, err := recur.ParseWall(req.Until)
		if err != nil {
			writeDomainError(w, fmt.Errorf("%w: until: %v", recur.ErrInvalidPattern, err))
			return
		}
		pattern.Until = mo.Some(u)
	}
	if pattern, err = ics.CountToUntil(pattern, tmpl.Start, rule.Count, recur.NewResolver(zone)); err != nil {
		writeDomainError(w, err)
		return
	}

	seq, err := recur.Expand(pattern, tmpl, recur.Window{From: req.From, To: req.To}, s.agenda.Zones())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	limit := req.Limit
	if limit <= 0 || limit > s.cfg.MaxOccurrences {
		limit = s.cfg.MaxOccurrences
	}
	resp := expandResponse{
		Pattern:     pattern.String(),
		Timezone:    zone.Name(),
		Occurrences: make([]expandOccurrence, 0),
	}
	for occ := range seq {
		if len(resp.Occurrences) == limit {
			resp.Truncated = true
			break
		}
		resp.Occurrences = append(resp.Occurrences, expandOccurrence{
			Start: occ.Start.In(zone.Location()),
			End:   occ.End.In(zone.Location()),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (req expandRequest) template(zone string) (recur.Template, error) {
	start, err := recur.ParseWall(req.Start)
	if err != nil {
		return recur.Template{}, fmt.Errorf("%w: start: %v", recur.ErrInvalidTemplate, err)
	}
	var d time.Duration
	if req.Duration != "" {
		if d, err = time.ParseDuration(req.Duration); err != nil {
			return recur.Template{}, fmt.Errorf("%w: duration: %v", recur.ErrInvalidTemplate, err)
		}
	}
	t := recur.Template{Start: start, Duration: d, Zone: zone}
	return t, t.Validate()
}
