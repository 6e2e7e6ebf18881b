package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recurcal/internal/agenda"
	"recurcal/internal/clock"
	"recurcal/internal/config"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) http.Handler {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "America/Chicago"
	cfg.HorizonDays = 10
	cfg.Rules = []config.RuleConfig{{
		ID:       "standup",
		Summary:  "Standup",
		Start:    "2023-09-18T08:30",
		Duration: "15m",
		RRule:    "FREQ=WEEKLY;BYDAY=MO,TU,WE",
	}}
	if mutate != nil {
		mutate(cfg)
	}

	now := time.Date(2023, time.September, 18, 5, 0, 0, 0, time.UTC) // midnight CDT
	a, err := agenda.New(cfg, nil, agenda.WithClock(clock.NewFixed(now)))
	require.NoError(t, err)
	return NewServer(cfg, a).Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestOccurrences_DefaultWindow(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodGet, "/api/occurrences", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp occurrencesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// Sep 18 .. Sep 28: Mon-Wed of two weeks.
	require.Len(t, resp.Occurrences, 6)
	assert.Equal(t, "America/Chicago", resp.DisplayTimeZone)
	assert.Equal(t, "standup", resp.Occurrences[0].UID)
	assert.True(t, resp.Occurrences[0].Start.Equal(time.Date(2023, time.September, 18, 13, 30, 0, 0, time.UTC)))
	assert.Equal(t, 15*time.Minute, resp.Occurrences[0].End.Sub(resp.Occurrences[0].Start))
}

func TestOccurrences_ExplicitWindow(t *testing.T) {
	h := newTestServer(t, nil)
	rec := do(t, h, http.MethodGet, "/api/occurrences?from=2023-09-19T00:00:00-05:00&to=2023-09-20T00:00:00-05:00", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp occurrencesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Occurrences, 1)
	assert.Equal(t, 19, resp.Occurrences[0].Start.Day())
}

func TestOccurrences_BadWindow(t *testing.T) {
	h := newTestServer(t, nil)
	for _, q := range []string{
		"?from=yesterday",
		"?from=2023-09-20T00:00:00Z&to=2023-09-19T00:00:00Z",
		"?from=2023-09-20T00:00:00Z&to=2023-09-20T00:00:00Z",
	} {
		rec := do(t, h, http.MethodGet, "/api/occurrences"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestOccurrencesICS(t *testing.T) {
	rec := do(t, newTestServer(t, nil), http.MethodGet, "/api/occurrences.ics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, 6, strings.Count(rec.Body.String(), "BEGIN:VEVENT"))
	assert.Contains(t, rec.Body.String(), "DTSTART:20230918T133000Z")
}

func TestExpand_RRule(t *testing.T) {
	body := `{"rrule":"FREQ=MONTHLY;INTERVAL=2;BYMONTHDAY=10","start":"2023-09-19T08:30","duration":"1h",
		"timezone":"America/Chicago","from":"2023-09-19T06:00:00-05:00","to":"2024-06-19T06:00:00-05:00"}`
	rec := do(t, newTestServer(t, nil), http.MethodPost, "/api/expand", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp expandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	months := make([]time.Month, 0, len(resp.Occurrences))
	for _, o := range resp.Occurrences {
		months = append(months, o.Start.Month())
	}
	assert.Equal(t, []time.Month{time.September, time.November, time.January, time.March, time.May}, months)
	assert.Equal(t, "FREQ=MONTHLY;INTERVAL=2;BYMONTHDAY=10", resp.Pattern)
}

func TestExpand_FieldsAndLimit(t *testing.T) {
	body := `{"frequency":"weekly","by_day":["mo","tu","we"],"start":"2023-09-18T08:30",
		"from":"2023-09-18T00:00:00-05:00","to":"2023-12-31T00:00:00-06:00","limit":4}`
	rec := do(t, newTestServer(t, nil), http.MethodPost, "/api/expand", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp expandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Occurrences, 4)
	assert.True(t, resp.Truncated)
	assert.Equal(t, "America/Chicago", resp.Timezone)

	days := []int{}
	for _, o := range resp.Occurrences {
		days = append(days, o.Start.Day())
	}
	assert.Equal(t, []int{18, 19, 20, 25}, days)
}

func TestExpand_DaylightSavingGap(t *testing.T) {
	body := `{"rrule":"FREQ=DAILY","start":"2023-03-10T02:30","duration":"30m","timezone":"America/Chicago",
		"from":"2023-03-10T00:00:00-06:00","to":"2023-03-14T00:00:00-05:00"}`
	rec := do(t, newTestServer(t, nil), http.MethodPost, "/api/expand", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp expandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Occurrences, 4)
	// 02:30 does not exist on Mar 12; it runs at 03:30 CDT instead.
	assert.Equal(t, 3, resp.Occurrences[2].Start.Hour())
	assert.Equal(t, 12, resp.Occurrences[2].Start.Day())
}

func TestExpand_Errors(t *testing.T) {
	h := newTestServer(t, nil)
	tests := []struct {
		name string
		body string
		code int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"unknown field", `{"frobnicate":1}`, http.StatusBadRequest},
		{"unknown zone", `{"rrule":"FREQ=DAILY","start":"2023-01-01T09:00","timezone":"Mars/Base","from":"2023-01-01T00:00:00Z","to":"2023-02-01T00:00:00Z"}`, http.StatusUnprocessableEntity},
		{"bad pattern", `{"rrule":"FREQ=HOURLY","start":"2023-01-01T09:00","from":"2023-01-01T00:00:00Z","to":"2023-02-01T00:00:00Z"}`, http.StatusBadRequest},
		{"negative interval", `{"frequency":"daily","interval":-1,"start":"2023-01-01T09:00","from":"2023-01-01T00:00:00Z","to":"2023-02-01T00:00:00Z"}`, http.StatusBadRequest},
		{"bad start", `{"rrule":"FREQ=DAILY","start":"soon","from":"2023-01-01T00:00:00Z","to":"2023-02-01T00:00:00Z"}`, http.StatusBadRequest},
		{"negative duration", `{"rrule":"FREQ=DAILY","start":"2023-01-01T09:00","duration":"-1h","from":"2023-01-01T00:00:00Z","to":"2023-02-01T00:00:00Z"}`, http.StatusBadRequest},
		{"inverted window", `{"rrule":"FREQ=DAILY","start":"2023-01-01T09:00","from":"2023-02-01T00:00:00Z","to":"2023-01-01T00:00:00Z"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/expand", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestBasicAuth(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "s3cret"}
	})

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/occurrences", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/occurrences", nil)
	req.SetBasicAuth("admin", "s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/occurrences", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatusAndRefresh(t *testing.T) {
	h := newTestServer(t, nil)

	rec := do(t, h, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var st agenda.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 1, st.Rules)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/refresh", "").Code)
}
