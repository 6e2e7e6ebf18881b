package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"recurcal/internal/agenda"
	"recurcal/internal/config"
	"recurcal/internal/ics"
	appLog "recurcal/internal/log"
	"recurcal/internal/model"
	"recurcal/internal/recur"
	"recurcal/internal/tzdb"
)

// maxRequestBytes bounds POST bodies.
const maxRequestBytes = 1 << 20

// Server provides the HTTP API over an agenda and a stateless expand endpoint.
type Server struct {
	cfg    *config.Config
	agenda *agenda.Agenda
	mux    *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, a *agenda.Agenda) *Server {
	s := &Server{
		cfg:    cfg,
		agenda: a,
		mux:    http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="recurcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /api/occurrences", s.handleOccurrences)
	s.mux.HandleFunc("GET /api/occurrences.ics", s.handleOccurrencesICS)
	s.mux.HandleFunc("POST /api/expand", s.handleExpand)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.agenda.Status())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.agenda.Refresh(r.Context()); err != nil {
		appLog.Error("api refresh incomplete", err)
	}
	writeJSON(w, http.StatusOK, s.agenda.Status())
}

// occurrencesResponse is the JSON response shape for /api/occurrences.
type occurrencesResponse struct {
	Occurrences     []occurrenceDTO `json:"occurrences"`
	TruncatedUIDs   []string        `json:"truncated_uids,omitempty"`
	FailedUIDs      []string        `json:"failed_uids,omitempty"`
	RangeStart      time.Time       `json:"range_start"`
	RangeEnd        time.Time       `json:"range_end"`
	DisplayTimeZone string          `json:"display_timezone"`
}

// occurrenceDTO is a JSON-friendly view of occurrences.
type occurrenceDTO struct {
	SourceID    string    `json:"source_id"`
	UID         string    `json:"uid"`
	InstanceKey string    `json:"instance_key"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	AllDay      bool      `json:"all_day"`
	Overridden  bool      `json:"overridden,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

func toDTOs(occ []model.Occurrence) []occurrenceDTO {
	dtos := make([]occurrenceDTO, 0, len(occ))
	for _, o := range occ {
		dtos = append(dtos, occurrenceDTO{
			SourceID:    o.SourceID,
			UID:         o.UID,
			InstanceKey: o.InstanceKey,
			Summary:     o.Summary,
			Description: o.Description,
			Location:    o.Location,
			AllDay:      o.AllDay,
			Overridden:  o.Overridden,
			Start:       o.Start,
			End:         o.End,
		})
	}
	return dtos
}

// queryWindow reads from/to (RFC 3339) from the query string. Missing
// bounds default to now and now plus the configured horizon.
func (s *Server) queryWindow(r *http.Request) (recur.Window, error) {
	w := s.agenda.DefaultWindow()
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return recur.Window{}, fmt.Errorf("%w: from: %v", recur.ErrInvalidWindow, err)
		}
		w.From = t
		if q.Get("to") == "" {
			w.To = t.AddDate(0, 0, s.cfg.HorizonDays)
		}
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return recur.Window{}, fmt.Errorf("%w: to: %v", recur.ErrInvalidWindow, err)
		}
		w.To = t
	}
	return w, w.Validate()
}

// handleOccurrences returns expanded occurrences of all rules and feeds.
//
// GET /api/occurrences?from=2023-09-18T00:00:00-05:00&to=2023-10-01T00:00:00-05:00
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	win, err := s.queryWindow(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	res, err := s.agenda.Occurrences(win)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	appLog.Debug("api occurrences", "from", win.From, "to", win.To, "count", len(res.Occurrences))
	writeJSON(w, http.StatusOK, occurrencesResponse{
		Occurrences:     toDTOs(res.Occurrences),
		TruncatedUIDs:   res.TruncatedEvents,
		FailedUIDs:      res.FailedEvents,
		RangeStart:      win.From.In(s.agenda.Location()),
		RangeEnd:        win.To.In(s.agenda.Location()),
		DisplayTimeZone: s.agenda.Location().String(),
	})
}

// handleOccurrencesICS serves the same window as a flat iCalendar feed.
func (s *Server) handleOccurrencesICS(w http.ResponseWriter, r *http.Request) {
	win, err := s.queryWindow(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	res, err := s.agenda.Occurrences(win)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ics.EncodeOccurrences(res.Occurrences, s.agenda.Now())))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// writeDomainError maps engine errors to status codes: unknown zones are
// 422, invalid patterns, templates and windows are 400.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tzdb.ErrUnknownZone):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, recur.ErrInvalidPattern),
		errors.Is(err, recur.ErrInvalidTemplate),
		errors.Is(err, recur.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		appLog.Error("api request failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
