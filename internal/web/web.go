package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"agendacal/internal/agenda"
	"agendacal/internal/config"
	appLog "agendacal/internal/log"
	"agendacal/internal/model"
)

// Server exposes read-only queries over one Agenda.
//
// The agenda package has no locking of its own; the server guards its
// Agenda with an RWMutex and swaps in reloaded agendas whole.
type Server struct {
	cfg      *config.Config
	loc      *time.Location
	mux      *http.ServeMux
	now      func() time.Time
	limiter  *rate.Limiter
	registry *prometheus.Registry
	metrics  *Metrics

	mu     sync.RWMutex
	agenda *agenda.Agenda
}

// NewServer constructs a new Server serving a.
func NewServer(cfg *config.Config, a *agenda.Agenda) *Server {
	if a == nil {
		a = agenda.New()
	}
	reg := prometheus.NewRegistry()
	s := &Server{
		cfg:      cfg,
		loc:      ResolveLocation(cfg.Timezone),
		mux:      http.NewServeMux(),
		now:      time.Now,
		registry: reg,
		metrics:  NewMetrics(reg),
		agenda:   a,
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	}
	s.metrics.setAgendaEvents(a.Len())
	s.registerRoutes()
	return s
}

// SetAgenda replaces the served agenda.
func (s *Server) SetAgenda(a *agenda.Agenda) {
	s.mu.Lock()
	s.agenda = a
	s.mu.Unlock()
	s.metrics.setAgendaEvents(a.Len())
	appLog.Info("agenda swapped", "events", a.Len())
}

// RecordReload counts a reload attempt for /metrics.
func (s *Server) RecordReload(err error) {
	s.metrics.observeReload(err)
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.limiter != nil {
		h = s.rateLimitMiddleware(h)
	}
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured with both
// a username and a password.
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
			w.Header().Set("WWW-Authenticate", `Basic realm="agendacal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware answers 429 once /api requests exceed the configured
// rate. /health and /metrics are not limited.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
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
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("GET /api/events", s.instrument("events", s.handleEventsInDay))
	s.mux.HandleFunc("GET /api/events/search", s.instrument("search", s.handleSearch))
	s.mux.HandleFunc("GET /api/free", s.instrument("free", s.handleFree))
	s.mux.HandleFunc("GET /api/occurrences", s.instrument("occurrences", s.handleOccurrences))
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		s.metrics.observeRequest(route, rec.status, time.Since(began))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventDTO is a JSON-friendly view of an event.
type eventDTO struct {
	Title           string      `json:"title"`
	Start           time.Time   `json:"start"`
	End             time.Time   `json:"end"`
	DurationMinutes float64     `json:"duration_minutes"`
	Frequency       string      `json:"frequency,omitempty"`
	Exceptions      []string    `json:"exceptions,omitempty"`
	TerminationDate *civil.Date `json:"termination_date,omitempty"`
	Occurrences     *int64      `json:"occurrences,omitempty"`
}

// occurrenceDTO is a JSON-friendly view of occurrences.
type occurrenceDTO struct {
	Title       string    `json:"title"`
	InstanceKey string    `json:"instance_key"`
	Recurring   bool      `json:"recurring"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

type eventsResponse struct {
	Day    string     `json:"day,omitempty"`
	Title  string     `json:"title,omitempty"`
	Events []eventDTO `json:"events"`
}

type freeResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Free  bool      `json:"free"`
}

type occurrencesResponse struct {
	From            string          `json:"from"`
	To              string          `json:"to"`
	Occurrences     []occurrenceDTO `json:"occurrences"`
	TruncatedEvents []string        `json:"truncated_events,omitempty"`
}

// handleEventsInDay lists the events occurring on a day.
//
// GET /api/events?day=2020-11-01 (default: today in the configured zone)
func (s *Server) handleEventsInDay(w http.ResponseWriter, r *http.Request) {
	day, err := s.dateParam(r, "day")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.RLock()
	events := s.agenda.EventsInDay(day)
	s.mu.RUnlock()

	appLog.Debug("api events request", "day", day.String(), "matches", len(events))
	writeJSON(w, http.StatusOK, eventsResponse{Day: day.String(), Events: toDTOs(events)})
}

// handleSearch lists the events whose title matches exactly.
//
// GET /api/events/search?title=Standup
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	s.mu.RLock()
	events := s.agenda.FindByTitle(title)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, eventsResponse{Title: title, Events: toDTOs(events)})
}

// handleFree reports whether a slot conflicts with any single event.
//
// GET /api/free?start=2020-11-02T10:00&duration=30m
func (s *Server) handleFree(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := ParseDateTime(q.Get("start"), s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start: "+err.Error())
		return
	}
	d, err := time.ParseDuration(q.Get("duration"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid duration: "+err.Error())
		return
	}

	candidate := model.NewEvent("candidate", start, d)
	s.mu.RLock()
	free := s.agenda.IsFreeFor(candidate)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, freeResponse{Start: candidate.Start(), End: candidate.End(), Free: free})
}

// handleOccurrences expands all events over an inclusive date range.
//
// GET /api/occurrences?from=2020-11-01&to=2020-11-30
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	from, err := s.dateParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := s.dateParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.RLock()
	res, err := s.agenda.Expand(agenda.ExpandConfig{
		From:                   from,
		To:                     to,
		MaxOccurrencesPerEvent: s.cfg.MaxOccurrences,
	})
	s.mu.RUnlock()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dtos := make([]occurrenceDTO, 0, len(res.Occurrences))
	for _, occ := range res.Occurrences {
		dtos = append(dtos, occurrenceDTO{
			Title:       occ.Title,
			InstanceKey: occ.InstanceKey,
			Recurring:   occ.Recurring,
			Start:       occ.Start,
			End:         occ.End,
		})
	}
	writeJSON(w, http.StatusOK, occurrencesResponse{
		From:            from.String(),
		To:              to.String(),
		Occurrences:     dtos,
		TruncatedEvents: res.TruncatedEvents,
	})
}

// dateParam reads a YYYY-MM-DD query parameter, defaulting to today.
func (s *Server) dateParam(r *http.Request, name string) (civil.Date, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return civil.DateOf(s.now().In(s.loc)), nil
	}
	d, err := civil.ParseDate(v)
	if err != nil {
		return civil.Date{}, errors.New("invalid " + name + ": want YYYY-MM-DD")
	}
	return d, nil
}

func toDTOs(events []*model.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, e := range events {
		dto := eventDTO{
			Title:           e.Title(),
			Start:           e.Start(),
			End:             e.End(),
			DurationMinutes: e.Duration().Minutes(),
		}
		if r, ok := e.Repetition(); ok {
			dto.Frequency = r.Frequency().String()
			for _, d := range r.Exceptions() {
				dto.Exceptions = append(dto.Exceptions, d.String())
			}
		}
		if d, ok := e.TerminationDate(); ok {
			dto.TerminationDate = &d
		}
		if n, ok := e.OccurrenceCount(); ok {
			dto.Occurrences = &n
		}
		out = append(out, dto)
	}
	return out
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
