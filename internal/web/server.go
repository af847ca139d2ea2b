package web

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/tipe/internal/config"
	"github.com/hpungsan/tipe/internal/metrics"
	"github.com/hpungsan/tipe/internal/poll"
	"github.com/hpungsan/tipe/internal/source"
	"github.com/hpungsan/tipe/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Deps are the collaborators the web layer serves from.
// Source, Poller and Metrics are optional.
type Deps struct {
	Store   *store.Store
	Config  *config.Config
	Source  source.Source
	Poller  *poll.Poller
	Metrics *metrics.Metrics
	Log     zerolog.Logger
	Version string
}

// NewServer creates the HTTP server for the dashboard and JSON API.
func NewServer(deps Deps) (*http.Server, error) {
	handler, err := NewHandler(deps)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              deps.Config.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// NewHandler builds the routed handler without binding a listener.
func NewHandler(deps Deps) (http.Handler, error) {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, err
	}

	h := newHandlers(deps, NewRenderer(templateSub, deps.Version, deps.Log))
	mux := http.NewServeMux()

	// Pages
	mux.HandleFunc("GET /{$}", h.HandleDashboard)
	mux.HandleFunc("GET /leads", h.HandleLeadsPage)
	mux.HandleFunc("GET /approved", h.HandleApprovedPage)
	mux.HandleFunc("GET /conversations", h.HandleConversationsPage)
	mux.HandleFunc("GET /conversations/{id}", h.HandleThreadPage)
	mux.HandleFunc("GET /meetings", h.HandleMeetingsPage)
	mux.HandleFunc("GET /content", h.HandleContentPage)

	// Leads
	mux.HandleFunc("GET /api/leads", h.HandleListLeads)
	mux.HandleFunc("PUT /api/leads", h.HandleSetLeads)
	mux.HandleFunc("GET /api/leads/next", h.HandleNextLead)
	mux.HandleFunc("GET /api/leads/approved", h.HandleApprovedLeads)
	mux.HandleFunc("GET /api/leads/{id}", h.HandleFetchLead)
	mux.HandleFunc("POST /api/leads/{id}/status", h.HandleUpdateLeadStatus)
	mux.HandleFunc("POST /api/leads/{id}/swipe", h.HandleSwipe)

	// Conversations
	mux.HandleFunc("GET /api/conversations", h.HandleListConversations)
	mux.HandleFunc("POST /api/conversations", h.HandleAddConversation)
	mux.HandleFunc("POST /api/conversations/{id}/toggle-ai", h.HandleToggleAI)
	mux.HandleFunc("GET /api/conversations/{id}/messages", h.HandleListMessages)
	mux.HandleFunc("POST /api/conversations/{id}/messages", h.HandleAddMessage)

	// Meetings and content
	mux.HandleFunc("GET /api/meetings", h.HandleListMeetings)
	mux.HandleFunc("POST /api/meetings", h.HandleAddMeeting)
	mux.HandleFunc("POST /api/meetings/{id}/status", h.HandleUpdateMeetingStatus)
	mux.HandleFunc("GET /api/content", h.HandleListContent)
	mux.HandleFunc("POST /api/content", h.HandleAddContent)
	mux.HandleFunc("PATCH /api/content/{id}", h.HandleUpdateContent)

	// Stats, sync, assistant
	mux.HandleFunc("GET /api/stats", h.HandleStats)
	mux.HandleFunc("POST /api/stats/refresh", h.HandleRefreshStats)
	mux.HandleFunc("GET /api/analytics", h.HandleAnalytics)
	mux.HandleFunc("POST /api/sync", h.HandleSync)
	mux.HandleFunc("POST /api/ask", h.HandleAsk)

	mux.HandleFunc("GET /healthz", h.HandleHealth)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	var handler http.Handler = mux
	if deps.Metrics != nil {
		handler = instrument(deps.Metrics, handler)
	}
	return securityHeaders(handler), nil
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latency by route pattern.
// The mux fills r.Pattern while routing, so it is read after the call.
func instrument(m *metrics.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(route, rec.status, time.Since(start))
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, log zerolog.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info().Str("addr", "http://"+srv.Addr).Msg("tipe dashboard running")
	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		log.Warn().Msg("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
