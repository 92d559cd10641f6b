package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/masterstatus/internal/domain"
	apimw "github.com/hamed0406/masterstatus/internal/httpapi/middleware"
	"github.com/hamed0406/masterstatus/internal/report"
	"github.com/hamed0406/masterstatus/internal/repo"
)

const promContentType = "text/plain; version=0.0.4; charset=utf-8"

type Server struct {
	Logger *zap.Logger
	Store  repo.SnapshotStore
	Live   http.Handler // websocket endpoint; optional
	Report report.Options
}

func NewServer(l *zap.Logger, store repo.SnapshotStore, live http.Handler, opts report.Options) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{Logger: l, Store: store, Live: live, Report: opts}
}

// Router builds the public read-only API. rpm <= 0 disables rate limiting.
func (s *Server) Router(rpm, burst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.Live != nil {
		r.Handle("/ws", s.Live)
	}

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(rpm, burst))
		r.Get("/", s.handleReport(report.FormatHTML, "text/html; charset=utf-8"))
		r.Get("/api/status", s.handleReport(report.FormatJSON, "application/json"))
		r.Get("/api/summary", s.handleSummary)
		r.Get("/metrics", s.handleReport(report.FormatProm, promContentType))
	})

	return r
}

// latest writes a 503 and returns false until the first scan completes.
func (s *Server) latest(w http.ResponseWriter, r *http.Request) (domain.Snapshot, bool) {
	snap, ok, err := s.Store.Latest(r.Context())
	if err != nil {
		s.Logger.Warn("api_store_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store error")
		return domain.Snapshot{}, false
	}
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no scan completed yet")
		return domain.Snapshot{}, false
	}
	return snap, true
}

func (s *Server) handleReport(f report.Format, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := s.latest(w, r)
		if !ok {
			return
		}
		var buf bytes.Buffer
		if err := report.Render(&buf, f, snap, s.Report); err != nil {
			s.Logger.Error("api_render_error", zap.String("format", string(f)), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "render error")
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(buf.Bytes())
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.latest(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap.Summary())
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
