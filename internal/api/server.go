// Package api serves the scorelog viewer over HTTP: a JSON API for one-shot
// views, a PNG chart endpoint, a WebSocket session for interactive
// viewers and the HTML page itself.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/talgya/scorelog-viewer/internal/app"
	"github.com/talgya/scorelog-viewer/internal/loader"
	"github.com/talgya/scorelog-viewer/internal/present"
	"github.com/talgya/scorelog-viewer/internal/selection"
	"github.com/talgya/scorelog-viewer/internal/session"
)

// Largest PNG the chart endpoint will draw.
const maxChartSide = 4096

// Server serves the viewer over HTTP.
type Server struct {
	App  *app.App
	Port int

	chartLimiter *RateLimiter
	httpServer   *http.Server
}

// NewServer creates a server for the given app.
func NewServer(a *app.App) *Server {
	return &Server{
		App:          a,
		Port:         a.Config.Server.Port,
		chartLimiter: NewRateLimiter(a.Config.Server.ChartRatePerHour, time.Hour),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.App.Config.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWS)

	// Everything below has a bounded runtime; the WebSocket above does not.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/", s.handleIndex)
		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/sources", s.handleSources)
			r.Get("/tags", s.handleTags)
			r.Get("/view", s.handleView)
			r.With(s.chartLimiter.Middleware).Get("/chart.png", s.handleChartPNG)
			r.Get("/legend/government", s.handleGovernmentLegend)
			r.Get("/loads", s.handleLoads)
		})
	})

	return r
}

// Start begins serving in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP server starting", "addr", addr,
		"archive", s.App.DB != nil, "cache", s.App.Redis != nil)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.chartLimiter.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":  "ok",
		"archive": s.App.DB != nil,
		"cache":   s.App.Redis != nil,
	})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	sources := selection.ListSources(s.App.Config)
	opts := make([]session.SourceOption, len(sources))
	for i, id := range sources {
		opts[i] = session.SourceOption{ID: id, Label: selection.SourceLabel(id)}
	}
	initial, _ := selection.ResolveInitialSource(r.URL.Query().Get("file"), sources)
	writeJSON(w, map[string]any{
		"sources": opts,
		"initial": initial,
	})
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	u, status := s.view(r)
	if status != http.StatusOK {
		writeError(w, status, u.Status)
		return
	}
	writeJSON(w, map[string]any{
		"source": u.Source,
		"tags":   u.Tags,
		"tag":    u.Tag,
	})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	u, status := s.view(r)
	writeJSONStatus(w, status, u)
}

func (s *Server) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	width, err := sizeParam(r, "w", present.DefaultPNGWidth)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	height, err := sizeParam(r, "h", present.DefaultPNGHeight)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	u, status := s.view(r)
	if status != http.StatusOK && status != http.StatusBadGateway {
		writeError(w, status, u.Status)
		return
	}

	var buf bytes.Buffer
	if err := present.RenderPNG(&buf, u.View, width, height); err != nil {
		slog.Error("render chart", "source", u.Source, "tag", u.Tag, "error", err)
		writeError(w, http.StatusInternalServerError, "chart rendering failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (s *Server) handleGovernmentLegend(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.App.Engine.GovernmentLegend())
}

func (s *Server) handleLoads(w http.ResponseWriter, r *http.Request) {
	if s.App.DB == nil {
		writeError(w, http.StatusNotFound, "archive not configured")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be 1-1000")
			return
		}
		limit = n
	}
	loads, err := s.App.DB.RecentLoads(r.Context(), limit)
	if err != nil {
		slog.Error("recent loads", "error", err)
		writeError(w, http.StatusInternalServerError, "load log unavailable")
		return
	}
	writeJSON(w, loads)
}

// view runs a one-shot session for the file, tag and stacked query
// parameters. A failed load still yields the empty-state update, with
// status 502.
func (s *Server) view(r *http.Request) (session.Update, int) {
	q := r.URL.Query()
	c := s.App.NewSession()

	if v := q.Get("stacked"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			u := c.Snapshot()
			u.Status = "stacked must be a boolean"
			return u, http.StatusBadRequest
		}
		c.SetStacked(on)
	}

	u, err := c.Open(r.Context(), q.Get("file"))
	if err != nil {
		var le *loader.LoadError
		switch {
		case errors.As(err, &le):
			return u, http.StatusBadGateway
		case errors.Is(err, session.ErrNoSources):
			u.Status = err.Error()
			return u, http.StatusNotFound
		default:
			u.Status = err.Error()
			return u, http.StatusInternalServerError
		}
	}

	if q.Has("tag") {
		u, err = c.SelectTag(q.Get("tag"))
		if err != nil {
			u.Status = err.Error()
			return u, http.StatusNotFound
		}
	}
	return u, http.StatusOK
}

func sizeParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 16 || n > maxChartSide {
		return 0, fmt.Errorf("%s must be between 16 and %d", name, maxChartSide)
	}
	return n, nil
}

// requestLogger writes one slog line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

// writeJSONStatus encodes before writing the header so an encoding
// failure is reported as a 500 rather than a truncated body.
func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Error("encode response", "error", err)
		writeError(w, http.StatusInternalServerError, "response encoding failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
