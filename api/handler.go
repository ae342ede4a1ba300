package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"top-pick/loader"
	"top-pick/models"
	"top-pick/search"
	"top-pick/widget"
)

type Handler struct {
	Widget *widget.Widget
	Engine search.Engine
	// Source backs /data/holdings.json, the default data URL of the script.
	Source    loader.Source
	StaticDir string
	Log       logrus.FieldLogger
}

func NewHandler(w *widget.Widget, engine search.Engine, source loader.Source, log logrus.FieldLogger) *Handler {
	return &Handler{Widget: w, Engine: engine, Source: source, Log: log}
}

// Routes builds the router with all endpoints mounted.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/widget.js", h.Script)
	r.Get("/widget", h.Fragment)
	r.Get("/data/holdings.json", h.Holdings)
	r.Get("/api/top-pick", h.TopPick)
	r.Get("/api/search", h.Search)
	r.Get("/api/holding", h.GetHolding)

	if h.StaticDir != "" {
		// Serve static files with no-cache headers so the demo page always
		// picks up the current script.
		fs := http.FileServer(http.Dir(h.StaticDir))
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			noCache(w)
			fs.ServeHTTP(w, r)
		})
	}
	return r
}

func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		h.Log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

// Script serves the embeddable browser script with this instance's
// configuration baked in.
func (h *Handler) Script(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.Widget.Script(&buf, requestURL(r)); err != nil {
		h.Log.WithError(err).Error("rendering widget script")
		http.Error(w, "Unable to render widget", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	noCache(w)
	_, _ = buf.WriteTo(w)
}

// requestURL rebuilds the absolute URL the client used.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + r.Host + r.URL.Path
}

// Fragment serves the server-rendered sidebar.
func (h *Handler) Fragment(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.Widget.Render(&buf); err != nil {
		h.Log.WithError(err).Error("rendering widget fragment")
		http.Error(w, "Unable to render widget", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// Holdings re-serves the configured data source as a JSON array.
func (h *Handler) Holdings(w http.ResponseWriter, r *http.Request) {
	if h.Source == nil {
		http.NotFound(w, r)
		return
	}
	candidates, err := h.Source.Fetch(r.Context())
	if err != nil {
		h.Log.WithError(err).WithField("category", widget.Category(err)).Warn("serving holdings")
		http.Error(w, "Holdings unavailable", http.StatusBadGateway)
		return
	}
	if candidates == nil {
		candidates = []models.Candidate{}
	}
	noCache(w)
	writeJSON(w, http.StatusOK, candidates)
}

// TopPick returns the current snapshot. Until a display exists, or while
// the last refresh failed, it answers 503 with the same body.
func (h *Handler) TopPick(w http.ResponseWriter, r *http.Request) {
	snap := h.Widget.Snapshot()
	status := http.StatusOK
	if !snap.HasDisplay || snap.Fallback {
		status = http.StatusServiceUnavailable
		if !snap.Loaded() {
			snap.Message = "Top pick not loaded yet."
		}
	}
	writeJSON(w, status, snap)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "Missing query parameter 'q'", http.StatusBadRequest)
		return
	}

	results := h.Engine.Search(query)
	if results == nil {
		results = []models.Candidate{}
	}
	writeJSON(w, http.StatusOK, results)
}

// GetHolding looks a single record up by ticker, with or without its
// exchange suffix.
func (h *Handler) GetHolding(w http.ResponseWriter, r *http.Request) {
	ticker := r.URL.Query().Get("ticker")
	if ticker == "" {
		http.Error(w, "Missing ticker parameter", http.StatusBadRequest)
		return
	}

	c := h.Engine.GetByTicker(ticker)
	if c == nil {
		http.Error(w, "Holding not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
