// Memento HTTP front end: TimeGate, TimeMap and ServeContent routes
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/nainya/mementod/internal/logger"
	"github.com/nainya/mementod/internal/metrics"
	"github.com/nainya/mementod/pkg/linkformat"
	"github.com/nainya/mementod/pkg/memento"
	"github.com/nainya/mementod/pkg/snapshot"
)

// RequestIDHeader carries the per-request correlation id
const RequestIDHeader = "X-Request-Id"

// HTTPConfig holds front-end settings
type HTTPConfig struct {
	Port            int
	AllowedOrigins  []string
	RateLimitPerSec float64 // 0 = no limit
	RateLimitBurst  int
}

// HTTPServer serves the Memento protocol endpoints
type HTTPServer struct {
	service *Service
	metrics *metrics.Metrics
	log     *logger.Logger
	limiter *rate.Limiter

	handler http.Handler
	server  *http.Server
}

// NewHTTPServer wires routes and middleware around service
func NewHTTPServer(service *Service, m *metrics.Metrics, log *logger.Logger, cfg HTTPConfig) *HTTPServer {
	h := &HTTPServer{
		service: service,
		metrics: m,
		log:     log,
	}
	if cfg.RateLimitPerSec > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = int(cfg.RateLimitPerSec) + 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), burst)
	}

	router := mux.NewRouter()
	// Resource identifiers are URLs; cleaning would collapse "http://"
	router.SkipClean(true)

	router.HandleFunc("/timegate/{resource:.+}", h.handleTimeGate).
		Methods(http.MethodGet, http.MethodHead).Name("timegate")
	router.HandleFunc("/timemap/{resource:.+}", h.handleTimeMap).
		Methods(http.MethodGet, http.MethodHead).Name("timemap")
	router.HandleFunc("/ServeContent", h.handleContent).
		Methods(http.MethodGet, http.MethodHead).Name("content")

	router.Use(h.requestID)
	router.Use(h.observe)
	router.Use(h.rateLimit)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept-Datetime"},
		ExposedHeaders: []string{"Link", "Memento-Datetime", "Location", "Vary", RequestIDHeader},
	})
	h.handler = c.Handler(router)

	h.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return h
}

// Handler returns the fully wrapped handler
func (h *HTTPServer) Handler() http.Handler {
	return h.handler
}

// Start serves until Shutdown is called
func (h *HTTPServer) Start() error {
	h.log.Info("Starting Memento HTTP server").
		Str("addr", h.server.Addr).
		Send()

	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("memento http server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (h *HTTPServer) Shutdown(ctx context.Context) error {
	h.log.Info("Shutting down Memento HTTP server").Send()
	return h.server.Shutdown(ctx)
}

// resourceID recovers the full resource URL, including a query string the
// client left unencoded
func resourceID(r *http.Request) string {
	id := mux.Vars(r)["resource"]
	if r.URL.RawQuery != "" {
		id += "?" + r.URL.RawQuery
	}
	return id
}

func (h *HTTPServer) handleTimeGate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Vary", "accept-datetime")

	var target *time.Time
	if raw := r.Header.Get("Accept-Datetime"); raw != "" {
		t, err := http.ParseTime(raw)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w: malformed Accept-Datetime %q", ErrBadRequest, raw))
			return
		}
		target = &t
	}

	neg, err := h.service.Negotiate(r.Context(), resourceID(r), target)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Link", neg.Links)
	w.Header().Set("Location", neg.Location)
	w.WriteHeader(http.StatusFound)
}

func (h *HTTPServer) handleTimeMap(w http.ResponseWriter, r *http.Request) {
	body, err := h.service.TimeMap(r.Context(), resourceID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", linkformat.LinkFormat)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write([]byte(body))
	}
}

func (h *HTTPServer) handleContent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	content, err := h.service.Content(r.Context(), q.Get("url"), q.Get("auid"), q.Get("version"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if content.MementoDatetime != "" {
		w.Header().Set("Memento-Datetime", content.MementoDatetime)
	}
	if content.Links != "" {
		w.Header().Set("Link", content.Links)
	}
	if ct := content.Record.ContentType; ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(content.Record.Payload)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(content.Record.Payload)
	}
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, snapshot.ErrNotFound), errors.Is(err, memento.ErrNoTimestamp):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("Request failed").
			Str("request_id", w.Header().Get(RequestIDHeader)).
			Str("path", r.URL.Path).
			Err(err).
			Send()
		http.Error(w, http.StatusText(status), status)
		return
	}
	http.Error(w, err.Error(), status)
}

// Middleware

func (h *HTTPServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *HTTPServer) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unknown"
		if cur := mux.CurrentRoute(r); cur != nil && cur.GetName() != "" {
			route = cur.GetName()
		}

		start := time.Now()
		h.metrics.HTTPRequestsInFlight.Inc()
		defer h.metrics.HTTPRequestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		h.metrics.RecordHTTPRequest(route, strconv.Itoa(rec.status), duration)
		h.log.HTTPLogger(route).LogHTTPRequest(w.Header().Get(RequestIDHeader), r.Method, r.URL.Path, rec.status, duration)
	})
}

func (h *HTTPServer) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && !h.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
