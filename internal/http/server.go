package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"nlsbundle/internal/core"
	"nlsbundle/internal/flood"
	"nlsbundle/internal/resolver"
)

const serviceName = "nlsbundle"

// Localizer resolves module files into localize functions and messages.
type Localizer interface {
	LoadMessageBundle(file string) (resolver.LocalizeFunc, error)
	ResolveModule(file string) (resolver.Module, error)
}

type Server struct {
	config  *core.ServerConfig
	logger  *zap.Logger
	server  *http.Server
	metrics *Metrics
	limiter *flood.Floodgate
}

type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewServer creates the HTTP service. Metrics are registered on registry and served from it.
func NewServer(config *core.ServerConfig, localizer Localizer, registry *prometheus.Registry, logger *zap.Logger) *Server {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	metrics := newMetrics(registry)

	var limiter *flood.Floodgate
	if config.RateLimitPerMinute > 0 {
		limiter = flood.New(config.RateLimitPerMinute)
	}
	mux := setupRoutes(logger, localizer, registry, metrics, limiter, config.FileRoot)

	return &Server{
		config:  config,
		logger:  logger,
		server:  createHTTPServer(config, mux),
		metrics: metrics,
		limiter: limiter,
	}
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nls_http_requests_total",
				Help: "Total number of HTTP API requests",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nls_http_request_duration_seconds",
				Help:    "Time spent serving HTTP API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
	}

	if reg != nil {
		reg.MustRegister(metrics.RequestsTotal, metrics.RequestDuration)
	}
	return metrics
}

func createHTTPServer(config *core.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

func setupRoutes(
	logger *zap.Logger,
	localizer Localizer,
	gatherer prometheus.Gatherer,
	metrics *Metrics,
	limiter *flood.Floodgate,
	root string,
) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", statusHandler(logger, `{"status":"ok","service":"`+serviceName+`"}`))
	mux.HandleFunc("/readyz", statusHandler(logger, `{"status":"ready","service":"`+serviceName+`"}`))

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	localizeRoute := localizeHandler(logger, localizer, root)
	bundleRoute := bundleHandler(logger, localizer, root)
	mux.HandleFunc("/v1/localize", instrument(metrics, "localize", limit(logger, limiter, "localize", localizeRoute)))
	mux.HandleFunc("/v1/bundle", instrument(metrics, "bundle", limit(logger, limiter, "bundle", bundleRoute)))
	mux.HandleFunc("/", homeHandler(logger))

	return mux
}

func statusHandler(logger *zap.Logger, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(body)); err != nil {
			logger.Debug("Failed to write status response", zap.Error(err))
		}
	}
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func instrument(metrics *Metrics, endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, req)

		if metrics != nil {
			metrics.RequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", rec.status)).Inc()
			metrics.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
	}
}

// limit rejects requests of clients over the per-minute budget. A nil limiter admits everything.
func limit(logger *zap.Logger, limiter *flood.Floodgate, endpoint string, next http.HandlerFunc) http.HandlerFunc {
	if limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, req *http.Request) {
		client := clientAddress(req)
		if ok, retryAfter := limiter.Allow(endpoint, client); !ok {
			logger.Debug("Rate limit exceeded",
				zap.String("endpoint", endpoint),
				zap.String("client", client),
				zap.Duration("retry_after", retryAfter))
			w.Header().Set("Retry-After", retryAfterSeconds(retryAfter))
			writeJSON(w, logger, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		next(w, req)
	}
}

// retryAfterSeconds renders d as delay-seconds, rounded up and at least one.
func retryAfterSeconds(d time.Duration) string {
	seconds := int64(math.Ceil(d.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.FormatInt(seconds, 10)
}

var errOutsideRoot = errors.New("file is outside of the served root")

// scopeFile resolves file against root. Relative files are joined to root; absolute files
// must lie inside it. An empty root serves every path.
func scopeFile(root, file string) (string, error) {
	if root == "" {
		return file, nil
	}

	root = filepath.Clean(root)
	if !filepath.IsAbs(file) {
		file = filepath.Join(root, file)
	}
	file = filepath.Clean(file)

	rel, err := filepath.Rel(root, file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errOutsideRoot
	}
	return file, nil
}

func clientAddress(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

type localizeResponse struct {
	Message string `json:"message"`
}

type bundleResponse struct {
	Module   string   `json:"module"`
	Messages []string `json:"messages,omitempty"`
	Error    string   `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func localizeHandler(logger *zap.Logger, localizer Localizer, root string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			writeJSON(w, logger, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}

		query := req.URL.Query()
		file := query.Get("file")
		if file == "" || !query.Has("key") {
			writeJSON(w, logger, http.StatusBadRequest, errorResponse{Error: "file and key are required"})
			return
		}
		file, err := scopeFile(root, file)
		if err != nil {
			writeJSON(w, logger, http.StatusForbidden, errorResponse{Error: err.Error()})
			return
		}

		localize, err := localizer.LoadMessageBundle(file)
		if err != nil {
			logger.Error("Failed to load message bundle", zap.String("file", file), zap.Error(err))
			writeJSON(w, logger, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}

		rawArgs := query["arg"]
		args := make([]any, len(rawArgs))
		for i, arg := range rawArgs {
			args[i] = arg
		}

		message := localize(resolver.ParseKey(query.Get("key")), query.Get("message"), args...)
		writeJSON(w, logger, http.StatusOK, localizeResponse{Message: message})
	}
}

func bundleHandler(logger *zap.Logger, localizer Localizer, root string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			writeJSON(w, logger, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}

		file := req.URL.Query().Get("file")
		if file == "" {
			writeJSON(w, logger, http.StatusBadRequest, errorResponse{Error: "file is required"})
			return
		}
		file, err := scopeFile(root, file)
		if err != nil {
			writeJSON(w, logger, http.StatusForbidden, errorResponse{Error: err.Error()})
			return
		}

		module, err := localizer.ResolveModule(file)
		switch {
		case err != nil:
			logger.Error("Failed to resolve module", zap.String("file", file), zap.Error(err))
			writeJSON(w, logger, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		case module.Fallback != "":
			writeJSON(w, logger, http.StatusNotFound, bundleResponse{Module: module.Name, Error: module.Fallback})
		default:
			writeJSON(w, logger, http.StatusOK, bundleResponse{Module: module.Name, Messages: module.Messages})
		}
	}
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to write JSON response", zap.Error(err))
	}
}

func homeHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>nlsbundle</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .header { color: #333; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #0066cc; }
        .endpoint a:hover { text-decoration: underline; }
    </style>
</head>
<body>
    <h1 class="header">nlsbundle</h1>
    <p>Message bundle resolution service</p>

    <h2>Endpoints</h2>
    <div class="endpoint"><a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint"><a href="/healthz">Health</a> - Health check</div>
    <div class="endpoint"><a href="/readyz">Ready</a> - Readiness check</div>
    <div class="endpoint">/v1/localize?file=&amp;key=&amp;message=&amp;arg= - Localize one message</div>
    <div class="endpoint">/v1/bundle?file= - Resolved messages of a module</div>
</body>
</html>`)); err != nil {
			logger.Debug("Failed to write home page", zap.Error(err))
		}
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		if s.limiter != nil {
			s.limiter.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

func (s *Server) GetMetrics() *Metrics {
	return s.metrics
}
