package httpserver

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/relay402/server/internal/config"
	"github.com/relay402/server/internal/logger"
	"github.com/relay402/server/internal/metrics"
	"github.com/relay402/server/internal/proxy"
)

var serverStartTime = time.Now()

// Server wires the proxy handler, middleware, and operational endpoints.
type Server struct {
	handlers
	httpServer *http.Server
}

type handlers struct {
	cfg     *config.Config
	proxy   *proxy.Handler
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New builds the HTTP server with the configured router.
func New(cfg *config.Config, proxyHandler *proxy.Handler, metricsCollector *metrics.Metrics, registry *prometheus.Registry, appLogger zerolog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		handlers: handlers{
			cfg:     cfg,
			proxy:   proxyHandler,
			metrics: metricsCollector,
			logger:  appLogger,
		},
		httpServer: &http.Server{
			Addr:         cfg.Server.Address,
			ReadTimeout:  cfg.Server.ReadTimeout.Duration,
			WriteTimeout: cfg.Server.WriteTimeout.Duration,
			IdleTimeout:  cfg.Server.IdleTimeout.Duration,
		},
	}

	ConfigureRouter(router, cfg, proxyHandler, registry, appLogger)
	s.httpServer.Handler = hostDispatch(appHost(cfg.Server.AppBaseURL), proxyHandler, router)

	return s
}

// ConfigureRouter attaches relay routes to an existing router.
func ConfigureRouter(router chi.Router, cfg *config.Config, proxyHandler *proxy.Handler, registry *prometheus.Registry, appLogger zerolog.Logger) {
	if router == nil {
		return
	}

	handler := handlers{
		cfg:    cfg,
		proxy:  proxyHandler,
		logger: appLogger,
	}

	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{"X-Payment-Response", "Payment-Response", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
			AllowCredentials: false,
			MaxAge:           300,
		}).Handler)
	}

	router.Use(securityHeadersMiddleware)

	// Logging middleware runs before RequestID so the request-scoped logger
	// carries the generated id through the context.
	router.Use(logger.Middleware(appLogger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	// Global per-IP guard in front of everything. Endpoint-level limits are
	// enforced inside the proxy pipeline.
	if cfg.RateLimit.GlobalEnabled && cfg.RateLimit.GlobalLimit > 0 {
		router.Use(httprate.LimitByIP(cfg.RateLimit.GlobalLimit, cfg.RateLimit.GlobalWindow.Duration))
	}

	// Lightweight operational endpoints with a short timeout.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get("/relay-health", handler.health)
		r.With(adminMetricsAuth(cfg.Server.AdminMetricsAPIKey)).Handle("/metrics", metricsHandler(registry))
	})

	// Proxy routes. The upstream timeout bounds the slow leg; the router
	// timeout only needs to cover it plus the payment round trips.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(90 * time.Second))
		r.Handle("/{tenantSlug}/{endpointSlug}", proxyHandler)
		r.Handle("/{tenantSlug}/{endpointSlug}/*", proxyHandler)
	})
}

// hostDispatch sends requests that arrive on a custom domain to the CNAME
// resolver instead of the path router. Health stays reachable on any host so
// load balancer checks keep working behind unmatched Host headers.
func hostDispatch(appHost string, proxyHandler *proxy.Handler, router http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/relay-health" {
			router.ServeHTTP(w, r)
			return
		}
		host := stripPort(r.Host)
		if appHost != "" && host != "" && !strings.EqualFold(host, appHost) {
			proxyHandler.ServeCNAME(w, r)
			return
		}
		router.ServeHTTP(w, r)
	})
}

func appHost(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return stripPort(u.Host)
}

func stripPort(host string) string {
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[i:], "]") {
		return host[:i]
	}
	return host
}

func metricsHandler(registry *prometheus.Registry) http.Handler {
	if registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
