// Package relay402 assembles the relay components for standalone serving or
// embedding into an existing chi router.
package relay402

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/relay402/server/internal/audit"
	"github.com/relay402/server/internal/circuitbreaker"
	"github.com/relay402/server/internal/config"
	"github.com/relay402/server/internal/dbpool"
	"github.com/relay402/server/internal/httpserver"
	"github.com/relay402/server/internal/httputil"
	"github.com/relay402/server/internal/lifecycle"
	"github.com/relay402/server/internal/logger"
	"github.com/relay402/server/internal/metrics"
	"github.com/relay402/server/internal/paywall"
	"github.com/relay402/server/internal/proxy"
	"github.com/relay402/server/internal/ratelimit"
	"github.com/relay402/server/internal/routes"
	"github.com/relay402/server/internal/secrets"
	"github.com/relay402/server/internal/storage"
	"github.com/relay402/server/pkg/x402"
)

// App wires the relay components for reuse or standalone serving.
type App struct {
	Config      *config.Config
	Store       storage.Store
	Facilitator x402.Facilitator
	Proxy       *proxy.Handler
	Registry    *prometheus.Registry

	server          *httpserver.Server
	resourceManager *lifecycle.Manager
	metrics         *metrics.Metrics
}

// Option configures App construction.
type Option func(*options)

type options struct {
	store       storage.Store
	facilitator x402.Facilitator
	registry    *prometheus.Registry
}

// WithStore sets a custom storage backend.
func WithStore(store storage.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithFacilitator injects a custom payment facilitator.
func WithFacilitator(f x402.Facilitator) Option {
	return func(o *options) {
		o.facilitator = f
	}
}

// WithRegistry sets the Prometheus registry metrics are registered on.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// NewApp assembles the relay from configuration.
func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("relay402: config required")
	}

	optState := options{}
	for _, opt := range opts {
		opt(&optState)
	}

	app := &App{
		Config:          cfg,
		resourceManager: lifecycle.NewManager(),
	}

	if optState.store != nil {
		app.Store = optState.store
	} else if cfg.Storage.Backend == "postgres" {
		pool, err := dbpool.NewSharedPool(cfg.Storage.PostgresURL, cfg.Storage.PostgresPool)
		if err != nil {
			return nil, err
		}
		app.resourceManager.Register("db-pool", pool)

		store, err := storage.NewStoreWithDB(storage.StoreConfig{
			Backend:      cfg.Storage.Backend,
			PostgresURL:  cfg.Storage.PostgresURL,
			PostgresPool: cfg.Storage.PostgresPool,
		}, pool.DB())
		if err != nil {
			app.resourceManager.Close()
			return nil, err
		}
		app.Store = store
	} else {
		app.Store = storage.NewMemoryStore()
		app.resourceManager.Register("storage", app.Store)
		log.Warn().
			Msg("relay402: defaulting to in-memory store - do not use this backend in production")
	}

	registry := optState.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	app.Registry = registry
	app.metrics = metrics.New(registry)

	if optState.facilitator != nil {
		app.Facilitator = optState.facilitator
	} else {
		facilitatorOpts := []x402.FacilitatorOption{
			x402.WithHTTPClient(httputil.NewClient(cfg.Facilitator.Timeout.Duration)),
		}
		if cfg.CircuitBreaker.Enabled {
			facilitatorOpts = append(facilitatorOpts,
				x402.WithBreakers(circuitbreaker.NewManagerFromConfig(cfg.CircuitBreaker)))
		}
		app.Facilitator = x402.NewFacilitatorClient(cfg.Facilitator.URL, facilitatorOpts...)
	}

	var cipher *secrets.Cipher
	if cfg.Secrets.EncryptionKey != "" {
		var err error
		cipher, err = secrets.NewCipher(cfg.Secrets.EncryptionKey)
		if err != nil {
			app.resourceManager.Close()
			return nil, err
		}
	} else {
		log.Warn().
			Msg("relay402: no encryption key configured - secret references will not resolve")
	}

	limiter := ratelimit.New(ratelimit.WithSweepInterval(cfg.RateLimit.SweepInterval.Duration))
	renderer := paywall.NewRenderer(cfg.Paywall.DefaultTheme, cfg.Paywall.WalletConnectProjectID)

	app.Proxy = proxy.NewHandler(
		proxy.Config{
			AppBaseURL:        cfg.Server.AppBaseURL,
			ForceTestnet:      cfg.Payments.ForceTestnet,
			MaxTimeoutSeconds: cfg.Payments.MaxTimeoutSeconds,
			AllowLocalhost:    cfg.Upstream.AllowLocalhost,
			AllowOtherSchemes: cfg.Upstream.AllowOtherSchemes,
		},
		routes.NewResolver(app.Store),
		limiter,
		app.Facilitator,
		renderer,
		audit.NewWriter(app.Store),
		app.Store,
		cipher,
		app.metrics,
		httputil.NewUpstreamClient(cfg.Upstream.Timeout.Duration),
	)

	appLogger := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Service:     "relay402",
		Environment: cfg.Logging.Environment,
	})

	app.server = httpserver.New(cfg, app.Proxy, app.metrics, registry, appLogger)

	return app, nil
}

// ListenAndServe starts the relay's HTTP server.
func (a *App) ListenAndServe() error {
	return a.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (a *App) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

// Close releases resources owned by the app (store, db pool).
func (a *App) Close() error {
	return a.resourceManager.Close()
}

// RegisterRoutes attaches relay endpoints to the provided router using an
// existing App. The CNAME dispatch only applies to standalone serving;
// embedders route by path.
func RegisterRoutes(router chi.Router, app *App) {
	if router == nil || app == nil {
		return
	}

	appLogger := logger.New(logger.Config{
		Level:       app.Config.Logging.Level,
		Format:      app.Config.Logging.Format,
		Service:     "relay402-embedded",
		Environment: app.Config.Logging.Environment,
	})

	httpserver.ConfigureRouter(router, app.Config, app.Proxy, app.Registry, appLogger)
}

// NewHandler is a convenience that constructs an App and returns a handler
// with relay routes registered, plus a shutdown function.
func NewHandler(cfg *config.Config, opts ...Option) (http.Handler, func(context.Context) error, error) {
	app, err := NewApp(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	router := chi.NewRouter()
	RegisterRoutes(router, app)
	shutdown := func(context.Context) error {
		return app.Close()
	}
	return router, shutdown, nil
}

// Config is an exported alias of the internal configuration struct for embedding use.
type Config = config.Config

// LoadConfig wraps the internal loader for consumers embedding the relay.
func LoadConfig(path string) (*config.Config, error) {
	return config.Load(path)
}
