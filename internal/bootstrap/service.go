package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/corebooks/erp-core/internal/audit"
	"github.com/corebooks/erp-core/internal/domain"
	"github.com/corebooks/erp-core/internal/eventbus"
	"github.com/corebooks/erp-core/internal/facade"
	"github.com/corebooks/erp-core/internal/mauth"
	"github.com/corebooks/erp-core/internal/mdb"
	"github.com/corebooks/erp-core/internal/repository"
	"github.com/corebooks/erp-core/pkg/mcasdoor"
	"github.com/corebooks/erp-core/pkg/mlog"
	"github.com/corebooks/erp-core/pkg/mmetrics"
)

// ledgerEventTypes lists every event type internal/ledger ever
// publishes, so a RabbitMQ relay can be registered for each rather
// than relying on wildcard subscription the Bus does not support.
var ledgerEventTypes = []string{
	"gl_account.created",
	"gl_account.updated",
	"gl_account.status_changed",
	"gl_account.deleted",
	"journal_entry.created",
	"journal_entry.posted",
	"journal_entry.deleted",
}

// Service is the application glue: every component the composition
// root owns, plus the metrics HTTP server exposing them, mirroring the
// shape of teacher's bootstrap.Service (Server embedded next to a
// Logger) generalized to this core's facade-centric design.
type Service struct {
	Facade *facade.Facade
	Pool   *mdb.ConnectionPool
	Logger mlog.Logger

	metricsServer *http.Server
}

// NewService wires every component named in SPEC_FULL.md section 2
// against cfg and returns a Service ready to Run. The database pool is
// dialed via Initialise; a dial failure is fatal, matching the
// teacher's own fail-fast startup behavior.
func NewService(ctx context.Context, cfg *Config, log mlog.Logger) (*Service, error) {
	if log == nil {
		var err error

		log, err = mlog.NewZapLogger(cfg.EnvName == "production")
		if err != nil {
			return nil, fmt.Errorf("bootstrap: building logger: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	metrics := mmetrics.NewRegistry(registry)

	pool := mdb.New(log, metrics)
	if err := pool.Initialise(ctx, mdb.Config{
		DSN:                      cfg.DBDSN,
		MaxConnections:           cfg.DBMaxConnections,
		ConnectionTimeoutSeconds: cfg.DBConnectionTimeoutSeconds,
	}); err != nil {
		return nil, fmt.Errorf("bootstrap: initialising connection pool: %w", err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddress != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
	}

	roles := repository.New[*domain.Role](pool, "roles", func() *domain.Role { return &domain.Role{} }, log)
	perms := repository.New[*domain.Permission](pool, "permissions", func() *domain.Permission { return &domain.Permission{} }, log)
	links := repository.New[*domain.RolePermission](pool, "role_permissions", func() *domain.RolePermission { return &domain.RolePermission{} }, log)

	auth := mauth.New(roles, perms, links, redisClient, log, metrics)
	recorder := audit.New(pool, log)
	bus := eventbus.New(log)

	if cfg.RabbitMQDSN != "" {
		relay, err := eventbus.DialRabbitMQRelay(cfg.RabbitMQDSN, cfg.RabbitMQExchange, log)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: dialing rabbitmq relay: %w", err)
		}

		for _, eventType := range ledgerEventTypes {
			bus.Subscribe(eventType, relay.Handler())
		}
	}

	var casdoorConn *mcasdoor.CasdoorConnection
	if cfg.CasdoorEndpoint != "" {
		casdoorConn = &mcasdoor.CasdoorConnection{
			Logger:           log,
			Endpoint:         cfg.CasdoorEndpoint,
			ClientID:         cfg.CasdoorClientID,
			ClientSecret:     cfg.CasdoorClientSecret,
			OrganizationName: cfg.CasdoorOrganizationName,
			ApplicationName:  cfg.CasdoorApplicationName,
		}

		if err := casdoorConn.Connect(); err != nil {
			return nil, fmt.Errorf("bootstrap: connecting to casdoor: %w", err)
		}
	}

	f := facade.New(facade.Deps{
		Auth:     auth,
		AuditLog: recorder,
		Events:   bus,
		Pool:     pool,
		Casdoor:  casdoorConn,
		Log:      log,
		Metrics:  metrics,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &Service{
		Facade: f,
		Pool:   pool,
		Logger: log,
		metricsServer: &http.Server{
			Addr:    cfg.MetricsAddress,
			Handler: mux,
		},
	}, nil
}

// Run starts the metrics/health server and blocks until ctx is
// cancelled, then drains the connection pool and shuts the server down
// with a bounded grace period.
func (s *Service) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.metricsServer.Shutdown(shutdownCtx); err != nil {
		s.Logger.Errorf("bootstrap: metrics server shutdown: %v", err)
	}

	s.Pool.Shutdown()

	return nil
}
