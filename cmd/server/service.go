package main

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/veriflow-id/veriflow/internal/applications"
	"github.com/veriflow-id/veriflow/internal/collaborators"
	"github.com/veriflow-id/veriflow/internal/config"
	"github.com/veriflow-id/veriflow/internal/documents"
	"github.com/veriflow-id/veriflow/internal/events"
	"github.com/veriflow-id/veriflow/internal/sessions"
	"github.com/veriflow-id/veriflow/internal/storage"
	"github.com/veriflow-id/veriflow/internal/workflow"
	"github.com/veriflow-id/veriflow/pkg/handlers"
	"github.com/veriflow-id/veriflow/pkg/middleware"
	"github.com/veriflow-id/veriflow/pkg/routes"
)

// service holds the wired application systems.
type service struct {
	cfg         *config.Config
	broadcaster *events.Broadcaster

	applications *applications.Handler
	sessions     *sessions.Handler
	documents    *documents.Handler
	workflow     *workflow.Handler
}

func buildService(
	cfg *config.Config,
	sqlDB *sql.DB,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	logger *slog.Logger,
) (*service, error) {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := workflow.NewMetrics(registry)

	blobs, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	appStore := applications.NewPostgresStore(sqlDB)
	docSystem := documents.New(sqlDB, blobs, cfg.Storage.MaxUploadSizeBytes(), logger)

	var sessionStore sessions.Store
	if redisClient != nil {
		sessionStore = sessions.NewRedisStore(redisClient, cfg.Redis.SessionTTLDuration())
	} else {
		sessionStore = sessions.NewMemoryStore()
	}

	extractor := collaborators.NewMockExtractor(logger)
	verifier := collaborators.NewVerifier(collaborators.NewPostgresRecordStore(sqlDB))
	fraud := collaborators.NewRuleChecker(logger)

	executor := workflow.NewExecutor(extractor, verifier, fraud, workflow.Timeouts{
		Extract: cfg.Workflow.ExtractTimeoutDuration(),
		Verify:  cfg.Workflow.VerifyTimeoutDuration(),
		Fraud:   cfg.Workflow.FraudTimeoutDuration(),
	}, metrics, logger)

	broadcaster := events.NewBroadcaster(cfg.Workflow.EventBufferSize, logger)
	engine := workflow.NewEngine(appStore, executor, broadcaster, metrics, logger)

	return &service{
		cfg:          cfg,
		broadcaster:  broadcaster,
		applications: applications.NewHandler(appStore, cfg.Pagination, logger),
		sessions:     sessions.NewHandler(sessionStore, logger),
		documents:    documents.NewHandler(docSystem, logger),
		workflow: workflow.NewHandler(engine, docSystem, metrics,
			cfg.Storage.MaxUploadSizeBytes(), logger),
	}, nil
}

// Close releases in-process resources. Database and Redis connections are
// closed by the caller.
func (s *service) Close() {
	s.broadcaster.Close()
}

// Routes assembles the full HTTP handler.
func (s *service) Routes(registry *prometheus.Registry) http.Handler {
	groups := []routes.Group{
		s.applications.Routes(),
		s.sessions.Routes(),
		s.workflow.Routes(),
	}
	groups = append(groups, s.documents.Routes()...)

	root := []routes.Route{
		{
			Method:  http.MethodGet,
			Pattern: "/healthz",
			Handler: func(w http.ResponseWriter, r *http.Request) {
				handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			},
		},
		{
			Method:  http.MethodGet,
			Pattern: "/metrics",
			Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP,
		},
	}

	return middleware.Chain(
		routes.Build(root, groups),
		middleware.CORS(&s.cfg.CORS),
	)
}
