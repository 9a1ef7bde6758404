package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/praetor-io/praetor/internal/app"
	"github.com/praetor-io/praetor/internal/assign"
	"github.com/praetor-io/praetor/internal/audit"
	"github.com/praetor-io/praetor/internal/authz"
	"github.com/praetor-io/praetor/internal/grants"
	"github.com/praetor-io/praetor/internal/httpapi"
	"github.com/praetor-io/praetor/internal/observability"
	"github.com/praetor-io/praetor/internal/platform/cache"
	"github.com/praetor-io/praetor/internal/platform/db"
	"github.com/praetor-io/praetor/internal/roles"
	"github.com/praetor-io/praetor/internal/tenantscope"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var decisionCache *authz.DecisionCache
	if cfg.DecisionCacheTTL > 0 {
		redisClient, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Error("connect redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		decisionCache = authz.NewDecisionCache(redisClient, cfg.DecisionCacheTTL, logger)
	}

	emitter := audit.NewEmitter(pool)
	scope := tenantscope.New(pool, emitter, logger, cfg.ScopeTimeout)
	metrics := observability.NewMetrics()

	roleRepo := roles.NewRepository()
	roleResolver := roles.NewResolver(roleRepo, logger)
	grantRepo := grants.NewRepository()
	grantResolver := grants.NewResolver(grantRepo, logger)
	aggregator := authz.NewAggregator(roleResolver, grantResolver, nil, logger)

	checker := authz.NewChecker(authz.CheckerParams{
		Runner:   scope,
		Source:   aggregator,
		Registry: authz.NewEvaluatorRegistry(),
		Audit:    emitter,
		Logger:   logger,
		Metrics:  metrics,
		Cache:    decisionCache,
	})

	manager := assign.NewManager(assign.ManagerParams{
		Runner:  scope,
		Store:   roleRepo,
		Decider: checker,
		Audit:   emitter,
		Cache:   decisionCache,
		Logger:  logger,
	})

	grantService := grants.NewService(grants.ServiceParams{
		Runner:  scope,
		Store:   grantRepo,
		Decider: checker,
		Audit:   emitter,
		Cache:   decisionCache,
		Logger:  logger,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		AuthzHandler: httpapi.NewHandler(checker, manager, grantService, logger),
		Metrics:      metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("praetord listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
}
