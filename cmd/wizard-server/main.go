// cmd/wizard-server/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"lead-wizard/internal/api"
	"lead-wizard/internal/common/config"
	"lead-wizard/internal/common/database"
	"lead-wizard/internal/common/graphql"
	"lead-wizard/internal/common/logger"
	"lead-wizard/internal/common/observability"
	"lead-wizard/internal/lead/backend"
	"lead-wizard/internal/lead/metadata"
	"lead-wizard/internal/lead/plans"
	"lead-wizard/internal/lead/session"
	"lead-wizard/internal/lead/wizard"
	"lead-wizard/internal/lead/zipcode"
)

const janitorInterval = time.Minute

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting lead wizard server...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)
	if missing := cfg.Lead.MissingRoutingIDs(); len(missing) > 0 {
		zapLog.Warn("Lead routing ids missing; the primary applicant step will fail", zap.Strings("keys", missing))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, observability.TracingOptions{
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
	})
	if err != nil {
		zapLog.Fatal("tracing init failed", zap.Error(err))
	}

	// --- Redis: session snapshots and lookup caches ---
	var (
		store session.Store = session.NewMemoryStore()
		cache database.Cache
		rdb   *database.RedisClient
	)
	if cfg.Database.Redis.Enabled() {
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		store = session.NewRedisStore(rdb)
		cache = rdb
		zapLog.Info("Redis connected successfully")
	} else {
		zapLog.Info("Redis not configured, keeping sessions in memory")
	}

	// --- PostgreSQL: step audit log ---
	var opts []session.Option
	var pg *database.PostgresClient
	if cfg.Database.Postgres.Enabled() {
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		audit := session.NewPostgresAuditLog(pg)
		if err := audit.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("audit schema failed", zap.Error(err))
		}
		opts = append(opts, session.WithAuditLog(audit))
		zapLog.Info("PostgreSQL connected successfully")
	}
	opts = append(opts, session.WithObservability(obs))

	// --- Lead API collaborators ---
	gql := graphql.NewClient(cfg.GraphQL.URL, config.GetDuration(cfg.GraphQL.Timeout), log.With(map[string]interface{}{"component": "graphql"}))
	leads := backend.NewService(gql, cfg.GraphQL.Token, log)
	zips := zipcode.NewService(gql, cache, zipcode.Config{
		Token:           cfg.GraphQL.Token,
		CacheTTL:        config.GetDuration(cfg.Zipcode.CacheTTL),
		SuggestionLimit: cfg.Zipcode.SuggestionLimit,
	}, log)
	planService := plans.NewService(gql, cache, plans.Config{
		Token:    cfg.GraphQL.Token,
		Limit:    cfg.Marketplace.Limit,
		Market:   cfg.Marketplace.Market,
		CacheTTL: config.GetDuration(cfg.Marketplace.CacheTTL),
	}, log)

	manager := session.NewManager(session.Config{
		TTL:             config.GetDuration(cfg.Session.TTL),
		DefaultLanguage: cfg.Session.DefaultLanguage,
		Wizard: wizard.Config{
			Lead:         cfg.Lead,
			PollInterval: config.GetDuration(cfg.Consent.PollInterval),
		},
	}, wizard.Dependencies{
		Backend:  leads,
		Zipcodes: zips,
		Plans:    planService,
		Codec:    metadata.NewCodec(metadata.Policy{StrictMembers: cfg.Session.StrictMembers}, log),
		Logger:   log,
	}, store, log, opts...)
	go manager.RunJanitor(ctx, janitorInterval)

	router := api.NewRouter(api.RouterConfig{
		Sessions:        manager,
		Zipcodes:        zips,
		Logger:          log.With(map[string]interface{}{"component": "api"}),
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		ServiceName:     cfg.App.Name,
		DefaultLanguage: cfg.Session.DefaultLanguage,
	})
	apiServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}
	go func() {
		zapLog.Info("API server listening", zap.String("addr", apiServer.Addr))
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("API server failed", zap.Error(err))
		}
	}()

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"sessions": manager.Len(),
			"time":     time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if rdb != nil {
			if err := rdb.Ping(pingCtx); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "not ready", "redis": err.Error()})
				return
			}
		}
		if pg != nil {
			if err := pg.Ping(pingCtx); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "not ready", "postgres": err.Error()})
				return
			}
		}
		writeStatus(w, http.StatusOK, map[string]interface{}{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.MetricsPort), Handler: mux}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping sessions...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping API server", zap.Error(err))
	}
	stop()
	manager.Shutdown()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping metrics server", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zapLog.Error("Error flushing traces", zap.Error(err))
	}

	zapLog.Info("Lead wizard server stopped gracefully")
}

func writeStatus(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
