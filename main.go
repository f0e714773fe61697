package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"go.uber.org/zap"

	"github.com/synapse-dte/decision-engine/pkg/auth"
	"github.com/synapse-dte/decision-engine/pkg/config"
	"github.com/synapse-dte/decision-engine/pkg/database"
	"github.com/synapse-dte/decision-engine/pkg/handlers"
	"github.com/synapse-dte/decision-engine/pkg/llm"
	"github.com/synapse-dte/decision-engine/pkg/logging"
	"github.com/synapse-dte/decision-engine/pkg/middleware"
	"github.com/synapse-dte/decision-engine/pkg/repositories"
	"github.com/synapse-dte/decision-engine/pkg/retry"
	"github.com/synapse-dte/decision-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

// engine bundles the wired service surface consumed by the host
// application.
type engine struct {
	Versioning  *services.VersioningService
	Phases      *services.PhaseService
	Recommender llm.Recommender
	Tokens      auth.TokenValidator
}

func main() {
	cfg, err := config.Load("config.yaml", Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("Starting decision-engine",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The database may still be coming up when we start; retry with backoff
	// before giving up.
	db, err := retry.DoWithResult(ctx, nil, func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			URL:            cfg.Database.ConnectionString(),
			MaxConnections: cfg.Database.MaxConnections,
		})
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	eng, err := buildEngine(ctx, cfg, logger, db)
	if err != nil {
		logger.Fatal("Failed to wire services", zap.Error(err))
	}
	logger.Info("Engine ready",
		zap.Bool("recommendations", eng.Recommender != nil),
		zap.String("rules_bootstrap", cfg.Rules.BootstrapPath))

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server shutdown failed", zap.Error(err))
	}
}

func buildEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger, db *database.DB) (*engine, error) {
	tokens, err := auth.NewJWKSClient(ctx, &auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSURL:            cfg.Auth.JWKSURL,
	})
	if err != nil {
		return nil, err
	}

	recommender, err := llm.NewRecommender(cfg.LLM, logger)
	if errors.Is(err, llm.ErrNoProvider) {
		recommender = nil
	} else if err != nil {
		return nil, err
	}

	ruleRepo := repositories.NewApprovalRuleRepository()
	if cfg.Rules.BootstrapPath != "" {
		if err := bootstrapRules(ctx, db, logger, cfg.Rules.BootstrapPath, ruleRepo); err != nil {
			return nil, err
		}
	}

	phaseRepo := repositories.NewPhaseInstanceRepository()
	versioning := services.NewVersioningService(services.VersioningServiceDeps{
		Logger:         logger,
		RunInTx:        database.InTx,
		Authorizer:     auth.NewRoleAuthorizer(),
		PhaseInstances: phaseRepo,
		Versions:       repositories.NewVersionRepository(),
		Items:          repositories.NewDecisionItemRepository(),
		Rules:          ruleRepo,
		Assignments:    repositories.NewAssignmentRepository(),
	})

	return &engine{
		Versioning:  versioning,
		Phases:      services.NewPhaseService(logger, database.InTx, phaseRepo),
		Recommender: recommender,
		Tokens:      tokens,
	}, nil
}

func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return database.RunMigrations(sqlDB, cfg.MigrationsPath, logger)
}

func bootstrapRules(ctx context.Context, db *database.DB, logger *zap.Logger, path string, repo repositories.ApprovalRuleRepository) error {
	scopedCtx, cleanup, err := db.WithScope(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	return services.BootstrapRules(scopedCtx, logger, path, repo)
}
