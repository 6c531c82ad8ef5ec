package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-governance/pkg/audit"
	"github.com/ekaya-inc/ekaya-governance/pkg/auth"
	"github.com/ekaya-inc/ekaya-governance/pkg/config"
	"github.com/ekaya-inc/ekaya-governance/pkg/database"
	"github.com/ekaya-inc/ekaya-governance/pkg/handlers"
	"github.com/ekaya-inc/ekaya-governance/pkg/locks"
	"github.com/ekaya-inc/ekaya-governance/pkg/logging"
	"github.com/ekaya-inc/ekaya-governance/pkg/mapper"
	"github.com/ekaya-inc/ekaya-governance/pkg/mcp"
	mcpauth "github.com/ekaya-inc/ekaya-governance/pkg/mcp/auth"
	"github.com/ekaya-inc/ekaya-governance/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-governance/pkg/metrics"
	"github.com/ekaya-inc/ekaya-governance/pkg/middleware"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
	"github.com/ekaya-inc/ekaya-governance/pkg/repositories"
	"github.com/ekaya-inc/ekaya-governance/pkg/retry"
	"github.com/ekaya-inc/ekaya-governance/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.Strings("servers", cfg.Governance.ServerNames),
		zap.String("backend", cfg.Governance.Backend),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("redis", cfg.Redis.Host))

	ctx := context.Background()

	schema, err := models.LoadSchema()
	if err != nil {
		return fmt.Errorf("load type schema: %w", err)
	}
	if err := mapper.ValidateSchema(schema); err != nil {
		return fmt.Errorf("type schema does not cover the governance mapping: %w", err)
	}

	var (
		db         *database.DB
		sharedRepo repositories.MetadataRepository
	)
	if cfg.Governance.Backend == config.BackendPostgres {
		logger.Info("Connecting to metadata repository",
			zap.String("url", logging.SanitizeConnectionString(cfg.Database.URL())))
		err := retry.Do(ctx, retry.DefaultConfig(), func() error {
			var connErr error
			db, connErr = database.NewConnection(ctx, &database.Config{
				URL:            cfg.Database.URL(),
				MaxConnections: cfg.Database.MaxConnections,
				MinConnections: cfg.Database.MinConnections,
			})
			return connErr
		})
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		if err := database.RunMigrations(db.SQLDB(), cfg.Database.MigrationsPath, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		sharedRepo = repositories.NewMetadataRepository()
	}

	var locker locks.Locker = locks.NewLocalLocker()
	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		locker = locks.NewRedisLocker(redisClient, cfg.Governance.LockTTL, retry.LockConfig(), logger)
		logger.Info("Using Redis link locks", zap.String("addr", cfg.Redis.Addr()))
	}

	callMetrics := metrics.New(prometheus.DefaultRegisterer)
	deps := services.Dependencies{
		Schema:      schema,
		Locker:      locker,
		Auditor:     audit.NewCallAuditor(logger, callMetrics),
		Metrics:     callMetrics,
		MaxPageSize: cfg.Governance.MaxPageSize,
		Logger:      logger,
	}

	instances := make([]*services.ServiceInstance, 0, len(cfg.Governance.ServerNames))
	for _, name := range cfg.Governance.ServerNames {
		deps.Repository = sharedRepo
		if deps.Repository == nil {
			deps.Repository = repositories.NewMemoryMetadataRepository(name)
		}
		inst, err := services.NewServiceInstance(name, deps)
		if err != nil {
			return err
		}
		instances = append(instances, inst)
	}
	registry, err := services.NewInstanceRegistry(instances...)
	if err != nil {
		return err
	}
	callMetrics.SetServersServed(len(instances))

	jwksClient, err := auth.NewJWKSClient(ctx, &auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		return fmt.Errorf("create JWKS client: %w", err)
	}
	defer jwksClient.Close()
	authService := auth.NewAuthService(jwksClient, logger)

	mcpServer := mcp.NewServer(mcp.ServerName, cfg.Version, logger,
		server.WithHooks(mcp.NewToolAuditor(logger, callMetrics).Hooks()))
	tools.RegisterHealthTool(mcpServer.MCP(), cfg.Version, registry)
	tools.RegisterGovernanceTools(mcpServer.MCP(), &tools.GovernanceToolDeps{
		Registry: registry,
		Scopes:   database.NewTenantScopeProvider(db),
		Logger:   logger,
	})

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, registry, prometheus.DefaultGatherer, logger).RegisterRoutes(mux)
	handlers.NewGovernanceHandler(registry, logger).RegisterRoutes(mux,
		auth.NewMiddleware(authService, logger),
		database.WithTenantContext(db, logger))
	handlers.NewMCPHandler(mcpServer, registry, logger).RegisterRoutes(mux, mcpauth.NewMiddleware(authService, logger))

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-governance", zap.String("addr", srv.Addr), zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return err
	case sig := <-quit:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
