package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/PrudhviKosuri/Rival-Scan/internal/agent"
	"github.com/PrudhviKosuri/Rival-Scan/internal/agentservice"
	"github.com/PrudhviKosuri/Rival-Scan/internal/background"
	"github.com/PrudhviKosuri/Rival-Scan/internal/config"
	"github.com/PrudhviKosuri/Rival-Scan/internal/contextbuilder"
	"github.com/PrudhviKosuri/Rival-Scan/internal/handlers"
	"github.com/PrudhviKosuri/Rival-Scan/internal/llm"
	"github.com/PrudhviKosuri/Rival-Scan/internal/logger"
	"github.com/PrudhviKosuri/Rival-Scan/internal/orchestrator"
	"github.com/PrudhviKosuri/Rival-Scan/internal/router"
	"github.com/PrudhviKosuri/Rival-Scan/internal/schema"
	"github.com/PrudhviKosuri/Rival-Scan/internal/storage"
)

// Server owns the HTTP engine and every service behind it.
type Server struct {
	cfg          *config.Config
	engine       *gin.Engine
	contextStore *storage.ContextStore
	managed      *storage.ManagedStore
	runner       *background.Runner
}

// disabledGenerator stands in when no Gemini credentials are configured in
// development mode. Every call fails with a configuration error instead of
// failing server startup.
type disabledGenerator struct{}

func (disabledGenerator) GenerateStructured(context.Context, llm.Request) llm.Result {
	return llm.Result{Err: "Generation failed: GOOGLE_API_KEY not configured"}
}

// New wires stores, services, and routes from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	contextStore, err := storage.NewContextStore(cfg.Storage.ContextDBPath)
	if err != nil {
		return nil, fmt.Errorf("open context store: %w", err)
	}
	managed, err := storage.NewManagedStore(cfg.Storage.ManagedDBPath)
	if err != nil {
		contextStore.Close()
		return nil, fmt.Errorf("open managed store: %w", err)
	}

	catalog, err := schema.NewCatalog()
	if err != nil {
		contextStore.Close()
		managed.Close()
		return nil, fmt.Errorf("build schema catalog: %w", err)
	}
	// Persist the catalog so stored items can be audited against the schema
	// version they were validated with.
	for _, name := range catalog.Names() {
		if err := managed.RegisterSchema(ctx, name, "1.0", catalog.Raw(name)); err != nil {
			logger.Logger.Warn().Err(err).Str("schema", name).Msg("Failed to register schema")
		}
	}

	var gen agentservice.Generator
	if cfg.Gemini.APIKey != "" {
		client, err := llm.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries)
		if err != nil {
			contextStore.Close()
			managed.Close()
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		gen = client
	} else {
		logger.Logger.Warn().Msg("GOOGLE_API_KEY not set, generation endpoints will fail until configured")
		gen = disabledGenerator{}
	}

	registry := agent.NewRegistry(cfg.Agents.BaseURLs)
	client := agent.NewClient(registry, cfg.Agents.Timeout)
	rt := router.NewRouter(registry, client)
	builder := contextbuilder.NewBuilder(contextStore)
	svc := agentservice.NewService(gen, catalog, managed)
	runner := background.NewRunner(cfg.Orchestra.BackgroundQueueSize, cfg.Orchestra.BackgroundWorkers)
	driver := orchestrator.NewDriver(builder, rt, client, contextStore, managed, svc, runner,
		cfg.Context.ConfidenceThreshold)

	h := &handlers.Handlers{
		Driver:       driver,
		Router:       rt,
		Registry:     registry,
		Client:       client,
		Builder:      builder,
		ContextStore: contextStore,
		Managed:      managed,
		AgentService: svc,
		Runner:       runner,
	}

	srv := &Server{
		cfg:          cfg,
		engine:       buildEngine(cfg, h),
		contextStore: contextStore,
		managed:      managed,
		runner:       runner,
	}
	return srv, nil
}

func buildEngine(cfg *config.Config, h *handlers.Handlers) *gin.Engine {
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.API.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: cfg.API.CORS.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	h.Register(engine)
	return engine
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	}
}

// Engine exposes the assembled handler, mainly for tests.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Run serves HTTP until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	cleanupCtx, cancelCleanup := context.WithCancel(ctx)
	defer cancelCleanup()
	if s.cfg.Cleanup.Enabled {
		go s.cleanupLoop(cleanupCtx)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Logger.Info().Str("addr", addr).Str("mode", s.cfg.Server.Mode).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error().Err(err).Msg("HTTP shutdown failed")
	}
	s.Close()
	return nil
}

func (s *Server) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Cleanup.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.contextStore.CleanupExpired(ctx); err != nil {
				logger.Logger.Warn().Err(err).Msg("Context cleanup failed")
			}
			if removed, err := s.managed.CleanupExpired(ctx); err != nil {
				logger.Logger.Warn().Err(err).Msg("Managed storage cleanup failed")
			} else if removed > 0 {
				logger.Logger.Info().Int64("removed", removed).Msg("Purged expired managed items")
			}
		}
	}
}

// Close releases background workers and database handles.
func (s *Server) Close() {
	s.runner.Stop()
	if err := s.contextStore.Close(); err != nil {
		logger.Logger.Warn().Err(err).Msg("Failed to close context store")
	}
	if err := s.managed.Close(); err != nil {
		logger.Logger.Warn().Err(err).Msg("Failed to close managed store")
	}
}
