package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"arbor/internal/auth"
	"arbor/internal/config"
	"arbor/internal/handler"
	"arbor/internal/layout"
	"arbor/internal/middleware"
	"arbor/internal/ratelimit"
	"arbor/internal/repository/postgres"
	"arbor/internal/service"
	"arbor/internal/service/llm/conversation"
	"arbor/internal/service/llm/providers/openai"
	"arbor/internal/service/llm/streaming"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	var logOut io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, cfg.LogMaxFiles)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	jwtVerifier, err := auth.NewJWTVerifier(cfg.JWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected",
		"max_conns", 25,
		"min_conns", 5,
	)

	// Repositories
	tables := postgres.NewTableNames(cfg.TablePrefix)
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	nodeRepo := postgres.NewNodeRepository(repoConfig)
	convRepo := postgres.NewConversationRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool)

	// Layout engine with embedded parameters
	layoutParams, err := layout.LoadParams()
	if err != nil {
		log.Fatalf("Failed to load layout parameters: %v", err)
	}
	layoutEngine := layout.NewEngine(layoutParams)

	// Completion provider and context assembly
	provider := openai.NewProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model, logger)
	builder := conversation.NewContextBuilder("", logger)

	// Services
	conversationService := service.NewConversationService(convRepo, nodeRepo, logger)
	nodeService := service.NewNodeService(nodeRepo, convRepo, txManager, layoutEngine, logger)
	importService := service.NewImportService(nodeRepo, convRepo, txManager, logger)
	exportService := service.NewExportService(nodeRepo, convRepo, logger)
	streamingService := streaming.NewService(nodeRepo, convRepo, builder, provider, streaming.Config{
		StreamTimeout:   cfg.StreamTimeout,
		TokenBudget:     cfg.TokenBudget,
		KeepRecentPairs: cfg.KeepRecentPairs,
	}, logger)

	// Completion rate limiter, one instance shared across requests
	limiter := ratelimit.NewLimiter(cfg.RateLimit, cfg.RateLimitWindow)

	// Handlers
	conversationHandler := handler.NewConversationHandler(conversationService, logger)
	nodeHandler := handler.NewNodeHandler(nodeService, logger)
	treeHandler := handler.NewTreeHandler(nodeService, logger)
	importExportHandler := handler.NewImportExportHandler(importService, exportService, logger)
	streamHandler := handler.NewStreamHandler(streamingService, logger)

	logger.Info("services initialized")

	// HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", handler.HealthCheck)

	// Conversation routes
	mux.HandleFunc("POST /api/conversations", conversationHandler.Create)
	mux.HandleFunc("GET /api/conversations", conversationHandler.List)
	mux.HandleFunc("GET /api/conversations/{id}", conversationHandler.Get)
	mux.HandleFunc("PATCH /api/conversations/{id}", conversationHandler.Update)
	mux.HandleFunc("DELETE /api/conversations/{id}", conversationHandler.Delete)
	mux.HandleFunc("PUT /api/conversations/{id}/active-node", conversationHandler.SetActiveNode)

	// Node routes
	mux.HandleFunc("POST /api/conversations/{id}/nodes", nodeHandler.CreateMessage)
	mux.HandleFunc("PATCH /api/nodes/{id}", nodeHandler.EditNode)
	mux.HandleFunc("DELETE /api/nodes/{id}", nodeHandler.DeleteSubtree)
	mux.HandleFunc("GET /api/nodes/{id}/path", nodeHandler.GetPath)
	mux.HandleFunc("GET /api/nodes/{id}/siblings", nodeHandler.GetSiblings)
	mux.HandleFunc("GET /api/conversations/{id}/switch", nodeHandler.GetSwitchSteps)

	// Tree views
	mux.HandleFunc("GET /api/conversations/{id}/turns", treeHandler.GetTurns)
	mux.HandleFunc("GET /api/conversations/{id}/layout", treeHandler.GetLayout)
	mux.HandleFunc("GET /api/conversations/{id}/consistency", treeHandler.CheckConsistency)

	// Import and export
	mux.HandleFunc("POST /api/import", importExportHandler.Import)
	mux.HandleFunc("GET /api/conversations/{id}/export", importExportHandler.Export)

	// Streaming routes; generation is the expensive path, so it alone
	// sits behind the rate limiter
	rateLimited := middleware.RateLimit(limiter)
	mux.Handle("POST /api/conversations/{id}/nodes/{nodeId}/reply",
		rateLimited(http.HandlerFunc(streamHandler.GenerateReply)))
	mux.HandleFunc("GET /api/conversations/{id}/nodes/{nodeId}/context", streamHandler.PreviewContext)
	mux.HandleFunc("POST /api/nodes/{id}/interrupt", streamHandler.Interrupt)

	// Debug routes (only in dev environment)
	if cfg.Environment == "dev" {
		debugHandler := handler.NewDebugHandler(nodeService, logger)
		mux.HandleFunc("GET /debug/api/conversations/{id}/tree", debugHandler.GetRawTree)
		logger.Warn("DEBUG MODE: debug endpoints enabled (never use in production)")
	}

	// Middleware chain: CORS → Recovery → Auth → Routes
	var root http.Handler = mux
	root = middleware.AuthMiddleware(jwtVerifier)(root)
	root = middleware.Recovery(logger)(root)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
