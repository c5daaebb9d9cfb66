package main

import (
	"context"
	"time"

	"github.com/cginside/hobi/internal/agent"
	"github.com/cginside/hobi/internal/assistant"
	hobiconfig "github.com/cginside/hobi/internal/config"
	"github.com/cginside/hobi/internal/directory"
	"github.com/cginside/hobi/internal/history"
	"github.com/cginside/hobi/internal/httpapi"
	"github.com/cginside/hobi/internal/knowledge"
	"github.com/cginside/hobi/internal/router"
	"github.com/cginside/hobi/internal/settings"
	"github.com/cginside/hobi/internal/tools"
	"github.com/cginside/hobi/pkg/config"
	"github.com/cginside/hobi/pkg/database"
	"github.com/cginside/hobi/pkg/llm"
	"github.com/cginside/hobi/pkg/logging"
	"github.com/cginside/hobi/pkg/monitoring"
	"github.com/cginside/hobi/pkg/search"
	"github.com/cginside/hobi/pkg/server"
	"github.com/cginside/hobi/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("hobi")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Hobi (CG Inside onboarding assistant)")

	cfg := hobiconfig.LoadConfig()

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.DatabaseURL
	db := database.MustConnect(dbConfig, logger)
	defer func() { _ = db.Close() }()

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("hobi", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("hobi", version.Version, version.GitCommit)

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
	}))

	settingsStore := settings.NewStore(db, logger)

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	runtimeSettings, err := settingsStore.Load(startupCtx)
	if err != nil {
		logger.WithError(err).Warn("Failed to load settings, using defaults")
		runtimeSettings = settings.Defaults()
	}

	embeddingClient, err := llm.NewEmbeddingClient(llm.Config{
		Provider: cfg.EmbeddingProvider,
		Model:    runtimeSettings.EmbeddingModel,
		APIKey:   cfg.EmbeddingAPIKey,
		APIURL:   cfg.EmbeddingAPIURL,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize embedding client")
	}
	dims, probeErr := llm.ProbeEmbeddingDimensions(startupCtx, embeddingClient)
	if probeErr != nil {
		logger.WithError(probeErr).Warn("Failed to probe embedding dimensions - keeping current schema")
	} else if migrated, schemaErr := knowledge.EnsureEmbeddingDimensions(startupCtx, db, dims); schemaErr != nil {
		logger.WithError(schemaErr).Warn("Failed to align embedding column dimensions")
	} else if migrated {
		logger.WithField("dimensions", dims).Info("Embedding column migrated, reindex required")
	}

	knowledgeStore := knowledge.NewStore(db)
	engine, err := knowledge.NewEngine(knowledgeStore, embeddingClient, settingsStore, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize knowledge engine")
	}

	searchProvider, err := search.NewProvider(search.Config{
		Provider: cfg.SearchProvider,
		APIKey:   cfg.SearchAPIKey,
		APIURL:   cfg.SearchAPIURL,
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize search provider - web fallback disabled")
		searchProvider = nil
	}

	employeeDirectory := directory.New(db, logger)
	historyStore := history.NewStore(db)

	keywordTool := tools.NewKeywordTool(cfg.WifiQRImagePath)
	dbQueryTool := tools.NewDBQueryTool(employeeDirectory, logger)
	ragSearchTool := tools.NewRAGSearchTool(engine, settingsStore, logger)
	webSearchTool := tools.NewWebSearchTool(searchProvider, logger)

	baseLLMConfig := llm.Config{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		APIURL:   cfg.LLMAPIURL,
	}

	agentCache := assistant.NewCache(settingsStore, func(s settings.Settings) (*agent.Agent, error) {
		providerCfg := baseLLMConfig
		providerCfg.Model = s.ChatModel
		providerCfg.Temperature = s.ChatTemperature
		if providerCfg.Provider == "" {
			providerCfg.Provider = llm.DetectProvider(s.ChatModel)
		}
		provider, err := llm.NewProvider(providerCfg)
		if err != nil {
			return nil, err
		}
		registry := agent.NewRegistry(keywordTool, dbQueryTool, ragSearchTool, webSearchTool)
		return agent.New(provider, registry, s.SystemPrompt, logger), nil
	}, logger)

	routePipeline := router.New(router.Config{
		Settings:  settingsStore,
		Keyword:   keywordTool,
		Directory: employeeDirectory,
		Searcher:  engine,
		Web:       searchProvider,
		LLMConfig: baseLLMConfig,
		Logger:    logger,
	})

	// Setup router with health/metrics endpoints
	ginRouter := server.SetupRouter(logger, "hobi")
	ginRouter.GET("/healthz", healthChecker.Handler())
	ginRouter.GET("/metrics", metricsCollector.Handler())
	ginRouter.Use(metricsCollector.MetricsMiddleware())

	handler := &httpapi.Handler{
		Agent:     agentCache,
		Pipeline:  routePipeline,
		History:   historyStore,
		Settings:  settingsStore,
		Documents: knowledgeStore,
		Indexer:   engine,
		Logger:    logger,
		AdminKey:  cfg.AdminAPIKey,
	}
	handler.RegisterRoutes(ginRouter)

	// Start HTTP server with graceful shutdown
	serverConfig := server.DefaultConfig("hobi", cfg.Port)
	if err := server.Start(serverConfig, ginRouter, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
