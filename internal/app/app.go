package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alpinesboltltd/boltz-ai/internal/agent"
	"github.com/alpinesboltltd/boltz-ai/internal/cache"
	"github.com/alpinesboltltd/boltz-ai/internal/config"
	"github.com/alpinesboltltd/boltz-ai/internal/coordinator"
	"github.com/alpinesboltltd/boltz-ai/internal/entity"
	"github.com/alpinesboltltd/boltz-ai/internal/handler"
	"github.com/alpinesboltltd/boltz-ai/internal/incache"
	"github.com/alpinesboltltd/boltz-ai/internal/middleware"
	"github.com/alpinesboltltd/boltz-ai/internal/phasegate"
	aiprovider "github.com/alpinesboltltd/boltz-ai/internal/provider/ai-provider"
	"github.com/alpinesboltltd/boltz-ai/internal/queue"
	"github.com/alpinesboltltd/boltz-ai/internal/rag"
	"github.com/alpinesboltltd/boltz-ai/internal/registry"
	"github.com/alpinesboltltd/boltz-ai/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// defaultLLMProvider picks the one provider that backs every agent, chosen
// by LLM_PROVIDER (openai when unset or unrecognised), and resolves the API
// key to go with it.
func defaultLLMProvider(factory *aiprovider.ProviderFactory, cfg *config.Config) (aiprovider.LLMProvider, error) {
	var providerConfig entity.ProviderConfig
	switch cfg.LLM_PROVIDER {
	case "anthropic":
		providerConfig = entity.ProviderConfig{Provider: entity.Anthropic, APIKey: cfg.ANTHROPIC_API_KEY}
	case "google":
		providerConfig = entity.ProviderConfig{Provider: entity.Google, APIKey: cfg.GOOGLE_API_KEY}
	case "groq":
		providerConfig = entity.ProviderConfig{Provider: entity.Groq, APIKey: cfg.GROQ_API_KEY}
	default:
		providerConfig = entity.ProviderConfig{Provider: entity.OpenAI, APIKey: cfg.OPENAI_API_KEY}
	}
	return factory.CreateProvider(providerConfig)
}

func Run(cfg *config.Config) {
	// Initialize database: the procurement schema only. No user/auth state.
	db, err := repository.InitDB(cfg.DATABASE_URL)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to get database handle:", err)
	}
	defer sqlDB.Close()

	// Generation & phase-gate core: cache layer, document registry,
	// incremental-regeneration cache, agent catalog and coordinator.
	cacheCtx, cacheCancel := context.WithTimeout(context.Background(), 5*time.Second)
	cacheLayer, err := cache.NewRedisLayer(cacheCtx)
	cacheCancel()
	if err != nil {
		log.Printf("generation: Redis unavailable, falling back to in-memory cache layer: %v", err)
		cacheLayer = nil
	}
	var genCache cache.Layer
	if cacheLayer != nil {
		genCache = cacheLayer
	} else {
		genCache = cache.NewMemoryLayer()
	}

	docRegistry := registry.NewRegistry(db)
	artifactCache := incache.New(genCache)

	providerFactory := aiprovider.NewProviderFactory()
	llmProvider, err := defaultLLMProvider(providerFactory, cfg)
	if err != nil {
		log.Fatal("Failed to initialize LLM provider:", err)
	}

	genCohereClient, err := rag.NewCohereClient(cfg.COHERE_API_KEY)
	if err != nil {
		log.Fatal("Failed to initialize Cohere client for generation retrieval:", err)
	}
	embedder := rag.NewCohereEmbedder(genCohereClient)

	var vectorStore rag.VectorStore
	switch cfg.VECTOR_DB_TYPE {
	case config.VectorDBPinecone:
		pineconeStore, err := rag.NewPineconeStore(cfg.PINECONE_API_KEY, cfg.PINECONE_INDEX_NAME)
		if err != nil {
			log.Printf("generation: Pinecone unavailable, falling back to pgvector: %v", err)
			vectorStore = rag.NewPgVectorStore(db)
		} else {
			vectorStore = pineconeStore
		}
	default:
		vectorStore = rag.NewPgVectorStore(db)
	}

	retriever := rag.NewRetriever(vectorStore, embedder, genCache)
	agentDeps := agent.Deps{Provider: llmProvider, Retriever: retriever}
	agentRegistry := agent.NewDefaultRegistry(agentDeps)

	phaseGateService, err := phasegate.NewService(db, phasegate.Policy{BlockOnUnapproved: cfg.PHASEGATE_BLOCK_ON_UNAPPROVED})
	if err != nil {
		log.Fatal("Failed to initialize phase-gate service:", err)
	}

	genCoordinator := coordinator.New(db, docRegistry, artifactCache, agentRegistry, genCache, coordinator.Config{
		MaxConcurrency:  cfg.COORDINATOR_MAX_CONCURRENCY,
		AncestorCharCap: cfg.COORDINATOR_ANCESTOR_CHAR_CAP,
	})

	// Weighted job queue feeding a background worker pool, so a generation
	// request returns immediately and the actual run happens off the
	// request goroutine. Degrades to nil (handler runs inline) if Redis is
	// unreachable, same as the cache layer's own fallback above.
	var genQueue queue.Queue
	var workerCancel context.CancelFunc
	var workerDone <-chan struct{}
	queueRedisClient := redis.NewClient(&redis.Options{Addr: cfg.REDIS_ADDR, Password: cfg.REDIS_PASSWORD})
	weightedQueue, err := queue.NewWeightedQueue(queueRedisClient, "gen")
	if err != nil {
		log.Printf("generation: Redis unavailable for job queue, running generation requests inline: %v", err)
	} else {
		genQueue = weightedQueue
		workerCtx, cancel := context.WithCancel(context.Background())
		workerCancel = cancel
		workerDone = queue.StartWorkers(workerCtx, weightedQueue, func(ctx context.Context, job queue.Job) error {
			var task coordinator.Task
			if err := json.Unmarshal(job.Payload, &task); err != nil {
				return fmt.Errorf("invalid generation job payload: %w", err)
			}
			runCtx, runCancel := context.WithTimeout(ctx, 10*time.Minute)
			defer runCancel()
			_, err := genCoordinator.Run(runCtx, task)
			return err
		}, cfg.COORDINATOR_MAX_CONCURRENCY)
	}

	generationHandler := handler.NewGenerationHandler(genCoordinator, docRegistry, phaseGateService, genCache, genQueue)

	// Setup routes
	r := gin.New()
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())

	// Shutdown middleware
	shuttingDown := false
	r.Use(func(c *gin.Context) {
		if shuttingDown {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "Service Unavailable",
				"message": "The server is currently shutting down. Please try again later.",
				"code":    503,
			})
			c.Abort()
			return
		}
		c.Next()
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	api := r.Group("/api/v1")
	{
		procurement := api.Group("/procurement")
		{
			procurement.POST("/generate", generationHandler.Generate)
			procurement.GET("/:program/documents", generationHandler.ListDocuments)
			procurement.GET("/:program/lineage", generationHandler.ListLineage)
			procurement.POST("/:program/phase-transitions", generationHandler.ValidateTransition)
			procurement.POST("/phase-transitions/:requestId/approve", generationHandler.ApproveTransition)
			procurement.POST("/phase-transitions/:requestId/reject", generationHandler.RejectTransition)
		}
	}
	ws := r.Group("/ws/v1")
	{
		procurementWS := ws.Group("/procurement")
		{
			procurementWS.GET("/:program/progress", generationHandler.StreamProgress)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")
	shuttingDown = true

	// Cancel the generation worker pool and wait (bounded) for it to drain
	if workerCancel != nil {
		workerCancel()
		if workerDone != nil {
			select {
			case <-workerDone:
				log.Println("generation: worker pool shutdown completed")
			case <-time.After(10 * time.Second):
				log.Println("generation: worker pool shutdown timed out")
			}
		}
	}

	// Graceful shutdown with 30 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
