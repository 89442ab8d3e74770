package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pokhrel-dev/simplechat-sub001/db"
	"github.com/pokhrel-dev/simplechat-sub001/internal/blob"
	"github.com/pokhrel-dev/simplechat-sub001/internal/chat"
	"github.com/pokhrel-dev/simplechat-sub001/internal/config"
	"github.com/pokhrel-dev/simplechat-sub001/internal/conversation"
	"github.com/pokhrel-dev/simplechat-sub001/internal/database"
	"github.com/pokhrel-dev/simplechat-sub001/internal/fragment"
	"github.com/pokhrel-dev/simplechat-sub001/internal/ingest"
	"github.com/pokhrel-dev/simplechat-sub001/internal/knowledge"
	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
	"github.com/pokhrel-dev/simplechat-sub001/internal/media"
	"github.com/pokhrel-dev/simplechat-sub001/internal/observability"
	"github.com/pokhrel-dev/simplechat-sub001/internal/security"
)

// Setup builds the application in dependency order. On any failure,
// everything already constructed is released before the error returns.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = log.NewNop()
	}

	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing first: genkit reads the tracer provider at Init time.
	otelShutdown, err := observability.Setup(ctx, observability.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Environment: cfg.Tracing.Environment,
		ServiceName: cfg.Tracing.ServiceName,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}
	a.otelShutdown = otelShutdown

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder, err := provideEmbedder(g, cfg)
	if err != nil {
		return nil, err
	}
	a.Embedder = embedder

	conversations, err := conversation.NewStore(pool, fragment.Policy{
		Ceiling:   cfg.RecordCeiling,
		Threshold: cfg.RecordThreshold,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating conversation store: %w", err)
	}
	a.Conversations = conversations

	knowledgeStore, err := knowledge.NewStore(pool, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating knowledge store: %w", err)
	}
	a.Knowledge = knowledgeStore

	blobStore, err := blob.New(ctx, cfg.Blob, logger)
	if err != nil {
		return nil, fmt.Errorf("creating blob store: %w", err)
	}
	a.Blob = blobStore

	pipeline, err := provideIngest(a, g, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Ingest = pipeline

	generator, err := media.NewGenerator(g, cfg.FullImageModelName(), logger)
	if err != nil {
		return nil, fmt.Errorf("creating image generator: %w", err)
	}
	a.Media = generator

	agent, err := chat.New(chat.Config{
		Genkit:        g,
		Conversations: conversations,
		Knowledge:     knowledgeStore,
		Logger:        logger,
		ModelName:     cfg.FullModelName(),
		RetrievalTopK: cfg.RetrievalTopK,
		HistoryLimit:  cfg.MaxHistoryMessages,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat agent: %w", err)
	}
	a.Agent = agent
	a.Flow = chat.NewFlow(g, agent)

	return a, nil
}

// provideDBPool runs pending migrations, then opens the shared pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}

// provideGenkit initializes genkit with the configured AI provider.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}

	default: // gemini / googleai
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
	}

	logger.Info("genkit initialized",
		"provider", cfg.Provider,
		"model", cfg.ModelName,
	)
	return g, nil
}

// provideEmbedder looks up the provider's embedder and pins its output
// width to the documents.embedding column.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) (ai.Embedder, error) {
	var embedder ai.Embedder
	switch cfg.Provider {
	case config.ProviderOpenAI:
		embedder = genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default:
		embedder = googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	return knowledge.NewFixedDimsEmbedder(embedder, int32(cfg.EmbedderDimensions))
}

// provideIngest assembles the document ingestion pipeline: fetcher for
// URL sources, describer for image uploads, chunker settings from config.
func provideIngest(a *App, g *genkit.Genkit, cfg *config.Config, logger log.Logger) (*ingest.Pipeline, error) {
	fetcher, err := ingest.NewFetcher(security.NewURL(), logger,
		ingest.WithTimeout(time.Duration(cfg.Ingest.FetchTimeoutMs)*time.Millisecond),
		ingest.WithLimits(cfg.Ingest.FetchParallelism, time.Duration(cfg.Ingest.FetchDelayMs)*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("creating page fetcher: %w", err)
	}

	describer, err := ingest.NewDescriber(g, cfg.FullModelName(), logger)
	if err != nil {
		return nil, fmt.Errorf("creating image describer: %w", err)
	}

	pipeline, err := ingest.New(ingest.Config{
		Documents:    a.Knowledge,
		Files:        a.Blob,
		Fetcher:      fetcher,
		Describer:    describer,
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating ingest pipeline: %w", err)
	}
	return pipeline, nil
}
