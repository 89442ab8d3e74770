// Package app assembles the application: configuration in, a fully
// wired set of stores, pipelines, and the chat agent out.
//
// Setup builds everything in dependency order (tracing, database,
// genkit, stores, pipelines, agent) and Close releases it in reverse.
// Construction is explicit so the order is readable in one place.
package app

import (
	"context"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pokhrel-dev/simplechat-sub001/internal/blob"
	"github.com/pokhrel-dev/simplechat-sub001/internal/chat"
	"github.com/pokhrel-dev/simplechat-sub001/internal/config"
	"github.com/pokhrel-dev/simplechat-sub001/internal/conversation"
	"github.com/pokhrel-dev/simplechat-sub001/internal/ingest"
	"github.com/pokhrel-dev/simplechat-sub001/internal/knowledge"
	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
	"github.com/pokhrel-dev/simplechat-sub001/internal/media"
)

// App is the application container. All fields are ready to use after
// Setup returns; Close must be called on shutdown.
type App struct {
	Config *config.Config
	Logger log.Logger

	Pool     *pgxpool.Pool
	Genkit   *genkit.Genkit
	Embedder ai.Embedder

	Conversations *conversation.Store
	Knowledge     *knowledge.Store
	Blob          blob.Store
	Ingest        *ingest.Pipeline
	Media         *media.Generator
	Agent         *chat.Agent
	Flow          *chat.Flow

	// otelShutdown flushes pending spans. Set by Setup, nil until then.
	otelShutdown func(context.Context) error
}

// closeTimeout bounds the trace flush during shutdown.
const closeTimeout = 5 * time.Second

// Close releases resources in reverse construction order. Safe to call
// on a partially constructed App (Setup calls it on its own failures).
func (a *App) Close() error {
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		if err := a.otelShutdown(ctx); err != nil {
			a.Logger.Warn("shutting down tracer", "error", err)
		}
		cancel()
		a.otelShutdown = nil
	}

	if a.Pool != nil {
		a.Pool.Close()
		a.Pool = nil
		a.Logger.Debug("database pool closed")
	}

	return nil
}
