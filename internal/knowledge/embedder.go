package knowledge

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"google.golang.org/genai"
)

// fixedDimsEmbedder pins the embedding dimensionality to the vector
// column width: it asks the provider for exactly that many dimensions
// and rejects responses that disagree, so a misconfigured model surfaces
// as a clear error at embed time instead of a cryptic pgvector insert
// failure later.
type fixedDimsEmbedder struct {
	inner ai.Embedder
	dims  int32
}

// NewFixedDimsEmbedder wraps embedder so every embedding it produces has
// exactly dims elements. dims must match the documents.embedding column.
func NewFixedDimsEmbedder(embedder ai.Embedder, dims int32) (ai.Embedder, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if dims <= 0 {
		return nil, fmt.Errorf("dims must be positive, got %d", dims)
	}
	return &fixedDimsEmbedder{inner: embedder, dims: dims}, nil
}

func (e *fixedDimsEmbedder) Name() string { return e.inner.Name() }

func (e *fixedDimsEmbedder) Register(r api.Registry) { e.inner.Register(r) }

// Embed requests the pinned dimensionality unless the caller supplied
// its own provider options, then verifies the response either way.
func (e *fixedDimsEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	pinned := *req
	if pinned.Options == nil {
		dim := e.dims
		pinned.Options = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}

	resp, err := e.inner.Embed(ctx, &pinned)
	if err != nil {
		return nil, err
	}

	for i, emb := range resp.Embeddings {
		if got := int32(len(emb.Embedding)); got != e.dims {
			return nil, fmt.Errorf("embedder %s returned %d dimensions for input %d, want %d",
				e.inner.Name(), got, i, e.dims)
		}
	}
	return resp, nil
}
