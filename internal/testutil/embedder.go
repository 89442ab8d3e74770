package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// FakeEmbedder is a deterministic in-process ai.Embedder for tests that
// need real vector storage without a network dependency. Identical text
// always maps to the identical unit vector, so an exact-text query ranks
// its own document first with cosine similarity 1, while unrelated texts
// land near 0.
type FakeEmbedder struct {
	Dims int // vector width, must match the embedding column
}

// NewFakeEmbedder returns a FakeEmbedder producing dims-wide vectors.
func NewFakeEmbedder(dims int) *FakeEmbedder {
	return &FakeEmbedder{Dims: dims}
}

func (e *FakeEmbedder) Name() string { return "fake-embedder" }

func (e *FakeEmbedder) Register(api.Registry) {}

func (e *FakeEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	out := make([]*ai.Embedding, len(req.Input))
	for i, doc := range req.Input {
		var text strings.Builder
		for _, part := range doc.Content {
			text.WriteString(part.Text)
		}
		out[i] = &ai.Embedding{Embedding: e.vector(text.String())}
	}
	return &ai.EmbedResponse{Embeddings: out}, nil
}

// vector derives a unit vector from the text's SHA-256 digest. Seeding a
// PRNG with the digest makes the mapping deterministic across processes;
// normal components make distinct texts nearly orthogonal at high
// dimensions.
func (e *FakeEmbedder) vector(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	rng := rand.New(rand.NewPCG(
		binary.BigEndian.Uint64(sum[:8]),
		binary.BigEndian.Uint64(sum[8:16])))

	vec := make([]float32, e.Dims)
	var norm float64
	for i := range vec {
		v := rng.NormFloat64()
		vec[i] = float32(v)
		norm += v * v
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
