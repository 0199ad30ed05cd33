package embeddings

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ziadkadry99/bookkeeper/internal/errortypes"
	"github.com/ziadkadry99/bookkeeper/internal/textnorm"
)

// ErrEmptyBatch is returned when Embed is called without any text.
var ErrEmptyBatch = errors.New("empty embedding batch")

// Provider normalizes texts, embeds them with a single backend call and
// scales every resulting vector to unit length, so cosine similarity equals
// the dot product.
type Provider struct {
	backend    Embedder
	normalizer textnorm.Normalizer
}

// NewProvider wraps backend.
func NewProvider(backend Embedder, normalizer textnorm.Normalizer) *Provider {
	return &Provider{backend: backend, normalizer: normalizer}
}

func (p *Provider) Name() string    { return p.backend.Name() }
func (p *Provider) Dimensions() int { return p.backend.Dimensions() }

// Normalizer returns the text normalizer applied before embedding.
func (p *Provider) Normalizer() textnorm.Normalizer { return p.normalizer }

// Embed implements Embedder. It either returns a vector for every text or
// an EmbeddingError.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errortypes.EmbeddingError(ErrEmptyBatch, "embedding documents")
	}

	cleaned := make([]string, len(texts))
	for i, t := range texts {
		cleaned[i] = p.normalizer.Normalize(t)
	}

	vectors, err := p.backend.Embed(ctx, cleaned)
	if err != nil {
		return nil, errortypes.EmbeddingError(err, fmt.Sprintf("embedding %d documents with %s", len(texts), p.backend.Name()))
	}
	if len(vectors) != len(texts) {
		return nil, errortypes.EmbeddingError(
			fmt.Errorf("backend returned %d vectors for %d documents", len(vectors), len(texts)),
			"embedding documents",
		)
	}

	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		unit, err := Normalize(v)
		if err != nil {
			return nil, errortypes.EmbeddingError(err, fmt.Sprintf("document %d", i))
		}
		out[i] = unit
	}
	return out, nil
}

// Normalize returns a copy of v scaled to unit L2 norm.
func Normalize(v []float32) ([]float32, error) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, fmt.Errorf("cannot normalize vector of length %d with norm %v", len(v), norm)
	}

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}
