package embeddings

import (
	"context"
	"hash/fnv"
)

// HashEmbedder is an offline embedder that hashes character unigrams and
// bigrams into a fixed number of buckets. Texts that share characters get
// similar vectors and identical texts get identical vectors. It needs no
// model download, which makes it useful for development and tests.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a HashEmbedder producing vectors of length dims.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &HashEmbedder{dims: dims}
}

func (e *HashEmbedder) Name() string    { return "hash" }
func (e *HashEmbedder) Dimensions() int { return e.dims }

func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *HashEmbedder) vector(text string) []float32 {
	vec := make([]float32, e.dims)
	runes := []rune(text)
	// A constant bias keeps the empty string away from the zero vector.
	vec[0] = 0.01
	for i, r := range runes {
		vec[e.bucket(string(r))] += 1.0
		if i+1 < len(runes) {
			vec[e.bucket(string(runes[i:i+2]))] += 0.5
		}
	}
	return vec
}

func (e *HashEmbedder) bucket(gram string) int {
	h := fnv.New32a()
	h.Write([]byte(gram))
	return int(h.Sum32() % uint32(e.dims))
}
