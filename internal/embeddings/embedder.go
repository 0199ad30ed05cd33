// Package embeddings turns transaction text into unit-length vectors.
package embeddings

import "context"

// Embedder generates embeddings for a batch of texts.
type Embedder interface {
	// Embed returns one vector per text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the length of the vectors produced.
	Dimensions() int

	// Name identifies the model.
	Name() string
}
