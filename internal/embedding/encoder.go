// Package embedding converts text into dense vectors for similarity search.
//
// The pipeline encodes visual descriptions (and the CLI encodes free-text
// queries) through an Encoder, then hands the vectors to the image index.
// The production implementation calls an OpenAI-compatible embeddings API;
// tests inject fakes.
package embedding

import "context"

// Encoder converts text into dense float32 vectors.
type Encoder interface {
	// Encode returns the embedding vector for a single text.
	Encode(ctx context.Context, text string) ([]float32, error)

	// EncodeBatch returns embedding vectors for multiple texts in input
	// order. Implementations may split large batches into several API
	// calls transparently.
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the output vectors.
	Dimension() int
}
