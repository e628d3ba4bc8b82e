// Package embedder provides interfaces for text embedding providers.
//
// It defines the Provider interface that all embedding implementations must satisfy,
// enabling text-to-vector conversion for semantic search. The memory core treats
// a provider as opaque: it never inspects vectors beyond arithmetic.
package embedder

import "context"

// Provider defines the interface for embedding providers.
//
// Implementations: openai (remote API), hash (deterministic, offline) and
// cache (memoisation around another provider).
type Provider interface {
	// Embed converts a text string into a vector embedding.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - text: The input text to embed
	//
	// Returns the embedding vector and any error.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch converts multiple text strings into vector embeddings.
	//
	// The returned slice has one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the dimension of embedding vectors produced by this provider.
	Dimensions() int

	// Close closes the provider and releases resources.
	Close() error
}
