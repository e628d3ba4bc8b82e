package core

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Jerrylingj/MemoLite/pkg/embedder"
	"github.com/Jerrylingj/MemoLite/pkg/extraction"
	"github.com/Jerrylingj/MemoLite/pkg/llm"
)

// ClientOption is a function type for configuring a Client.
//
// Options are applied using the functional options pattern and take
// precedence over the corresponding Config fields.
type ClientOption func(*clientOptions)

type clientOptions struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	embedder   embedder.Provider
	llm        llm.Provider
	extractor  extraction.Extractor
	now        func() time.Time
}

// WithLogger sets the logger used by the client and its components.
//
// Example:
//
//	client, _ := core.NewClient(cfg, core.WithLogger(slog.New(handler)))
func WithLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithRegisterer registers the client metrics on reg instead of a private
// registry. Use prometheus.DefaultRegisterer to expose them globally.
func WithRegisterer(reg prometheus.Registerer) ClientOption {
	return func(o *clientOptions) {
		o.registerer = reg
	}
}

// WithEmbedder replaces the embedding provider built from Config.Embedder.
// The embedding cache is still applied when Config.Embedder.CacheSize > 0.
func WithEmbedder(p embedder.Provider) ClientOption {
	return func(o *clientOptions) {
		o.embedder = p
	}
}

// WithLLM replaces the LLM provider built from Config.LLM.
func WithLLM(p llm.Provider) ClientOption {
	return func(o *clientOptions) {
		o.llm = p
	}
}

// WithExtractor replaces the extractor used by Ingest.
func WithExtractor(e extraction.Extractor) ClientOption {
	return func(o *clientOptions) {
		o.extractor = e
	}
}

// WithClock replaces the clock used for scoring, timestamps and the write log.
func WithClock(now func() time.Time) ClientOption {
	return func(o *clientOptions) {
		o.now = now
	}
}

func applyClientOptions(opts []ClientOption) *clientOptions {
	options := &clientOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.now == nil {
		options.now = time.Now
	}
	return options
}
