package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Jerrylingj/MemoLite/pkg/embedder"
	embeddercache "github.com/Jerrylingj/MemoLite/pkg/embedder/cache"
	hashEmbedder "github.com/Jerrylingj/MemoLite/pkg/embedder/hash"
	openaiEmbedder "github.com/Jerrylingj/MemoLite/pkg/embedder/openai"
	"github.com/Jerrylingj/MemoLite/pkg/extraction"
	"github.com/Jerrylingj/MemoLite/pkg/intelligence"
	"github.com/Jerrylingj/MemoLite/pkg/llm"
	openaiLLM "github.com/Jerrylingj/MemoLite/pkg/llm/openai"
	"github.com/Jerrylingj/MemoLite/pkg/memory"
	"github.com/Jerrylingj/MemoLite/pkg/semantic"
	"github.com/Jerrylingj/MemoLite/pkg/writer"
)

// RememberResult describes how a single record moved through the pipeline.
type RememberResult struct {
	// Key is the logical key the record was written under.
	Key string `json:"key"`

	// Record is the filed copy of the record, with its ID assigned.
	Record *memory.Record `json:"record"`

	// Tier is the priority tier the record was filed into.
	Tier memory.Tier `json:"tier"`

	// Scores is the value breakdown the tier was derived from.
	Scores intelligence.Scores `json:"scores"`

	// Resolution is the outcome of versioning the write.
	Resolution intelligence.Resolution `json:"resolution"`
}

// Client is the main MemoLite client.
//
// It wires the memory pipeline together:
//   - ValueEvaluator scores each record
//   - PriorityClassifier files it into a HIGH, MEDIUM or LOW tier
//   - the semantic index makes it searchable by meaning
//   - VersionManager keeps the version log of its key and resolves conflicts
//
// The client is thread-safe and can be used concurrently from multiple
// goroutines. Writes are serialised; queries share a read lock.
//
// Example usage:
//
//	client, _ := core.NewClient(core.DefaultConfig())
//	defer client.Close()
//
//	rec := memory.NewRecord("User is a financial analyst", memory.TypeUserProfile,
//	    memory.WithImportance(0.9), memory.WithConfidence(1.0))
//	result, _ := client.Remember(ctx, "user_job", rec, memory.SourceUser)
//	fmt.Println(result.Tier) // HIGH
type Client struct {
	// config contains the client configuration.
	config *Config

	// embedder is the embedding provider for the semantic index.
	embedder embedder.Provider

	// llm is the LLM provider behind the default extractor (nil if not configured).
	llm llm.Provider

	// extractor turns free text into records (nil if not configured).
	extractor extraction.Extractor

	evaluator  *intelligence.ValueEvaluator
	classifier *intelligence.PriorityClassifier
	index      *semantic.Index
	versions   *intelligence.VersionManager
	writer     *writer.Writer

	metrics  *Metrics
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	now      func() time.Time

	// snowflakeNode generates unique IDs for records.
	snowflakeNode *snowflake.Node

	// mu protects the pipeline components.
	mu sync.RWMutex
}

// NewClient creates a new MemoLite client.
//
// The client is initialized with:
//   - Embedding provider (hash or OpenAI), wrapped in a cache if CacheSize > 0
//   - LLM provider and extractor (if configured)
//   - Scoring, tiering, semantic and versioning components
//   - A writer whose sink is Remember
//   - Prometheus metrics on a private registry unless WithRegisterer is given
//
// Parameters:
//   - cfg: Configuration; nil uses DefaultConfig()
//   - opts: Optional overrides (logger, registerer, embedder, llm, extractor, clock)
//
// Returns a new Client instance, or an error if initialization fails.
func NewClient(cfg *Config, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	own := *cfg
	cfg = &own
	options := applyClientOptions(opts)

	// A replaced embedder makes the embedder config irrelevant.
	if options.embedder != nil && cfg.Embedder.Provider == "" {
		cfg.Embedder.Provider = ProviderHash
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := options.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Initialize Embedder
	embedderProvider := options.embedder
	if embedderProvider == nil {
		p, err := initEmbedder(cfg.Embedder)
		if err != nil {
			return nil, err
		}
		embedderProvider = p
	}
	if cfg.Embedder.CacheSize > 0 {
		cached, err := embeddercache.New(embedderProvider, cfg.Embedder.CacheSize)
		if err != nil {
			return nil, NewMemoryError("NewClient", err)
		}
		embedderProvider = cached
	}

	// Initialize LLM and extractor
	llmProvider := options.llm
	if llmProvider == nil && cfg.LLM.Provider != "" {
		p, err := initLLM(cfg.LLM)
		if err != nil {
			return nil, err
		}
		llmProvider = p
	}
	extractor := options.extractor
	if extractor == nil && llmProvider != nil {
		extractor = extraction.NewLLMExtractor(llmProvider,
			extraction.WithLogger(logger),
			extraction.WithClock(options.now),
		)
	}

	// Initialize Snowflake ID generator
	node, err := snowflake.NewNode(cfg.Memory.NodeID)
	if err != nil {
		return nil, NewMemoryError("NewClient", err)
	}

	// Initialize metrics
	registerer := options.registerer
	var gatherer prometheus.Gatherer
	if registerer == nil {
		reg := prometheus.NewRegistry()
		registerer, gatherer = reg, reg
	} else if g, ok := registerer.(prometheus.Gatherer); ok {
		gatherer = g
	}
	metrics := NewMetrics(registerer)

	evaluator := intelligence.NewValueEvaluator(intelligence.WithClock(options.now))

	client := &Client{
		config:     cfg,
		embedder:   embedderProvider,
		llm:        llmProvider,
		extractor:  extractor,
		evaluator:  evaluator,
		classifier: intelligence.NewPriorityClassifier(evaluator, logger),
		index:      semantic.NewIndex(embedderProvider),
		versions: intelligence.NewVersionManager(
			intelligence.WithDecayRate(cfg.Memory.DecayRate),
			intelligence.WithVersionLogger(logger),
		),
		metrics:       metrics,
		gatherer:      gatherer,
		logger:        logger,
		now:           options.now,
		snowflakeNode: node,
	}
	client.writer = writer.New(client.sink,
		writer.WithClock(options.now),
		writer.WithWriteHook(func(s writer.Strategy) {
			metrics.Writes.WithLabelValues(string(s)).Inc()
		}),
	)

	return client, nil
}

// Remember runs one record through the pipeline under key.
//
// The method:
//  1. Validates the key, record and source
//  2. Assigns a snowflake ID if the record has none
//  3. Embeds it into the semantic index
//  4. Scores the record and files it into a priority tier
//  5. Appends a version to the key and resolves conflicts with its current value
//
// Each component keeps its own copy; the caller's record is never modified.
// Embedding is the only step that can fail after validation, and it runs
// before anything is stored, so a failed Remember leaves no partial state.
//
// Parameters:
//   - ctx: Context for cancellation (passed to the embedding provider)
//   - key: Logical key the record belongs to
//   - r: The record to remember
//   - source: Who proposed the write (user, system, inferred)
//
// Returns the RememberResult, or an error if validation or embedding fails.
func (c *Client) Remember(ctx context.Context, key string, r *memory.Record, source memory.Source) (*RememberResult, error) {
	rec, err := c.prepare(key, r, source)
	if err != nil {
		return nil, NewMemoryError("Remember", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.remember(ctx, key, rec, source)
	if err != nil {
		return nil, NewMemoryError("Remember", err)
	}
	return result, nil
}

// prepare validates the input and returns a normalised copy with ID and
// timestamp assigned.
func (c *Client) prepare(key string, r *memory.Record, source memory.Source) (*memory.Record, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidInput)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: nil record", ErrInvalidInput)
	}
	if strings.TrimSpace(r.Content) == "" {
		return nil, fmt.Errorf("%w: empty content", ErrInvalidInput)
	}
	if !r.Type.Valid() {
		return nil, fmt.Errorf("%w: %w: %q", ErrInvalidInput, memory.ErrUnknownType, r.Type)
	}
	if !source.Valid() {
		return nil, fmt.Errorf("%w: unknown source %q", ErrInvalidInput, source)
	}

	rec := r.Clone()
	rec.Normalize()
	if rec.ID == 0 {
		rec.ID = c.snowflakeNode.Generate().Int64()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = c.now()
	}
	return rec, nil
}

// remember stores a prepared record. The caller holds c.mu.
func (c *Client) remember(ctx context.Context, key string, rec *memory.Record, source memory.Source) (*RememberResult, error) {
	if err := c.index.Add(ctx, rec); err != nil {
		return nil, err
	}
	c.metrics.IndexEntries.Set(float64(c.index.Len()))

	tier, scores := c.classifier.Store(rec)
	c.metrics.RecordsFiled.WithLabelValues(string(tier)).Inc()

	resolution, err := c.versions.AddOrUpdate(key, rec, source)
	if err != nil {
		return nil, err
	}
	c.metrics.ConflictResolutions.WithLabelValues(string(resolution.Outcome)).Inc()

	c.logger.Debug("memory remembered",
		"key", key,
		"id", rec.ID,
		"tier", tier,
		"total", scores.Total,
		"outcome", resolution.Outcome,
	)

	return &RememberResult{
		Key:        key,
		Record:     rec.Clone(),
		Tier:       tier,
		Scores:     scores,
		Resolution: resolution,
	}, nil
}

// sink adapts Remember to writer.SinkFunc.
func (c *Client) sink(ctx context.Context, key string, r *memory.Record, source memory.Source) error {
	_, err := c.Remember(ctx, key, r, source)
	return err
}

// Ingest extracts records from free text and remembers each of them.
//
// Every extracted record gets its own key "<TYPE>_<id>" and source
// "inferred". The LLM call runs without holding the client lock.
//
// Returns ErrExtractorUnavailable if the client has no extractor. If a
// record fails to be remembered, the results so far are returned together
// with the error.
//
// Example:
//
//	results, err := client.Ingest(ctx, "I'm a data scientist and I prefer Python")
//	for _, r := range results {
//	    fmt.Println(r.Key, r.Tier, r.Record.Content)
//	}
func (c *Client) Ingest(ctx context.Context, text string) ([]*RememberResult, error) {
	if c.extractor == nil {
		return nil, NewMemoryError("Ingest", ErrExtractorUnavailable)
	}

	records, err := c.extractor.Extract(ctx, text)
	if err != nil {
		return nil, NewMemoryError("Ingest", err)
	}

	results := make([]*RememberResult, 0, len(records))
	for _, r := range records {
		rec := r.Clone()
		if rec.ID == 0 {
			rec.ID = c.snowflakeNode.Generate().Int64()
		}
		key := fmt.Sprintf("%s_%d", rec.Type, rec.ID)

		result, err := c.Remember(ctx, key, rec, memory.SourceInferred)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	c.logger.Info("text ingested", "extracted", len(records), "remembered", len(results))
	return results, nil
}

// Recall returns at most topK records most similar in meaning to query,
// best first. Equal scores keep insertion order. A topK <= 0 returns no
// results without embedding the query.
func (c *Client) Recall(ctx context.Context, query string, topK int) ([]semantic.Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	results, err := c.index.Search(ctx, query, topK)
	if err != nil {
		return nil, NewMemoryError("Recall", err)
	}
	c.metrics.Searches.Inc()
	return results, nil
}

// RecallDefault is Recall with Config.Memory.DefaultTopK results.
func (c *Client) RecallDefault(ctx context.Context, query string) ([]semantic.Result, error) {
	return c.Recall(ctx, query, c.config.Memory.DefaultTopK)
}

// ApplyTimeDecay lowers the importance of every non-permanent current value
// by (1 - decayRate) ^ daysPassed. Tier membership is not revisited.
//
// Returns the number of records decayed.
func (c *Client) ApplyTimeDecay(daysPassed float64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.versions.ApplyTimeDecay(daysPassed)
	c.metrics.DecayedRecords.Add(float64(n))
	return n
}

// Rollback restores the current value of key to a past version.
//
// Returns false, without changing anything, if key is unknown or version is
// out of range.
func (c *Client) Rollback(key string, version int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ok := c.versions.Rollback(key, version)
	result := "success"
	if !ok {
		result = "failure"
		c.logger.Warn("rollback rejected", "key", key, "version", version)
	}
	c.metrics.Rollbacks.WithLabelValues(result).Inc()
	return ok
}

// Current returns a copy of the resolved value of key.
func (c *Client) Current(key string) (*memory.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.versions.Current(key)
}

// CurrentByType returns copies of the current values of every key holding
// records of type typ, ordered by key.
func (c *Client) CurrentByType(typ memory.Type) []*memory.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.versions.CurrentByType(typ)
}

// History returns the version log of key, oldest first.
// Unknown keys yield an empty slice.
func (c *Client) History(key string) []memory.VersionRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.versions.History(key)
}

// Keys returns every key written so far, in lexical order.
func (c *Client) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.versions.Keys()
}

// Statistics returns how many records were filed into each tier.
func (c *Client) Statistics() intelligence.Statistics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.classifier.Statistics()
}

// Records returns copies of the records filed into tier, in filing order.
func (c *Client) Records(tier memory.Tier) []*memory.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.classifier.Records(tier)
}

// Writer returns the writer whose writes flow into Remember.
func (c *Client) Writer() *writer.Writer {
	return c.writer
}

// WriteLog returns the writer log, oldest first.
func (c *Client) WriteLog() []writer.LogEntry {
	return c.writer.Log()
}

// WriteStatistics counts writer writes per strategy.
func (c *Client) WriteStatistics() map[writer.Strategy]int {
	return c.writer.Statistics()
}

// Metrics returns the Prometheus collectors updated by the client.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// Gatherer returns the registry holding the client metrics, or nil if the
// registerer given to WithRegisterer cannot gather.
func (c *Client) Gatherer() prometheus.Gatherer {
	return c.gatherer
}

// Evaluator returns the value evaluator used for scoring.
func (c *Client) Evaluator() *intelligence.ValueEvaluator {
	return c.evaluator
}

// Close closes the embedding and LLM providers.
//
// Returns an error joining any close failures.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.embedder != nil {
		if err := c.embedder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.llm != nil {
		if err := c.llm.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return NewMemoryError("Close", errors.Join(errs...))
}

const (
	deepSeekBaseURL = "https://api.deepseek.com"
	deepSeekModel   = "deepseek-chat"
)

// initLLM initializes the LLM provider based on configuration.
func initLLM(cfg LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		client, err := openaiLLM.NewClient(&openaiLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
		if err != nil {
			return nil, NewMemoryError("initLLM", err)
		}
		return client, nil
	case ProviderDeepSeek:
		// DeepSeek serves the OpenAI chat API under its own base URL.
		baseURL, model := cfg.BaseURL, cfg.Model
		if baseURL == "" {
			baseURL = deepSeekBaseURL
		}
		if model == "" {
			model = deepSeekModel
		}
		client, err := openaiLLM.NewClient(&openaiLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   model,
			BaseURL: baseURL,
		})
		if err != nil {
			return nil, NewMemoryError("initLLM", err)
		}
		return client, nil
	default:
		return nil, NewMemoryError("initLLM", fmt.Errorf("%w: unsupported llm provider %q", ErrInvalidConfig, cfg.Provider))
	}
}

// initEmbedder initializes the embedding provider based on configuration.
func initEmbedder(cfg EmbedderConfig) (embedder.Provider, error) {
	switch cfg.Provider {
	case ProviderHash:
		return hashEmbedder.New(cfg.Dimensions), nil
	case ProviderOpenAI:
		client, err := openaiEmbedder.NewClient(&openaiEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, NewMemoryError("initEmbedder", err)
		}
		return client, nil
	default:
		return nil, NewMemoryError("initEmbedder", fmt.Errorf("%w: unsupported embedder provider %q", ErrInvalidConfig, cfg.Provider))
	}
}
