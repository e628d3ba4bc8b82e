package core_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memolite "github.com/Jerrylingj/MemoLite/pkg/core"
	"github.com/Jerrylingj/MemoLite/pkg/embedder/hash"
	"github.com/Jerrylingj/MemoLite/pkg/intelligence"
	"github.com/Jerrylingj/MemoLite/pkg/llm"
	"github.com/Jerrylingj/MemoLite/pkg/memory"
)

var clientNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, opts ...memolite.ClientOption) *memolite.Client {
	t.Helper()
	opts = append([]memolite.ClientOption{
		memolite.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		memolite.WithClock(func() time.Time { return clientNow }),
	}, opts...)

	client, err := memolite.NewClient(memolite.DefaultConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func profile() *memory.Record {
	return memory.NewRecord("User is a financial analyst", memory.TypeUserProfile,
		memory.WithImportance(0.9),
		memory.WithConfidence(1.0),
		memory.WithCreatedAt(clientNow),
	)
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float64, error) {
	return nil, errors.New("embedding service down")
}

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float64, error) {
	return nil, errors.New("embedding service down")
}

func (failingEmbedder) Dimensions() int { return 8 }
func (failingEmbedder) Close() error    { return nil }

// queryFailingEmbedder embeds stored records but fails on failQuery.
type queryFailingEmbedder struct {
	*hash.Embedder
	failQuery string
}

func (e queryFailingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if text == e.failQuery {
		return nil, errors.New("embedding service down")
	}
	return e.Embedder.Embed(ctx, text)
}

type fakeLLM struct {
	reply string
}

func (f *fakeLLM) GenerateWithMessages(context.Context, []llm.Message, ...llm.GenerateOption) (string, error) {
	return f.reply, nil
}

func (f *fakeLLM) Close() error { return nil }

type fakeExtractor struct {
	records []*memory.Record
	err     error
}

func (f *fakeExtractor) Extract(context.Context, string) ([]*memory.Record, error) {
	return f.records, f.err
}

func TestRememberPipeline(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	rec := profile()

	result, err := client.Remember(ctx, "user_job", rec, memory.SourceUser)
	require.NoError(t, err)

	assert.Equal(t, "user_job", result.Key)
	assert.Equal(t, memory.TierHigh, result.Tier)
	assert.InDelta(t, 0.8153, result.Scores.Total, 1e-4)
	assert.Equal(t, intelligence.Resolution{Key: "user_job", Version: 1, Outcome: intelligence.OutcomeCreated}, result.Resolution)
	assert.NotZero(t, result.Record.ID)
	assert.Zero(t, rec.ID, "caller's record is not modified")

	assert.Equal(t, intelligence.Statistics{LongTerm: 1, Total: 1}, client.Statistics())
	require.Len(t, client.Records(memory.TierHigh), 1)
	assert.Equal(t, result.Record.ID, client.Records(memory.TierHigh)[0].ID)

	cur, ok := client.Current("user_job")
	require.True(t, ok)
	assert.Equal(t, result.Record, cur)

	hits, err := client.Recall(ctx, "financial analyst", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, result.Record.ID, hits[0].Record.ID)

	m := client.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsFiled.WithLabelValues("HIGH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConflictResolutions.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexEntries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches))
}

func TestRememberAssignsTimestamp(t *testing.T) {
	client := newTestClient(t)
	rec := &memory.Record{Content: "Raw record", Type: memory.TypeFacts, Importance: 0.5, Confidence: 0.5}

	result, err := client.Remember(context.Background(), "raw", rec, memory.SourceSystem)
	require.NoError(t, err)
	assert.True(t, clientNow.Equal(result.Record.CreatedAt))
	assert.Equal(t, 1, result.Record.Frequency)
	assert.NotNil(t, result.Record.Metadata)
}

func TestRememberInvalidInput(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		key    string
		record *memory.Record
		source memory.Source
	}{
		{name: "empty key", key: "", record: profile(), source: memory.SourceUser},
		{name: "nil record", key: "k", record: nil, source: memory.SourceUser},
		{name: "empty content", key: "k", record: memory.NewRecord("  ", memory.TypeFacts), source: memory.SourceUser},
		{name: "unknown type", key: "k", record: memory.NewRecord("x", memory.Type("OPINION")), source: memory.SourceUser},
		{name: "unknown source", key: "k", record: profile(), source: memory.Source("robot")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Remember(ctx, tt.key, tt.record, tt.source)
			assert.ErrorIs(t, err, memolite.ErrInvalidInput)

			var memErr *memolite.MemoryError
			require.ErrorAs(t, err, &memErr)
			assert.Equal(t, "Remember", memErr.Op)
		})
	}

	assert.Equal(t, intelligence.Statistics{}, client.Statistics())
	assert.Empty(t, client.Keys())
}

func TestRememberEmbeddingFailureLeavesNoState(t *testing.T) {
	client := newTestClient(t, memolite.WithEmbedder(failingEmbedder{}))

	_, err := client.Remember(context.Background(), "user_job", profile(), memory.SourceUser)
	assert.ErrorIs(t, err, memolite.ErrEmbeddingFailed)

	assert.Equal(t, intelligence.Statistics{}, client.Statistics())
	assert.Empty(t, client.History("user_job"))
	_, ok := client.Current("user_job")
	assert.False(t, ok)
}

func TestConflictScenario(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	key := "user_investment_style"

	write := func(content string, confidence float64, source memory.Source, offset time.Duration) *memolite.RememberResult {
		rec := memory.NewRecord(content, memory.TypeFacts,
			memory.WithImportance(0.8),
			memory.WithConfidence(confidence),
			memory.WithCreatedAt(clientNow.Add(offset)),
		)
		result, err := client.Remember(ctx, key, rec, source)
		require.NoError(t, err)
		return result
	}

	first := write("User prefers low-risk investments", 0.7, memory.SourceSystem, 0)
	assert.Equal(t, intelligence.OutcomeCreated, first.Resolution.Outcome)

	second := write("User might like high-risk investments", 0.5, memory.SourceInferred, time.Minute)
	assert.Equal(t, 2, second.Resolution.Version)
	assert.Equal(t, intelligence.OutcomeKeptHigherConfidence, second.Resolution.Outcome)
	cur, _ := client.Current(key)
	assert.Equal(t, "User prefers low-risk investments", cur.Content)
	assert.Equal(t, 2, cur.Frequency)

	third := write("User confirmed a balanced style", 1.0, memory.SourceUser, 2*time.Minute)
	assert.Equal(t, 3, third.Resolution.Version)
	assert.Equal(t, intelligence.OutcomeUserOverride, third.Resolution.Outcome)
	cur, _ = client.Current(key)
	assert.Equal(t, "User confirmed a balanced style", cur.Content)

	assert.Len(t, client.History(key), 3)
	assert.Equal(t, 3, client.Statistics().Total, "every write is filed, winners and losers alike")

	m := client.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConflictResolutions.WithLabelValues("kept_higher_confidence")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConflictResolutions.WithLabelValues("user_override")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.IndexEntries))
}

func TestApplyTimeDecay(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Remember(ctx, "fact", memory.NewRecord("Portfolio holds 40% bonds", memory.TypeFacts,
		memory.WithImportance(0.8), memory.WithCreatedAt(clientNow)), memory.SourceSystem)
	require.NoError(t, err)
	_, err = client.Remember(ctx, "pref", memory.NewRecord("User prefers email", memory.TypePreferences,
		memory.WithImportance(0.8), memory.WithCreatedAt(clientNow)), memory.SourceSystem)
	require.NoError(t, err)

	assert.Equal(t, 1, client.ApplyTimeDecay(1))

	fact, _ := client.Current("fact")
	assert.InDelta(t, 0.72, fact.Importance, 1e-9)
	pref, _ := client.Current("pref")
	assert.Equal(t, 0.8, pref.Importance)

	// Tier membership reflects filing time and is not revisited.
	assert.Equal(t, 2, client.Statistics().Total)
	for _, r := range append(client.Records(memory.TierHigh), client.Records(memory.TierMedium)...) {
		assert.Equal(t, 0.8, r.Importance)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(client.Metrics().DecayedRecords))
}

func TestRollback(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	key := "style"

	_, err := client.Remember(ctx, key, memory.NewRecord("low risk", memory.TypeFacts,
		memory.WithConfidence(0.7), memory.WithCreatedAt(clientNow)), memory.SourceSystem)
	require.NoError(t, err)
	_, err = client.Remember(ctx, key, memory.NewRecord("balanced", memory.TypeFacts,
		memory.WithConfidence(1.0), memory.WithCreatedAt(clientNow.Add(time.Hour))), memory.SourceUser)
	require.NoError(t, err)

	assert.False(t, client.Rollback(key, 0))
	assert.False(t, client.Rollback(key, 3))
	assert.False(t, client.Rollback("missing", 1))
	cur, _ := client.Current(key)
	assert.Equal(t, "balanced", cur.Content)

	assert.True(t, client.Rollback(key, 1))
	cur, _ = client.Current(key)
	assert.Equal(t, "low risk", cur.Content)
	assert.Equal(t, 0.7, cur.Confidence)
	assert.Len(t, client.History(key), 2)

	m := client.Metrics()
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Rollbacks.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rollbacks.WithLabelValues("success")))
}

func TestRecallTopK(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := client.Remember(ctx, fmt.Sprintf("note_%d", i),
			memory.NewRecord(fmt.Sprintf("Investment note number %d", i), memory.TypeFacts), memory.SourceSystem)
		require.NoError(t, err)
	}

	hits, err := client.RecallDefault(ctx, "investment note")
	require.NoError(t, err)
	assert.Len(t, hits, memolite.DefaultConfig().Memory.DefaultTopK)

	hits, err = client.Recall(ctx, "investment note", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = client.Recall(ctx, "investment note", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)

	hits, err = client.Recall(ctx, "investment note", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 5)

	hits, err = client.Recall(ctx, "investment note", -1)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIngest(t *testing.T) {
	extracted := []*memory.Record{
		memory.NewRecord("User is a data scientist", memory.TypeUserProfile, memory.WithImportance(0.9), memory.WithConfidence(0.95)),
		memory.NewRecord("User is preparing a churn model", memory.TypeTaskContext, memory.WithImportance(0.6)),
	}
	client := newTestClient(t, memolite.WithExtractor(&fakeExtractor{records: extracted}))

	results, err := client.Ingest(context.Background(), "I'm a data scientist preparing a churn model")
	require.NoError(t, err)
	require.Len(t, results, 2)

	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("%s_%d", extracted[i].Type, r.Record.ID), r.Key)
		history := client.History(r.Key)
		require.Len(t, history, 1)
		assert.Equal(t, memory.SourceInferred, history[0].Source)
	}
	assert.True(t, strings.HasPrefix(results[0].Key, "USER_PROFILE_"))
	assert.Zero(t, extracted[0].ID, "extracted records are not modified")
}

func TestIngestSkipsBlankCandidates(t *testing.T) {
	provider := &fakeLLM{reply: `[
  {"content": "   ", "memory_type": "FACTS", "importance": 0.5, "confidence": 0.5},
  {"content": "User likes Go", "memory_type": "PREFERENCES", "importance": 0.7, "confidence": 0.9}
]`}
	client := newTestClient(t, memolite.WithLLM(provider))

	results, err := client.Ingest(context.Background(), "I like Go")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "User likes Go", results[0].Record.Content)
	assert.Equal(t, 1, client.Statistics().Total)
}

func TestCurrentByType(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Remember(ctx, "user_job", profile(), memory.SourceUser)
	require.NoError(t, err)
	_, err = client.Remember(ctx, "tea", memory.NewRecord("User prefers tea", memory.TypePreferences), memory.SourceUser)
	require.NoError(t, err)
	_, err = client.Remember(ctx, "coffee", memory.NewRecord("User avoids coffee", memory.TypePreferences), memory.SourceUser)
	require.NoError(t, err)

	prefs := client.CurrentByType(memory.TypePreferences)
	require.Len(t, prefs, 2)
	assert.Equal(t, "User avoids coffee", prefs[0].Content)
	assert.Equal(t, "User prefers tea", prefs[1].Content)
	assert.Len(t, client.CurrentByType(memory.TypeUserProfile), 1)
	assert.Empty(t, client.CurrentByType(memory.TypeFacts))
}

func TestIngestErrors(t *testing.T) {
	client := newTestClient(t)
	_, err := client.Ingest(context.Background(), "hello")
	assert.ErrorIs(t, err, memolite.ErrExtractorUnavailable)

	client = newTestClient(t, memolite.WithExtractor(&fakeExtractor{err: memolite.ErrLLMOperation}))
	_, err = client.Ingest(context.Background(), "hello")
	assert.ErrorIs(t, err, memolite.ErrLLMOperation)
}

func TestWriterFlowsIntoPipeline(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	w := client.Writer()

	require.NoError(t, w.WriteRealtime(ctx, "user_job", profile()))
	require.NoError(t, w.WriteFromFeedback(ctx, "remember this", memory.NewRecord("User prefers tea", memory.TypePreferences)))
	w.AddToBatch(memory.NewRecord("Meeting moved to Monday", memory.TypeTaskContext))
	_, err := w.FlushBatch(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, client.Statistics().Total)
	assert.Len(t, client.Keys(), 3)
	assert.Len(t, client.WriteLog(), 3)

	stats := client.WriteStatistics()
	assert.Equal(t, 1, stats["realtime"])
	assert.Equal(t, 1, stats["feedback"])
	assert.Equal(t, 1, stats["batch"])

	feedbackKey := client.WriteLog()[1].Key
	assert.Equal(t, memory.SourceUser, client.History(feedbackKey)[0].Source)

	assert.Equal(t, 1.0, testutil.ToFloat64(client.Metrics().Writes.WithLabelValues("feedback")))
}

func TestConcurrentRememberSameKey(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := client.Remember(ctx, "shared", memory.NewRecord(fmt.Sprintf("value %d", i), memory.TypeFacts), memory.SourceSystem)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history := client.History("shared")
	require.Len(t, history, n)
	for i, v := range history {
		assert.Equal(t, i+1, v.Version)
	}
}

func TestNewClientInvalidConfig(t *testing.T) {
	cfg := memolite.DefaultConfig()
	cfg.Memory.DecayRate = 0

	_, err := memolite.NewClient(cfg)
	assert.ErrorIs(t, err, memolite.ErrInvalidConfig)

	cfg = memolite.DefaultConfig()
	cfg.Embedder.Provider = "openai"
	_, err = memolite.NewClient(cfg)
	assert.ErrorIs(t, err, memolite.ErrInvalidConfig)
}

func TestNewClientWithCustomEmbedder(t *testing.T) {
	cfg := memolite.DefaultConfig()
	cfg.Embedder.Provider = ""
	cfg.Embedder.CacheSize = 0

	client, err := memolite.NewClient(cfg, memolite.WithEmbedder(hash.New(32)))
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, "", cfg.Embedder.Provider, "caller's config is not modified")
	_, err = client.Remember(context.Background(), "k", profile(), memory.SourceUser)
	assert.NoError(t, err)
}

func TestGatherer(t *testing.T) {
	client := newTestClient(t)
	_, err := client.Remember(context.Background(), "user_job", profile(), memory.SourceUser)
	require.NoError(t, err)

	families, err := client.Gatherer().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["memolite_records_filed_total"])
	assert.True(t, names["memolite_semantic_index_entries"])
}

func TestNewClientBuildsExtractorFromLLMConfig(t *testing.T) {
	for _, provider := range []string{memolite.ProviderOpenAI, memolite.ProviderDeepSeek} {
		t.Run(provider, func(t *testing.T) {
			cfg := memolite.DefaultConfig()
			cfg.LLM = memolite.LLMConfig{Provider: provider, APIKey: "sk-test"}

			client, err := memolite.NewClient(cfg)
			require.NoError(t, err)
			defer client.Close()

			// Only a configured LLM gives Ingest an extractor; blank text is
			// rejected before any request is sent.
			_, err = client.Ingest(context.Background(), "   ")
			assert.NotErrorIs(t, err, memolite.ErrExtractorUnavailable)
		})
	}
}
