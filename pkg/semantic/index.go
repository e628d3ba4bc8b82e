// Package semantic implements the semantic index: an append-only store of
// (record, embedding) pairs searched by cosine similarity.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Jerrylingj/MemoLite/pkg/embedder"
	"github.com/Jerrylingj/MemoLite/pkg/intelligence"
	"github.com/Jerrylingj/MemoLite/pkg/memory"
)

// ErrEmbeddingFailed indicates that the embedding provider returned an error
// or an unusable result.
var ErrEmbeddingFailed = errors.New("embedding generation failed")

// Result is one search hit.
type Result struct {
	Record *memory.Record `json:"record"`
	Score  float64        `json:"score"`
}

// Index stores records and their embeddings in two parallel slices indexed
// by insertion order. Nothing is deduplicated: adding the same content twice
// yields two entries.
//
// An Index is not safe for concurrent use.
type Index struct {
	provider   embedder.Provider
	records    []*memory.Record
	embeddings [][]float64
}

// NewIndex creates an empty index embedding with provider.
func NewIndex(provider embedder.Provider) *Index {
	return &Index{provider: provider}
}

// Add embeds the record content and appends a copy of the record.
//
// Nothing is appended if embedding fails.
func (x *Index) Add(ctx context.Context, r *memory.Record) error {
	if r == nil {
		return fmt.Errorf("%w: nil record", memory.ErrInvalidInput)
	}

	vec, err := x.provider.Embed(ctx, r.Content)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	x.records = append(x.records, r.Clone())
	x.embeddings = append(x.embeddings, vec)
	return nil
}

// AddBatch embeds all record contents in one provider call and appends the
// records in input order. Either every record is appended or none is.
func (x *Index) AddBatch(ctx context.Context, records []*memory.Record) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, r := range records {
		if r == nil {
			return fmt.Errorf("%w: nil record at index %d", memory.ErrInvalidInput, i)
		}
		texts[i] = r.Content
	}

	vectors, err := x.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(records) {
		return fmt.Errorf("%w: got %d vectors for %d records", ErrEmbeddingFailed, len(vectors), len(records))
	}

	for i, r := range records {
		x.records = append(x.records, r.Clone())
		x.embeddings = append(x.embeddings, vectors[i])
	}
	return nil
}

// Search ranks every stored record by cosine similarity to the query.
//
// Results are sorted by descending score; equal scores keep insertion order.
// At most topK results are returned, or all entries if there are fewer.
// A topK of zero or less returns an empty result without embedding the query.
func (x *Index) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK <= 0 || len(x.records) == 0 {
		return []Result{}, nil
	}

	q, err := x.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	results := make([]Result, len(x.records))
	for i, r := range x.records {
		results[i] = Result{
			Record: r,
			Score:  intelligence.CosineSimilarity(q, x.embeddings[i]),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Record = results[i].Record.Clone()
	}
	return results, nil
}

// Len returns the number of stored entries.
func (x *Index) Len() int {
	return len(x.records)
}
