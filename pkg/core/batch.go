package core

import (
	"context"
	"fmt"

	"github.com/Jerrylingj/MemoLite/pkg/memory"
	"github.com/Jerrylingj/MemoLite/pkg/semantic"
)

// BatchItem is one write of a RememberBatch call.
type BatchItem struct {
	Key    string
	Record *memory.Record
	Source memory.Source
}

// BatchError describes one failed item of a batch.
type BatchError struct {
	// Index is the index of the item in the original batch.
	Index int

	// Key is the key the item was written under.
	Key string

	// Error is the error that occurred.
	Error error
}

// BatchResult contains the result of a RememberBatch call.
type BatchResult struct {
	// Remembered contains the results of the successful items, in batch order.
	Remembered []*RememberResult

	// Failed contains the items that failed, along with their errors.
	Failed []BatchError

	// Total is the total number of items in the batch.
	Total int
}

// RememberBatch remembers several records in one pass.
//
// The embeddings of all valid items are computed with a single EmbedBatch
// call before anything is stored. Items are then filed and versioned in
// batch order, so writes to the same key get consecutive versions in the
// order given. Invalid items are reported in Failed and skipped.
//
// If the batch embedding call fails, nothing is stored and the error is
// returned.
//
// Example:
//
//	result, err := client.RememberBatch(ctx, []core.BatchItem{
//	    {Key: "user_job", Record: job, Source: memory.SourceUser},
//	    {Key: "editor", Record: editor, Source: memory.SourceInferred},
//	})
//	fmt.Printf("remembered %d/%d\n", len(result.Remembered), result.Total)
func (c *Client) RememberBatch(ctx context.Context, items []BatchItem) (*BatchResult, error) {
	result := &BatchResult{
		Total:      len(items),
		Remembered: make([]*RememberResult, 0, len(items)),
		Failed:     make([]BatchError, 0),
	}
	if len(items) == 0 {
		return result, nil
	}

	type prepared struct {
		item BatchItem
		rec  *memory.Record
	}
	valid := make([]prepared, 0, len(items))
	for i, item := range items {
		rec, err := c.prepare(item.Key, item.Record, item.Source)
		if err != nil {
			result.Failed = append(result.Failed, BatchError{Index: i, Key: item.Key, Error: err})
			continue
		}
		valid = append(valid, prepared{item: item, rec: rec})
	}
	if len(valid) == 0 {
		return result, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	records := make([]*memory.Record, len(valid))
	for i, p := range valid {
		records[i] = p.rec
	}
	if err := c.index.AddBatch(ctx, records); err != nil {
		return nil, NewMemoryError("RememberBatch", err)
	}
	c.metrics.IndexEntries.Set(float64(c.index.Len()))

	for _, p := range valid {
		tier, scores := c.classifier.Store(p.rec)
		c.metrics.RecordsFiled.WithLabelValues(string(tier)).Inc()

		resolution, err := c.versions.AddOrUpdate(p.item.Key, p.rec, p.item.Source)
		if err != nil {
			// prepare already validated key, record and source.
			return nil, NewMemoryError("RememberBatch", fmt.Errorf("versioning %q: %w", p.item.Key, err))
		}
		c.metrics.ConflictResolutions.WithLabelValues(string(resolution.Outcome)).Inc()

		result.Remembered = append(result.Remembered, &RememberResult{
			Key:        p.item.Key,
			Record:     p.rec.Clone(),
			Tier:       tier,
			Scores:     scores,
			Resolution: resolution,
		})
	}

	c.logger.Info("batch remembered", "total", result.Total, "failed", len(result.Failed))
	return result, nil
}

// RecallStreamResult contains a batch of search results from RecallStream.
type RecallStreamResult struct {
	// Results is a batch of search hits, best first.
	Results []semantic.Result

	// BatchIndex is the index of this batch (0-based).
	BatchIndex int

	// IsLastBatch indicates whether this is the last batch.
	IsLastBatch bool

	// Error contains any error that occurred during the search.
	Error error
}

// RecallStream performs a search and delivers the ranked hits in batches.
//
// The search runs once; batching only spreads the ranked hits over several
// channel sends so large result sets can be processed incrementally. The
// channel is closed after the last batch, after an error, or when ctx is
// cancelled.
//
// Example:
//
//	for batch := range client.RecallStream(ctx, "investment", 100, 20) {
//	    if batch.Error != nil {
//	        log.Fatal(batch.Error)
//	    }
//	    for _, hit := range batch.Results {
//	        process(hit)
//	    }
//	}
func (c *Client) RecallStream(ctx context.Context, query string, topK, batchSize int) <-chan *RecallStreamResult {
	resultChan := make(chan *RecallStreamResult)

	go func() {
		defer close(resultChan)

		results, err := c.Recall(ctx, query, topK)
		if err != nil {
			select {
			case resultChan <- &RecallStreamResult{Error: err, IsLastBatch: true}:
			case <-ctx.Done():
			}
			return
		}

		if batchSize <= 0 {
			batchSize = len(results)
		}
		if len(results) == 0 {
			select {
			case resultChan <- &RecallStreamResult{Results: results, IsLastBatch: true}:
			case <-ctx.Done():
			}
			return
		}

		for i, start := 0, 0; start < len(results); i, start = i+1, start+batchSize {
			end := start + batchSize
			if end > len(results) {
				end = len(results)
			}
			batch := &RecallStreamResult{
				Results:     results[start:end],
				BatchIndex:  i,
				IsLastBatch: end == len(results),
			}
			select {
			case resultChan <- batch:
			case <-ctx.Done():
				return
			}
		}
	}()

	return resultChan
}
