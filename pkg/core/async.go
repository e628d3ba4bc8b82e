package core

import (
	"context"
	"sync"

	"github.com/Jerrylingj/MemoLite/pkg/memory"
	"github.com/Jerrylingj/MemoLite/pkg/semantic"
)

// RememberAsyncResult carries the outcome of RememberAsync.
type RememberAsyncResult struct {
	Result *RememberResult
	Error  error
}

// RecallAsyncResult carries the outcome of RecallAsync.
type RecallAsyncResult struct {
	Results []semantic.Result
	Error   error
}

// IngestAsyncResult carries the outcome of IngestAsync.
type IngestAsyncResult struct {
	Results []*RememberResult
	Error   error
}

// AsyncClient provides asynchronous MemoLite operations.
//
// It wraps the synchronous Client and executes each operation in its own
// goroutine. Every async method returns a buffered channel that receives
// exactly one result and is then closed. Writes to the same key issued
// concurrently are versioned in the order they acquire the client lock.
//
// Example:
//
//	asyncClient, _ := core.NewAsyncClient(core.DefaultConfig())
//	defer asyncClient.Close()
//
//	resultChan := asyncClient.RememberAsync(ctx, "user_job", rec, memory.SourceUser)
//	result := <-resultChan
//	if result.Error != nil {
//	    log.Fatal(result.Error)
//	}
type AsyncClient struct {
	*Client
	wg sync.WaitGroup
}

// NewAsyncClient creates a new asynchronous MemoLite client.
//
// Parameters:
//   - cfg: MemoLite configuration
//   - opts: Client options
//
// Returns:
//   - *AsyncClient: The asynchronous client instance
//   - error: Error if configuration is invalid or initialization fails
func NewAsyncClient(cfg *Config, opts ...ClientOption) (*AsyncClient, error) {
	client, err := NewClient(cfg, opts...)
	if err != nil {
		return nil, err
	}

	return &AsyncClient{
		Client: client,
	}, nil
}

// RememberAsync remembers a record asynchronously.
func (ac *AsyncClient) RememberAsync(ctx context.Context, key string, r *memory.Record, source memory.Source) <-chan *RememberAsyncResult {
	resultChan := make(chan *RememberAsyncResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		result, err := ac.Remember(ctx, key, r, source)
		resultChan <- &RememberAsyncResult{
			Result: result,
			Error:  err,
		}
		close(resultChan)
	}()

	return resultChan
}

// RecallAsync searches the semantic index asynchronously.
func (ac *AsyncClient) RecallAsync(ctx context.Context, query string, topK int) <-chan *RecallAsyncResult {
	resultChan := make(chan *RecallAsyncResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		results, err := ac.Recall(ctx, query, topK)
		resultChan <- &RecallAsyncResult{
			Results: results,
			Error:   err,
		}
		close(resultChan)
	}()

	return resultChan
}

// IngestAsync extracts and remembers records from text asynchronously.
func (ac *AsyncClient) IngestAsync(ctx context.Context, text string) <-chan *IngestAsyncResult {
	resultChan := make(chan *IngestAsyncResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		results, err := ac.Ingest(ctx, text)
		resultChan <- &IngestAsyncResult{
			Results: results,
			Error:   err,
		}
		close(resultChan)
	}()

	return resultChan
}

// Wait blocks until every operation started so far has finished.
func (ac *AsyncClient) Wait() {
	ac.wg.Wait()
}

// Close waits for pending operations and then closes the client.
func (ac *AsyncClient) Close() error {
	ac.Wait()
	return ac.Client.Close()
}
