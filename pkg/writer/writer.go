// Package writer implements the write strategies that feed records into the
// memory pipeline and keeps a log of every write.
//
// Four strategies are supported:
//   - realtime: critical facts written immediately under a caller-chosen key
//   - batch: records buffered and written together on FlushBatch
//   - event: written when an external event fires (task completed, ...)
//   - feedback: written on explicit user instruction, with source "user"
package writer

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Jerrylingj/MemoLite/pkg/memory"
)

// Strategy names how a record reached the pipeline.
type Strategy string

const (
	StrategyRealtime Strategy = "realtime"
	StrategyBatch    Strategy = "batch"
	StrategyEvent    Strategy = "event"
	StrategyFeedback Strategy = "feedback"
)

// logContentRunes bounds the content excerpt kept in the write log.
const logContentRunes = 50

// SinkFunc stores one record under key. The client pipeline is the usual sink.
type SinkFunc func(ctx context.Context, key string, r *memory.Record, source memory.Source) error

// LogEntry describes one successful write.
type LogEntry struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Strategy  Strategy               `json:"strategy"`
	Key       string                 `json:"key"`
	Type      memory.Type            `json:"memory_type"`
	Content   string                 `json:"content"`
	Extra     map[string]interface{} `json:"extra"`
}

// Writer routes records to a sink according to a write strategy.
//
// A Writer is safe for concurrent use. Writes are forwarded to the sink one
// at a time, so a sink never sees two writes from the same Writer at once.
type Writer struct {
	mu     sync.Mutex
	sink   SinkFunc
	now    func() time.Time
	buffer []*memory.Record
	log    []LogEntry

	// onWrite, if set, is called after every logged write.
	onWrite func(Strategy)
}

// Option configures a Writer.
type Option func(*Writer)

// WithClock replaces the clock used for log timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		if now != nil {
			w.now = now
		}
	}
}

// WithWriteHook registers a callback invoked after each logged write.
func WithWriteHook(fn func(Strategy)) Option {
	return func(w *Writer) {
		w.onWrite = fn
	}
}

// New creates a writer forwarding to sink.
func New(sink SinkFunc, opts ...Option) *Writer {
	w := &Writer{
		sink: sink,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteRealtime stores a record immediately under key.
func (w *Writer) WriteRealtime(ctx context.Context, key string, r *memory.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.write(ctx, StrategyRealtime, key, r, memory.SourceSystem, nil)
}

// AddToBatch buffers a record until the next FlushBatch.
// Returns the number of buffered records.
func (w *Writer) AddToBatch(r *memory.Record) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if r != nil {
		w.buffer = append(w.buffer, r)
	}
	return len(w.buffer)
}

// Pending returns the number of buffered records.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}

// FlushBatch writes every buffered record under a generated key.
//
// An empty buffer is a no-op. On error the records not yet written stay
// buffered. Returns the number of records written.
func (w *Writer) FlushBatch(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	written := 0
	for len(w.buffer) > 0 {
		r := w.buffer[0]
		key := fmt.Sprintf("batch_%s", uuid.NewString())
		if err := w.write(ctx, StrategyBatch, key, r, memory.SourceSystem, nil); err != nil {
			return written, err
		}
		w.buffer = w.buffer[1:]
		written++
	}
	w.buffer = nil
	return written, nil
}

// WriteOnEvent stores a record triggered by an external event.
func (w *Writer) WriteOnEvent(ctx context.Context, eventType string, r *memory.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := fmt.Sprintf("event_%s_%s", eventType, uuid.NewString())
	return w.write(ctx, StrategyEvent, key, r, memory.SourceSystem, map[string]interface{}{
		"event": eventType,
	})
}

// WriteFromFeedback stores a record the user explicitly asked to remember.
// Feedback writes carry source "user" and so win any conflict.
func (w *Writer) WriteFromFeedback(ctx context.Context, command string, r *memory.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := fmt.Sprintf("feedback_%s", uuid.NewString())
	return w.write(ctx, StrategyFeedback, key, r, memory.SourceUser, map[string]interface{}{
		"command": command,
	})
}

func (w *Writer) write(ctx context.Context, strategy Strategy, key string, r *memory.Record, source memory.Source, extra map[string]interface{}) error {
	if r == nil {
		return fmt.Errorf("%w: nil record", memory.ErrInvalidInput)
	}
	if err := w.sink(ctx, key, r, source); err != nil {
		return fmt.Errorf("%s write: %w", strategy, err)
	}

	if extra == nil {
		extra = map[string]interface{}{}
	}
	w.log = append(w.log, LogEntry{
		ID:        uuid.NewString(),
		Timestamp: w.now(),
		Strategy:  strategy,
		Key:       key,
		Type:      r.Type,
		Content:   excerpt(r.Content, logContentRunes),
		Extra:     extra,
	})
	if w.onWrite != nil {
		w.onWrite(strategy)
	}
	return nil
}

func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Log returns a copy of the write log, oldest first.
func (w *Writer) Log() []LogEntry {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]LogEntry, len(w.log))
	copy(out, w.log)
	return out
}

// Statistics counts logged writes per strategy.
func (w *Writer) Statistics() map[Strategy]int {
	w.mu.Lock()
	defer w.mu.Unlock()

	stats := make(map[Strategy]int)
	for _, e := range w.log {
		stats[e.Strategy]++
	}
	return stats
}
