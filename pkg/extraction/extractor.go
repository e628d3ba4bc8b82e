// Package extraction turns free text into candidate memory records.
//
// The memory core treats extraction as a black box: it only ever receives
// well-formed records. Candidates with an unknown type or a missing or
// out-of-range field are rejected here, before a record is built.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/Jerrylingj/MemoLite/pkg/llm"
	"github.com/Jerrylingj/MemoLite/pkg/memory"
)

var (
	// ErrInvalidResponse indicates that the model reply contained no JSON array.
	ErrInvalidResponse = errors.New("invalid extraction response")

	// ErrLLMOperation indicates that the LLM call failed.
	ErrLLMOperation = errors.New("llm operation failed")
)

// Extractor turns free text into memory records.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]*memory.Record, error)
}

// Candidate is one memory proposed by the model, before validation.
type Candidate struct {
	Content          string                 `json:"content" validate:"required,notblank"`
	MemoryType       string                 `json:"memory_type" validate:"required,memtype"`
	Importance       *float64               `json:"importance" validate:"required,gte=0,lte=1"`
	Confidence       *float64               `json:"confidence" validate:"required,gte=0,lte=1"`
	TemporalValidity *string                `json:"temporal_validity" validate:"omitempty,validtime"`
	Metadata         map[string]interface{} `json:"metadata"`
}

// timeLayouts are tried in order when parsing temporal_validity.
// Layouts without a zone are read in local time.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

// NewValidator returns a validator with the "notblank", "memtype" and
// "validtime" rules registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	_ = v.RegisterValidation("memtype", func(fl validator.FieldLevel) bool {
		_, err := memory.ParseType(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("validtime", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if strings.TrimSpace(s) == "" {
			return true
		}
		_, err := parseTime(s)
		return err == nil
	})
	return v
}

// ToRecord builds a record from a validated candidate, created at now.
func (c Candidate) ToRecord(now time.Time) (*memory.Record, error) {
	typ, err := memory.ParseType(c.MemoryType)
	if err != nil {
		return nil, err
	}
	if c.Importance == nil || c.Confidence == nil {
		return nil, fmt.Errorf("%w: importance and confidence are required", memory.ErrInvalidInput)
	}

	opts := []memory.RecordOption{
		memory.WithCreatedAt(now),
		memory.WithImportance(*c.Importance),
		memory.WithConfidence(*c.Confidence),
		memory.WithMetadata(c.Metadata),
	}
	if c.TemporalValidity != nil && strings.TrimSpace(*c.TemporalValidity) != "" {
		until, err := parseTime(*c.TemporalValidity)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", memory.ErrInvalidInput, err)
		}
		opts = append(opts, memory.WithValidUntil(until))
	}

	content := strings.TrimSpace(c.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: blank content", memory.ErrInvalidInput)
	}
	return memory.NewRecord(content, typ, opts...), nil
}

// LLMExtractor asks a chat model for memory candidates.
//
// Example usage:
//
//	extractor := extraction.NewLLMExtractor(provider)
//	records, err := extractor.Extract(ctx, "I am a data scientist working on finance")
type LLMExtractor struct {
	llm      llm.Provider
	validate *validator.Validate
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures an LLMExtractor.
type Option func(*LLMExtractor)

// WithLogger sets the logger used for rejected candidates.
func WithLogger(logger *slog.Logger) Option {
	return func(e *LLMExtractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock replaces the clock used for CreatedAt and for today's date in the prompt.
func WithClock(now func() time.Time) Option {
	return func(e *LLMExtractor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewLLMExtractor creates an extractor backed by provider.
func NewLLMExtractor(provider llm.Provider, opts ...Option) *LLMExtractor {
	e := &LLMExtractor{
		llm:      provider,
		validate: NewValidator(),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the records the model found worth remembering in text.
// Blank text yields no records and no model call.
func (e *LLMExtractor) Extract(ctx context.Context, text string) ([]*memory.Record, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	now := e.now()
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(now)},
		{Role: llm.RoleUser, Content: fmt.Sprintf("User input: %s", text)},
	}

	response, err := e.llm.GenerateWithMessages(ctx, messages, llm.WithTemperature(0))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLMOperation, err)
	}

	return e.ParseResponse(response, now)
}

// ParseResponse decodes a model reply into records created at now.
//
// Invalid candidates are dropped and logged. An empty array yields no
// records. A reply without a decodable JSON array is ErrInvalidResponse.
func (e *LLMExtractor) ParseResponse(response string, now time.Time) ([]*memory.Record, error) {
	raw, err := decodeArray(response)
	if err != nil {
		return nil, err
	}

	records := make([]*memory.Record, 0, len(raw))
	for i, item := range raw {
		var c Candidate
		if err := json.Unmarshal(item, &c); err != nil {
			e.logger.Warn("extraction candidate rejected", "index", i, "error", err)
			continue
		}
		if err := e.validate.Struct(c); err != nil {
			e.logger.Warn("extraction candidate rejected", "index", i, "error", err)
			continue
		}
		rec, err := c.ToRecord(now)
		if err != nil {
			e.logger.Warn("extraction candidate rejected", "index", i, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// decodeArray strips a surrounding code fence and decodes the first JSON
// array in the reply. Text after the array is ignored.
func decodeArray(response string) ([]json.RawMessage, error) {
	response = stripFence(response)

	var lastErr error
	for offset := 0; ; {
		start := strings.Index(response[offset:], "[")
		if start < 0 {
			break
		}
		start += offset

		var raw []json.RawMessage
		err := json.NewDecoder(strings.NewReader(response[start:])).Decode(&raw)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		offset = start + 1
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, lastErr)
	}
	return nil, fmt.Errorf("%w: no JSON array found", ErrInvalidResponse)
}

// stripFence removes a leading ```/```json line and a trailing ``` from a
// fenced reply. Fences inside the body are left alone.
func stripFence(response string) string {
	response = strings.TrimSpace(response)
	if !strings.HasPrefix(response, "```") {
		return response
	}
	if nl := strings.IndexByte(response, '\n'); nl >= 0 {
		response = response[nl+1:]
	} else {
		response = strings.TrimPrefix(response, "```")
	}
	response = strings.TrimSpace(response)
	return strings.TrimSpace(strings.TrimSuffix(response, "```"))
}
