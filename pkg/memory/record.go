package memory

import (
	"time"
)

// Construction defaults applied by NewRecord.
const (
	DefaultImportance = 0.5
	DefaultFrequency  = 1
	DefaultConfidence = 0.8
)

// Record is a single stored fact with scoring and lifecycle metadata.
//
// A Record is owned by exactly one store at a time. Components that keep a
// record (a tier collection, the semantic index, the current slot of a key)
// hold their own Clone, so mutating one never shows through another.
type Record struct {
	// ID is the unique identifier of the record (0 until assigned).
	ID int64 `json:"id,omitempty" yaml:"id,omitempty"`

	// Content is the text of the fact.
	Content string `json:"content" yaml:"content"`

	// Type is the memory category.
	Type Type `json:"memory_type" yaml:"memory_type"`

	// CreatedAt is when the fact was recorded.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// Importance is in [0,1]. Lowered over time by decay.
	Importance float64 `json:"importance" yaml:"importance"`

	// Frequency counts how often the fact was reinforced. Always >= 1.
	Frequency int `json:"frequency" yaml:"frequency"`

	// Confidence is in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// ValidUntil is the optional expiry of the fact.
	ValidUntil *time.Time `json:"valid_until,omitempty" yaml:"valid_until,omitempty"`

	// Metadata holds structured extras. Never nil on constructed records.
	Metadata map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// RecordOption configures a Record built by NewRecord.
type RecordOption func(*Record)

// WithImportance sets the importance (clamped to [0,1]).
func WithImportance(v float64) RecordOption {
	return func(r *Record) {
		r.Importance = v
	}
}

// WithConfidence sets the confidence (clamped to [0,1]).
func WithConfidence(v float64) RecordOption {
	return func(r *Record) {
		r.Confidence = v
	}
}

// WithFrequency sets the frequency (raised to 1 if lower).
func WithFrequency(n int) RecordOption {
	return func(r *Record) {
		r.Frequency = n
	}
}

// WithCreatedAt sets the creation timestamp.
func WithCreatedAt(t time.Time) RecordOption {
	return func(r *Record) {
		r.CreatedAt = t
	}
}

// WithValidUntil sets the expiry timestamp.
func WithValidUntil(t time.Time) RecordOption {
	return func(r *Record) {
		r.ValidUntil = &t
	}
}

// WithMetadata merges the given entries into the record metadata.
func WithMetadata(md map[string]interface{}) RecordOption {
	return func(r *Record) {
		for k, v := range md {
			r.Metadata[k] = v
		}
	}
}

// NewRecord creates a record with the construction defaults
// (importance 0.5, frequency 1, confidence 0.8, created now) and applies opts.
//
// Example:
//
//	rec := memory.NewRecord("User is a financial analyst", memory.TypeUserProfile,
//	    memory.WithImportance(0.9),
//	    memory.WithConfidence(1.0),
//	)
func NewRecord(content string, typ Type, opts ...RecordOption) *Record {
	r := &Record{
		Content:    content,
		Type:       typ,
		CreatedAt:  time.Now(),
		Importance: DefaultImportance,
		Frequency:  DefaultFrequency,
		Confidence: DefaultConfidence,
		Metadata:   make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.Normalize()
	return r
}

// Normalize clamps importance and confidence to [0,1], raises frequency to
// at least 1 and allocates metadata if nil.
func (r *Record) Normalize() {
	r.Importance = Clamp01(r.Importance)
	r.Confidence = Clamp01(r.Confidence)
	if r.Frequency < DefaultFrequency {
		r.Frequency = DefaultFrequency
	}
	if r.Metadata == nil {
		r.Metadata = make(map[string]interface{})
	}
}

// Clone returns a deep copy of the record.
//
// Metadata is copied one level deep; nested maps and slices are shared.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.ValidUntil != nil {
		v := *r.ValidUntil
		c.ValidUntil = &v
	}
	c.Metadata = make(map[string]interface{}, len(r.Metadata))
	for k, v := range r.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

// WithFrequencyIncremented returns a copy of the record with frequency + 1.
func (r *Record) WithFrequencyIncremented() *Record {
	c := r.Clone()
	c.Frequency++
	return c
}

// Clamp01 limits v to the closed interval [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// VersionRecord is an immutable snapshot of one proposed write to a key.
//
// It does not carry the memory type: the type is a property of the key.
type VersionRecord struct {
	// Version is the 1-based position of this entry in the key's log.
	Version int `json:"version"`

	// Content is the proposed content.
	Content string `json:"content"`

	// Timestamp is the creation time of the proposed record.
	Timestamp time.Time `json:"timestamp"`

	// Confidence is the confidence of the proposed record.
	Confidence float64 `json:"confidence"`

	// Source tags where the proposal came from.
	Source Source `json:"source"`
}
