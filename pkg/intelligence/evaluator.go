// Package intelligence provides the scoring, tiering and versioning logic of
// MemoLite: value evaluation, priority classification, per-key version
// history with conflict resolution, and time decay.
package intelligence

import (
	"math"
	"time"

	"github.com/Jerrylingj/MemoLite/pkg/memory"
)

// Score dimension weights. They sum to 1.0.
const (
	WeightImportance       = 0.30
	WeightFrequency        = 0.20
	WeightFutureUtility    = 0.25
	WeightTemporalValidity = 0.15
	WeightConfidence       = 0.10
)

// frequencySaturation is the frequency at which the frequency score reaches 1.0.
const frequencySaturation = 10

// defaultFutureUtility is used for types missing from futureUtilityByType.
const defaultFutureUtility = 0.5

var futureUtilityByType = map[memory.Type]float64{
	memory.TypeUserProfile:        0.95,
	memory.TypePreferences:        0.90,
	memory.TypeBehavioralPatterns: 0.85,
	memory.TypeLearnedKnowledge:   0.80,
	memory.TypeFacts:              0.60,
	memory.TypeTaskContext:        0.40,
}

// Scores is the per-dimension breakdown produced by ValueEvaluator.
// Every field is in [0,1].
type Scores struct {
	Importance       float64 `json:"importance"`
	Frequency        float64 `json:"frequency"`
	FutureUtility    float64 `json:"future_utility"`
	TemporalValidity float64 `json:"temporal_validity"`
	Confidence       float64 `json:"confidence"`

	// Total is the weighted sum of the five dimensions.
	Total float64 `json:"total"`
}

// ValueEvaluator scores a memory record along five dimensions:
//   - Importance: taken from the record
//   - Frequency: log-scaled, saturating at 10 occurrences
//   - Future utility: fixed per memory type
//   - Temporal validity: share of the validity window still remaining
//   - Confidence: taken from the record
//
// The evaluator holds no state other than its clock.
//
// Example usage:
//
//	evaluator := NewValueEvaluator()
//	scores := evaluator.Evaluate(record)
//	// scores.Total is between 0.0 and 1.0
type ValueEvaluator struct {
	// now returns the current time used for temporal validity.
	now func() time.Time
}

// EvaluatorOption configures a ValueEvaluator.
type EvaluatorOption func(*ValueEvaluator)

// WithClock replaces the evaluator clock. Mainly useful in tests.
func WithClock(now func() time.Time) EvaluatorOption {
	return func(e *ValueEvaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// NewValueEvaluator creates a new value evaluator using the wall clock.
func NewValueEvaluator(opts ...EvaluatorOption) *ValueEvaluator {
	e := &ValueEvaluator{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Weights returns the weight of each score dimension keyed by its JSON name.
func (e *ValueEvaluator) Weights() map[string]float64 {
	return map[string]float64{
		"importance":        WeightImportance,
		"frequency":         WeightFrequency,
		"future_utility":    WeightFutureUtility,
		"temporal_validity": WeightTemporalValidity,
		"confidence":        WeightConfidence,
	}
}

// Evaluate computes the score breakdown of a record.
//
// Returns zero scores for a nil record.
func (e *ValueEvaluator) Evaluate(r *memory.Record) Scores {
	if r == nil {
		return Scores{}
	}

	s := Scores{
		Importance:       memory.Clamp01(r.Importance),
		Frequency:        FrequencyScore(r.Frequency),
		FutureUtility:    FutureUtility(r.Type),
		TemporalValidity: e.TemporalValidity(r.CreatedAt, r.ValidUntil),
		Confidence:       memory.Clamp01(r.Confidence),
	}

	s.Total = s.Importance*WeightImportance +
		s.Frequency*WeightFrequency +
		s.FutureUtility*WeightFutureUtility +
		s.TemporalValidity*WeightTemporalValidity +
		s.Confidence*WeightConfidence

	// Rounding can push the sum a hair past 1.
	s.Total = memory.Clamp01(s.Total)
	return s
}

// FrequencyScore maps an occurrence count to [0,1] with diminishing returns:
//
//	min(1, ln(1+n) / ln(1+10))
//
// Counts below 1 score 0.
func FrequencyScore(frequency int) float64 {
	if frequency < 1 {
		return 0
	}
	return math.Min(1.0, math.Log1p(float64(frequency))/math.Log1p(frequencySaturation))
}

// FutureUtility returns the expected future usefulness of a memory type.
// Unknown types score 0.5.
func FutureUtility(t memory.Type) float64 {
	if v, ok := futureUtilityByType[t]; ok {
		return v
	}
	return defaultFutureUtility
}

// TemporalValidity returns the share of the validity window that remains.
//
// A nil validUntil means the fact never expires and scores 1.0. An expired
// fact, or one whose window is empty or inverted, scores 0.0.
func (e *ValueEvaluator) TemporalValidity(createdAt time.Time, validUntil *time.Time) float64 {
	if validUntil == nil {
		return 1.0
	}

	now := e.now()
	if now.After(*validUntil) {
		return 0.0
	}

	total := validUntil.Sub(createdAt)
	if total <= 0 {
		return 0.0
	}

	remaining := validUntil.Sub(now)
	return memory.Clamp01(remaining.Seconds() / total.Seconds())
}
