package intelligence

import (
	"log/slog"

	"github.com/Jerrylingj/MemoLite/pkg/memory"
)

// Tier thresholds on the total score.
const (
	HighThreshold   = 0.70
	MediumThreshold = 0.40
)

// Statistics counts the records filed in each tier.
type Statistics struct {
	LongTerm  int `json:"long_term"`
	MidTerm   int `json:"mid_term"`
	ShortTerm int `json:"short_term"`
	Total     int `json:"total"`
}

// PriorityClassifier files records into three tiers by total score:
//   - HIGH (total >= 0.70) -> long-term
//   - MEDIUM (total >= 0.40) -> mid-term
//   - LOW -> short-term
//
// Tier membership reflects the score at filing time. Records are never
// removed or moved once filed, even if their importance later decays.
//
// A PriorityClassifier is not safe for concurrent use.
type PriorityClassifier struct {
	evaluator *ValueEvaluator
	logger    *slog.Logger

	longTerm  []*memory.Record
	midTerm   []*memory.Record
	shortTerm []*memory.Record
}

// NewPriorityClassifier creates a classifier scoring with evaluator.
// A nil logger uses slog.Default().
func NewPriorityClassifier(evaluator *ValueEvaluator, logger *slog.Logger) *PriorityClassifier {
	if evaluator == nil {
		evaluator = NewValueEvaluator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PriorityClassifier{
		evaluator: evaluator,
		logger:    logger,
	}
}

// Classify returns the tier of a record without filing it.
func (c *PriorityClassifier) Classify(r *memory.Record) memory.Tier {
	return tierFor(c.evaluator.Evaluate(r).Total)
}

func tierFor(total float64) memory.Tier {
	switch {
	case total >= HighThreshold:
		return memory.TierHigh
	case total >= MediumThreshold:
		return memory.TierMedium
	default:
		return memory.TierLow
	}
}

// Store classifies a record and appends a copy to its tier collection.
//
// Returns the tier and the score breakdown used to pick it.
func (c *PriorityClassifier) Store(r *memory.Record) (memory.Tier, Scores) {
	scores := c.evaluator.Evaluate(r)
	tier := tierFor(scores.Total)

	stored := r.Clone()
	switch tier {
	case memory.TierHigh:
		c.longTerm = append(c.longTerm, stored)
	case memory.TierMedium:
		c.midTerm = append(c.midTerm, stored)
	default:
		c.shortTerm = append(c.shortTerm, stored)
	}

	c.logger.Debug("memory filed",
		"tier", tier,
		"store", tier.Store(),
		"total_score", scores.Total,
		"type", r.Type,
	)
	return tier, scores
}

// Statistics returns the number of records in each tier.
func (c *PriorityClassifier) Statistics() Statistics {
	return Statistics{
		LongTerm:  len(c.longTerm),
		MidTerm:   len(c.midTerm),
		ShortTerm: len(c.shortTerm),
		Total:     len(c.longTerm) + len(c.midTerm) + len(c.shortTerm),
	}
}

// Records returns copies of the records filed in a tier, in insertion order.
func (c *PriorityClassifier) Records(tier memory.Tier) []*memory.Record {
	var src []*memory.Record
	switch tier {
	case memory.TierHigh:
		src = c.longTerm
	case memory.TierMedium:
		src = c.midTerm
	case memory.TierLow:
		src = c.shortTerm
	}

	out := make([]*memory.Record, len(src))
	for i, r := range src {
		out[i] = r.Clone()
	}
	return out
}
