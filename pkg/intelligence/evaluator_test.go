package intelligence_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Jerrylingj/MemoLite/pkg/intelligence"
	"github.com/Jerrylingj/MemoLite/pkg/memory"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func TestWeightsSumToOne(t *testing.T) {
	var sum float64
	for _, w := range intelligence.NewValueEvaluator().Weights() {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestFrequencyScore(t *testing.T) {
	assert.Equal(t, 0.0, intelligence.FrequencyScore(0))
	assert.Equal(t, 0.0, intelligence.FrequencyScore(-3))
	assert.InDelta(t, math.Log(2)/math.Log(11), intelligence.FrequencyScore(1), 1e-12)
	assert.Equal(t, 1.0, intelligence.FrequencyScore(10))
	assert.Equal(t, 1.0, intelligence.FrequencyScore(1000))

	prev := 0.0
	for n := 1; n <= 50; n++ {
		s := intelligence.FrequencyScore(n)
		assert.GreaterOrEqual(t, s, prev, "frequency %d", n)
		prev = s
	}
}

func TestFutureUtility(t *testing.T) {
	tests := []struct {
		typ  memory.Type
		want float64
	}{
		{memory.TypeUserProfile, 0.95},
		{memory.TypePreferences, 0.90},
		{memory.TypeBehavioralPatterns, 0.85},
		{memory.TypeLearnedKnowledge, 0.80},
		{memory.TypeFacts, 0.60},
		{memory.TypeTaskContext, 0.40},
		{memory.Type("SOMETHING_ELSE"), 0.50},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.want, intelligence.FutureUtility(tt.typ))
		})
	}
}

func TestTemporalValidity(t *testing.T) {
	e := intelligence.NewValueEvaluator(intelligence.WithClock(fixedClock))
	at := func(d time.Duration) *time.Time {
		v := fixedNow.Add(d)
		return &v
	}

	tests := []struct {
		name       string
		createdAt  time.Time
		validUntil *time.Time
		want       float64
	}{
		{name: "no expiry", createdAt: fixedNow.Add(-time.Hour), validUntil: nil, want: 1.0},
		{name: "expires now", createdAt: fixedNow.Add(-time.Hour), validUntil: at(0), want: 0.0},
		{name: "expired", createdAt: fixedNow.Add(-2 * time.Hour), validUntil: at(-time.Hour), want: 0.0},
		{name: "half way", createdAt: fixedNow.Add(-time.Hour), validUntil: at(time.Hour), want: 0.5},
		{name: "just created", createdAt: fixedNow, validUntil: at(time.Hour), want: 1.0},
		{name: "inverted window", createdAt: fixedNow.Add(2 * time.Hour), validUntil: at(time.Hour), want: 0.0},
		{name: "created in the future", createdAt: fixedNow.Add(30 * time.Minute), validUntil: at(time.Hour), want: 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, e.TemporalValidity(tt.createdAt, tt.validUntil), 1e-9)
		})
	}
}

func TestEvaluate(t *testing.T) {
	e := intelligence.NewValueEvaluator(intelligence.WithClock(fixedClock))
	r := memory.NewRecord("User is a financial analyst", memory.TypeUserProfile,
		memory.WithImportance(0.9),
		memory.WithConfidence(1.0),
		memory.WithCreatedAt(fixedNow),
	)

	s := e.Evaluate(r)

	assert.Equal(t, 0.9, s.Importance)
	assert.InDelta(t, math.Log(2)/math.Log(11), s.Frequency, 1e-12)
	assert.Equal(t, 0.95, s.FutureUtility)
	assert.Equal(t, 1.0, s.TemporalValidity)
	assert.Equal(t, 1.0, s.Confidence)

	want := 0.9*0.30 + s.Frequency*0.20 + 0.95*0.25 + 1.0*0.15 + 1.0*0.10
	assert.InDelta(t, want, s.Total, 1e-12)
	assert.InDelta(t, 0.8153, s.Total, 1e-4)
}

func TestEvaluateNil(t *testing.T) {
	assert.Equal(t, intelligence.Scores{}, intelligence.NewValueEvaluator().Evaluate(nil))
}

func TestEvaluateTotalBounded(t *testing.T) {
	e := intelligence.NewValueEvaluator(intelligence.WithClock(fixedClock))
	expired := fixedNow.Add(-time.Hour)

	for _, typ := range memory.AllTypes() {
		for _, imp := range []float64{-1, 0, 0.5, 1, 3} {
			for _, freq := range []int{0, 1, 10, 100} {
				for _, until := range []*time.Time{nil, &expired} {
					r := &memory.Record{
						Type:       typ,
						Importance: imp,
						Confidence: imp,
						Frequency:  freq,
						CreatedAt:  fixedNow.Add(-2 * time.Hour),
						ValidUntil: until,
					}
					total := e.Evaluate(r).Total
					assert.GreaterOrEqual(t, total, 0.0)
					assert.LessOrEqual(t, total, 1.0)
				}
			}
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, intelligence.CosineSimilarity([]float64{1, 2}, []float64{2, 4}), 1e-12)
	assert.InDelta(t, 0.0, intelligence.CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.InDelta(t, -1.0, intelligence.CosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-12)
	assert.Equal(t, 0.0, intelligence.CosineSimilarity([]float64{1}, []float64{1, 2}))
	assert.Equal(t, 0.0, intelligence.CosineSimilarity([]float64{0, 0}, []float64{1, 2}))
}

func TestNormalizeVector(t *testing.T) {
	v := intelligence.NormalizeVector([]float64{3, 4})
	assert.InDeltaSlice(t, []float64{0.6, 0.8}, v, 1e-12)
	assert.Equal(t, []float64{0, 0}, intelligence.NormalizeVector([]float64{0, 0}))
}
