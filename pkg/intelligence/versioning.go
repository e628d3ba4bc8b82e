package intelligence

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/Jerrylingj/MemoLite/pkg/memory"
)

// DefaultDecayRate is the share of importance lost per day.
const DefaultDecayRate = 0.10

// Outcome describes how a write to a key was resolved.
type Outcome string

const (
	// OutcomeCreated means the key was absent and the write created it.
	OutcomeCreated Outcome = "created"

	// OutcomeUserOverride means a user-sourced write replaced the current value.
	OutcomeUserOverride Outcome = "user_override"

	// OutcomeHigherConfidence means the new write was more confident and won.
	OutcomeHigherConfidence Outcome = "higher_confidence"

	// OutcomeKeptHigherConfidence means the current value was more confident;
	// it was kept and its frequency incremented.
	OutcomeKeptHigherConfidence Outcome = "kept_higher_confidence"

	// OutcomeNewerTimestamp means confidences tied and the newer write won.
	OutcomeNewerTimestamp Outcome = "newer_timestamp"

	// OutcomeKeptExisting means confidences tied and the current value was
	// at least as recent, so it was kept unchanged.
	OutcomeKeptExisting Outcome = "kept_existing"
)

// Accepted reports whether the proposed write became the current value.
func (o Outcome) Accepted() bool {
	switch o {
	case OutcomeCreated, OutcomeUserOverride, OutcomeHigherConfidence, OutcomeNewerTimestamp:
		return true
	}
	return false
}

// Resolution is the result of VersionManager.AddOrUpdate.
type Resolution struct {
	Key     string  `json:"key"`
	Version int     `json:"version"`
	Outcome Outcome `json:"outcome"`
}

// versionLog is the append-only history of one key plus its resolved value.
type versionLog struct {
	versions []memory.VersionRecord
	current  *memory.Record
}

// VersionManager keeps an append-only version log per logical key, resolves
// conflicting writes and applies time decay to the resolved values.
//
// Every proposal is logged, including the ones that lose conflict
// resolution, so the log is a complete audit trail. A key never returns to
// the absent state once written.
//
// Conflict policy, in order:
//  1. source "user" always wins
//  2. higher confidence wins
//  3. lower confidence loses; the surviving value gets frequency + 1
//  4. equal confidence: later timestamp wins, exact ties keep the old value
//
// A VersionManager is not safe for concurrent use.
type VersionManager struct {
	logs      map[string]*versionLog
	decayRate float64
	logger    *slog.Logger
}

// VersionManagerOption configures a VersionManager.
type VersionManagerOption func(*VersionManager)

// WithDecayRate sets the per-day decay rate. Values outside (0,1) are ignored.
func WithDecayRate(rate float64) VersionManagerOption {
	return func(m *VersionManager) {
		if rate > 0 && rate < 1 {
			m.decayRate = rate
		}
	}
}

// WithVersionLogger sets the logger used for conflict and decay events.
func WithVersionLogger(logger *slog.Logger) VersionManagerOption {
	return func(m *VersionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewVersionManager creates an empty version manager with a 10% daily decay rate.
func NewVersionManager(opts ...VersionManagerOption) *VersionManager {
	m := &VersionManager{
		logs:      make(map[string]*versionLog),
		decayRate: DefaultDecayRate,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DecayRate returns the per-day decay rate.
func (m *VersionManager) DecayRate() float64 {
	return m.decayRate
}

// AddOrUpdate records a proposed write to key and resolves it against the
// current value.
//
// The version entry is appended before resolution, so version numbers for
// a key are 1, 2, 3, ... whatever the outcome. The manager stores its own
// copy of r.
//
// Returns memory.ErrInvalidInput for an empty key, a nil record or an
// unknown source; nothing is recorded in that case.
func (m *VersionManager) AddOrUpdate(key string, r *memory.Record, source memory.Source) (Resolution, error) {
	if key == "" {
		return Resolution{}, fmt.Errorf("%w: empty key", memory.ErrInvalidInput)
	}
	if r == nil {
		return Resolution{}, fmt.Errorf("%w: nil record", memory.ErrInvalidInput)
	}
	if !source.Valid() {
		return Resolution{}, fmt.Errorf("%w: unknown source %q", memory.ErrInvalidInput, source)
	}

	log, ok := m.logs[key]
	if !ok {
		log = &versionLog{}
		m.logs[key] = log
	}

	version := len(log.versions) + 1
	log.versions = append(log.versions, memory.VersionRecord{
		Version:    version,
		Content:    r.Content,
		Timestamp:  r.CreatedAt,
		Confidence: r.Confidence,
		Source:     source,
	})

	proposed := r.Clone()
	if log.current == nil {
		log.current = proposed
		m.logger.Debug("memory created", "key", key, "version", version)
		return Resolution{Key: key, Version: version, Outcome: OutcomeCreated}, nil
	}

	winner, outcome := resolveConflict(log.current, proposed, source)
	log.current = winner

	m.logger.Info("memory conflict resolved",
		"key", key,
		"version", version,
		"outcome", outcome,
		"current", winner.Content,
	)
	return Resolution{Key: key, Version: version, Outcome: outcome}, nil
}

// resolveConflict picks the value that becomes current. When the old value
// survives a less confident proposal, a new value with frequency + 1 is
// returned instead of mutating old in place.
func resolveConflict(old, proposed *memory.Record, source memory.Source) (*memory.Record, Outcome) {
	if source == memory.SourceUser {
		return proposed, OutcomeUserOverride
	}

	switch {
	case proposed.Confidence > old.Confidence:
		return proposed, OutcomeHigherConfidence
	case proposed.Confidence < old.Confidence:
		return old.WithFrequencyIncremented(), OutcomeKeptHigherConfidence
	}

	if proposed.CreatedAt.After(old.CreatedAt) {
		return proposed, OutcomeNewerTimestamp
	}
	return old, OutcomeKeptExisting
}

// ApplyTimeDecay lowers the importance of every current value by
//
//	importance * (1 - decayRate) ^ daysPassed
//
// Permanent types (user profile, preferences) are skipped. Frequency and
// confidence are left untouched. A non-positive daysPassed is a no-op.
//
// Returns the number of records whose importance was decayed.
func (m *VersionManager) ApplyTimeDecay(daysPassed float64) int {
	if daysPassed <= 0 {
		return 0
	}

	factor := math.Pow(1-m.decayRate, daysPassed)
	decayed := 0
	for key, log := range m.logs {
		cur := log.current
		if cur.Type.Permanent() {
			continue
		}
		before := cur.Importance
		cur.Importance = memory.Clamp01(before * factor)
		decayed++

		m.logger.Debug("memory decayed",
			"key", key,
			"before", before,
			"after", cur.Importance,
		)
	}

	m.logger.Info("time decay applied", "days", daysPassed, "decayed", decayed)
	return decayed
}

// Rollback replaces the current value of key with the state of a past version.
//
// The restored record takes content, timestamp and confidence from the
// version entry and the type and ID from the current value; importance,
// frequency and metadata are reset to construction defaults. No version
// entry is appended.
//
// Returns false, without changing anything, if key is unknown or version is
// outside [1, len(history)].
func (m *VersionManager) Rollback(key string, version int) bool {
	log, ok := m.logs[key]
	if !ok || version < 1 || version > len(log.versions) {
		return false
	}

	target := log.versions[version-1]
	restored := memory.NewRecord(target.Content, log.current.Type,
		memory.WithCreatedAt(target.Timestamp),
		memory.WithConfidence(target.Confidence),
	)
	restored.ID = log.current.ID
	log.current = restored

	m.logger.Info("memory rolled back", "key", key, "version", version)
	return true
}

// Current returns a copy of the resolved value of key.
func (m *VersionManager) Current(key string) (*memory.Record, bool) {
	log, ok := m.logs[key]
	if !ok {
		return nil, false
	}
	return log.current.Clone(), true
}

// CurrentByType returns copies of the current values whose type is typ,
// ordered by key. Unknown types yield an empty slice.
func (m *VersionManager) CurrentByType(typ memory.Type) []*memory.Record {
	out := make([]*memory.Record, 0)
	for _, key := range m.Keys() {
		if cur := m.logs[key].current; cur.Type == typ {
			out = append(out, cur.Clone())
		}
	}
	return out
}

// History returns a copy of the version log of key, oldest first.
// Unknown keys yield an empty slice.
func (m *VersionManager) History(key string) []memory.VersionRecord {
	log, ok := m.logs[key]
	if !ok {
		return []memory.VersionRecord{}
	}
	out := make([]memory.VersionRecord, len(log.versions))
	copy(out, log.versions)
	return out
}

// Keys returns all known keys in lexical order.
func (m *VersionManager) Keys() []string {
	keys := make([]string, 0, len(m.logs))
	for k := range m.logs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of known keys.
func (m *VersionManager) Len() int {
	return len(m.logs)
}
