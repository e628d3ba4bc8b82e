// Package memory defines the data model shared by every MemoLite component.
//
// It holds the closed set of memory types, the Record stored by each
// component, the version snapshot kept per logical key and the priority
// tiers a record can be filed into.
package memory

import (
	"fmt"
	"strings"
)

// Type is the category of a memory record.
//
// The set is closed: every lookup table keyed by Type must handle all of
// the constants below, and AllTypes returns them in declaration order.
type Type string

const (
	// TypeUserProfile holds identity, profession and background facts.
	TypeUserProfile Type = "USER_PROFILE"

	// TypeFacts holds concrete facts, dates and figures from conversations.
	TypeFacts Type = "FACTS"

	// TypePreferences holds user preferences, habits and style choices.
	TypePreferences Type = "PREFERENCES"

	// TypeBehavioralPatterns holds recurring user behaviour.
	TypeBehavioralPatterns Type = "BEHAVIORAL_PATTERNS"

	// TypeTaskContext holds the state of ongoing tasks and projects.
	TypeTaskContext Type = "TASK_CONTEXT"

	// TypeLearnedKnowledge holds knowledge learned during conversations.
	TypeLearnedKnowledge Type = "LEARNED_KNOWLEDGE"
)

var typeLabels = map[Type]string{
	TypeUserProfile:        "user profile",
	TypeFacts:              "conversation facts",
	TypePreferences:        "preferences",
	TypeBehavioralPatterns: "behavioral patterns",
	TypeTaskContext:        "task context",
	TypeLearnedKnowledge:   "learned knowledge",
}

// AllTypes returns every known memory type.
func AllTypes() []Type {
	return []Type{
		TypeUserProfile,
		TypeFacts,
		TypePreferences,
		TypeBehavioralPatterns,
		TypeTaskContext,
		TypeLearnedKnowledge,
	}
}

// ParseType parses a memory type name. Matching is case-insensitive.
//
// Returns ErrUnknownType if the name is not one of the known types.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	return t, nil
}

// Valid reports whether t is one of the known memory types.
func (t Type) Valid() bool {
	_, ok := typeLabels[t]
	return ok
}

// Permanent reports whether records of this type are exempt from decay.
func (t Type) Permanent() bool {
	return t == TypeUserProfile || t == TypePreferences
}

// Label returns a human readable description of the type.
func (t Type) Label() string {
	if label, ok := typeLabels[t]; ok {
		return label
	}
	return "unknown"
}

func (t Type) String() string {
	return string(t)
}

// Source tags where a write came from. It drives conflict resolution.
type Source string

const (
	// SourceUser marks explicit user feedback. It always wins conflicts.
	SourceUser Source = "user"

	// SourceSystem marks writes made by the system itself.
	SourceSystem Source = "system"

	// SourceInferred marks facts inferred from conversation.
	SourceInferred Source = "inferred"
)

// ParseSource parses a source tag. An empty string yields SourceSystem.
func ParseSource(s string) (Source, error) {
	if s == "" {
		return SourceSystem, nil
	}
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	if !src.Valid() {
		return "", fmt.Errorf("%w: unknown source %q", ErrInvalidInput, s)
	}
	return src, nil
}

// Valid reports whether s is a known source tag.
func (s Source) Valid() bool {
	switch s {
	case SourceUser, SourceSystem, SourceInferred:
		return true
	}
	return false
}

// Tier is the coarse priority bucket a record is filed into.
type Tier string

const (
	// TierHigh records go to long-term storage.
	TierHigh Tier = "HIGH"

	// TierMedium records go to mid-term storage.
	TierMedium Tier = "MEDIUM"

	// TierLow records go to the short-term cache.
	TierLow Tier = "LOW"
)

// Store returns the name of the collection a tier is materialised as.
func (t Tier) Store() string {
	switch t {
	case TierHigh:
		return "long_term"
	case TierMedium:
		return "mid_term"
	default:
		return "short_term"
	}
}

func (t Tier) String() string {
	return string(t)
}
