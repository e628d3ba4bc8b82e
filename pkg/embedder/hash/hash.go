// Package hash implements a deterministic, offline embedder.Provider.
//
// Text is split into lower-cased word tokens (CJK characters become one token
// each) and every token is hashed with SHA-256 into a signed bucket of a
// fixed-size vector, which is then normalised to unit length. Texts sharing
// tokens therefore land close together, which makes the provider usable for
// local runs and tests without an embedding API.
package hash

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"unicode"

	"github.com/Jerrylingj/MemoLite/pkg/intelligence"
)

// DefaultDimensions is used when New is given a non-positive size.
const DefaultDimensions = 256

// Embedder is a feature-hashing embedding provider.
type Embedder struct {
	dimensions int
}

// New creates a hash embedder producing vectors of the given size.
func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{dimensions: dimensions}
}

// Embed returns the embedding of text. Empty text yields a zero vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.embed(text), nil
}

// EmbedBatch embeds each text in order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *Embedder) embed(text string) []float64 {
	vec := make([]float64, e.dimensions)
	for _, tok := range Tokenize(text) {
		sum := sha256.Sum256([]byte(tok))
		bucket := binary.BigEndian.Uint64(sum[:8]) % uint64(e.dimensions)
		if sum[8]&1 == 0 {
			vec[bucket]++
		} else {
			vec[bucket]--
		}
	}
	return intelligence.NormalizeVector(vec)
}

// Tokenize splits text into lower-cased tokens. Runs of letters and digits
// form one token; Han, Hiragana, Katakana and Hangul characters are tokens
// of their own.
func Tokenize(text string) []string {
	var (
		tokens []string
		cur    strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case isCJK(r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// Dimensions returns the vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *Embedder) Close() error {
	return nil
}
