package intelligence

import "math"

// CosineSimilarity calculates the cosine similarity between two vectors.
//
// The formula is: similarity = (A · B) / (||A|| * ||B||)
//
// Returns a value between -1.0 and 1.0, or 0.0 if the vectors have
// different dimensions or either has zero norm.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NormalizeVector scales a vector to unit length (L2 norm).
//
// A zero vector is returned unchanged.
func NormalizeVector(v []float64) []float64 {
	var sum float64
	for _, val := range v {
		sum += val * val
	}
	norm := math.Sqrt(sum)

	if norm == 0 {
		return v
	}

	result := make([]float64, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
