package domain

import "math"

// CosineSimilarity computes the cosine of the angle between two vectors.
// Vectors of different lengths are compared over the shorter prefix, and a
// zero-norm vector yields 0 against everything, which is how the diversity
// filter deprioritizes hits without an embedding.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, x := range a {
		normA += float64(x) * float64(x)
	}
	for _, x := range b {
		normB += float64(x) * float64(x)
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
