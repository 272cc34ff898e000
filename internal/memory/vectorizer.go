package memory

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Vectorizer turns text into a fixed-length numeric vector for
// similarity ranking. Implementations must be deterministic: equal
// inputs produce equal vectors.
type Vectorizer interface {
	// Vectorize returns a vector of length Dim for the given text.
	Vectorize(text string) []float64

	// Dim is the fixed vector length.
	Dim() int
}

// defaultVectorDim is the hashed bag-of-words vector length.
const defaultVectorDim = 100

// HashVectorizer is a hashed bag-of-words vectorizer: each lowercased
// word is hashed into one of Dim buckets and counted. This is an
// approximation, not a semantic embedding; unrelated words can collide
// into the same bucket, which limits ranking precision. Swap in a real
// embedding model via the Vectorizer interface when precision matters.
type HashVectorizer struct {
	dim int
}

// NewHashVectorizer creates a vectorizer with the given dimension, or
// the default (100) if dim is not positive.
func NewHashVectorizer(dim int) *HashVectorizer {
	if dim <= 0 {
		dim = defaultVectorDim
	}
	return &HashVectorizer{dim: dim}
}

// Dim implements Vectorizer.
func (v *HashVectorizer) Dim() int { return v.dim }

// Vectorize implements Vectorizer.
func (v *HashVectorizer) Vectorize(text string) []float64 {
	vec := make([]float64, v.dim)
	for _, word := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%uint32(v.dim)]++
	}
	return vec
}

// tokenize splits text into lowercased alphanumeric words.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// cosine returns the cosine similarity of two equal-length vectors, or
// 0 when either is a zero vector.
func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
