package catalog

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// embedDim is the fixed length of catalog capability embeddings. Precomputed
// vectors in the catalog file may use any length; only vectors of equal
// length are comparable.
const embedDim = 64

// Embed derives a deterministic bag-of-words embedding from free text via
// feature hashing: each token increments or decrements one of embedDim
// buckets, and the result is L2-normalized. It is no substitute for a
// learned embedding but gives stable, meaningful overlap scores for
// keyword-similar texts.
func Embed(text string) []float32 {
	vec := make([]float32, embedDim)

	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		sum := h.Sum32()

		bucket := sum % embedDim
		if sum&(1<<31) != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	return normalize(vec)
}

// Cosine returns the cosine similarity of two equal-length vectors, or 0
// when the lengths differ or either vector is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
