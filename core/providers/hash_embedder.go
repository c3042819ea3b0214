package providers

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const DefaultHashDimensions = 256

// HashEmbedder is an offline Embedder based on feature hashing of word
// unigrams and bigrams. Vectors are L2 normalised, so cosine similarity of
// texts sharing vocabulary is high and unrelated texts score near zero.
type HashEmbedder struct {
	Dimensions int
}

func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultHashDimensions
	}
	return &HashEmbedder{Dimensions: dimensions}
}

func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = h.embedOne(text)
	}
	return out, nil
}

func (h *HashEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, h.Dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for i, w := range words {
		h.add(vec, w, 1)
		if i > 0 {
			h.add(vec, words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func (h *HashEmbedder) add(vec []float32, token string, weight float32) {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(token))
	sum := hasher.Sum32()
	idx := int(sum % uint32(len(vec)))
	if sum&(1<<31) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}
