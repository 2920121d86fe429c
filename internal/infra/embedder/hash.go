package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/yanqian/persian-faqbot/internal/domain/faq"
)

const (
	defaultHashDims = 256
	wordWeight      = 1.0
	trigramWeight   = 0.5
)

// HashEmbedder avoids network calls by feature-hashing word unigrams and
// character trigrams into a signed, L2-normalised vector. Texts that share
// words or word fragments land close together under cosine similarity.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder constructs the embedder.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = defaultHashDims
	}
	return &HashEmbedder{dim: dim}
}

// Dims reports the vector length.
func (e *HashEmbedder) Dims() int {
	return e.dim
}

// Embed converts each text into a hashed feature vector.
func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.vector(text)
	}
	return vectors, nil
}

func (e *HashEmbedder) vector(text string) []float32 {
	acc := make([]float64, e.dim)
	for _, word := range strings.Fields(text) {
		e.add(acc, "w:"+word, wordWeight)
		padded := []rune("#" + word + "#")
		for j := 0; j+3 <= len(padded); j++ {
			e.add(acc, "t:"+string(padded[j:j+3]), trigramWeight)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, e.dim)
	if norm == 0 {
		return out
	}
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out
}

func (e *HashEmbedder) add(acc []float64, feature string, weight float64) {
	hash := fnv.New64a()
	_, _ = hash.Write([]byte(feature))
	sum := hash.Sum64()
	idx := int(sum % uint64(e.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	acc[idx] += weight
}

var _ faq.Embedder = (*HashEmbedder)(nil)
