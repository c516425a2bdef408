package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashingDimensions is used when no dimension is configured.
const DefaultHashingDimensions = 512

// HashingClient is a deterministic bag-of-words embedder based on feature hashing.
// It needs no network and is used offline and in tests; texts sharing words get
// a high cosine similarity.
type HashingClient struct {
	dims int
}

// NewHashingClient creates a HashingClient producing vectors of length dims.
func NewHashingClient(dims int) *HashingClient {
	if dims <= 0 {
		dims = DefaultHashingDimensions
	}
	return &HashingClient{dims: dims}
}

// Dimensions returns the vector length.
func (h *HashingClient) Dimensions() int {
	return h.dims
}

// CreateEmbedding returns an L2-normalised term-frequency vector.
func (h *HashingClient) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		f := fnv.New32a()
		_, _ = f.Write([]byte(tok))
		sum := f.Sum32()
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		vec[int(sum>>1)%h.dims] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec, nil
}
