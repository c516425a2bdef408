package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chatbot-go/internal/config"
)

func cosine(a, b []float32) float64 {
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

func TestHashingClient_Deterministic(t *testing.T) {
	h := NewHashingClient(128)
	a, err := h.CreateEmbedding(context.Background(), "injuries recorded in the match")
	require.NoError(t, err)
	b, err := h.CreateEmbedding(context.Background(), "Injuries recorded in the MATCH")
	require.NoError(t, err)

	assert.Len(t, a, 128)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, cosine(a, a), 1e-5)
}

func TestHashingClient_Similarity(t *testing.T) {
	h := NewHashingClient(512)
	ctx := context.Background()
	doc, _ := h.CreateEmbedding(ctx, "There were 42 injuries recorded in the match")
	near, _ := h.CreateEmbedding(ctx, "injuries recorded in the match")
	far, _ := h.CreateEmbedding(ctx, "quarterly revenue forecast spreadsheet")

	assert.Greater(t, cosine(doc, near), cosine(doc, far))
}

func TestHashingClient_EmptyText(t *testing.T) {
	vec, err := NewHashingClient(0).CreateEmbedding(context.Background(), "  ")
	require.NoError(t, err)
	assert.Len(t, vec, DefaultHashingDimensions)
}

func TestVectorCodecRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3.75}
	out, ok := decodeVector(encodeVector(in))
	require.True(t, ok)
	assert.Equal(t, in, out)

	_, ok = decodeVector([]byte{1, 2, 3})
	assert.False(t, ok)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, CacheKey("m", "text"), CacheKey("m", "text"))
	assert.NotEqual(t, CacheKey("m", "text"), CacheKey("other", "text"))
	assert.Contains(t, CacheKey("m", "text"), "embedding:m:")
}

func TestNewCachedClient_NilRedisReturnsNext(t *testing.T) {
	next := NewHashingClient(8)
	assert.Same(t, next, NewCachedClient(next, nil, "m", 0))
}

func TestOpenAICompatibleClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"hello"}, req.Input)
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	c := NewClient(config.EmbeddingConfig{BaseURL: srv.URL, APIKey: "secret", Model: "m"})
	vec, err := c.CreateEmbedding(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOpenAICompatibleClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(config.EmbeddingConfig{BaseURL: srv.URL})
	_, err := c.CreateEmbedding(context.Background(), "hello")
	assert.Error(t, err)
}
