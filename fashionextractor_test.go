package fashionextractor

import (
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luizh3/fashion-extractor-api/internal/config"
)

type nobodyVision struct{}

func (nobodyVision) SimpleQuery(context.Context, string, string, string) (string, error) {
	return `{"person": false, "landmarks": []}`, nil
}

type countingEmbedder struct{ calls atomic.Int32 }

func (e *countingEmbedder) Embed(_ context.Context, _ string, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 4)
		v[len(t)%4] = 1
		v[strings.Count(t, " ")%4] += 0.5
		out[i] = v
	}
	return out, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Output.StaticDir = t.TempDir()
	cfg.Server.RateLimitPerMinute = 0
	return cfg
}

func health(t *testing.T, h http.Handler) map[string]any {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestNewBuildsBackends(t *testing.T) {
	for _, backend := range []string{"ollama", "llamacpp"} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Vision.Backend = backend
			cfg.Embedding.Backend = backend
			svc, err := New(cfg)
			require.NoError(t, err)
			assert.NotNil(t, svc.Analyzer())
			assert.NotNil(t, svc.Cropper())
			assert.Same(t, cfg, svc.Config())
			require.NoError(t, svc.Close())
		})
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Vision.Backend = "tensorflow"
	_, err := New(cfg)
	assert.ErrorContains(t, err, "unknown backend")

	cfg = testConfig(t)
	cfg.Geometry.MarginFraction = 2
	_, err = NewWithClients(cfg, nobodyVision{}, &countingEmbedder{})
	assert.Error(t, err)
}

func TestInitComputesEmbeddingsOnce(t *testing.T) {
	emb := &countingEmbedder{}
	svc, err := NewWithClients(testConfig(t), nobodyVision{}, emb)
	require.NoError(t, err)
	defer svc.Close()

	h := svc.Handler()
	assert.Equal(t, false, health(t, h)["embeddings_ready"])

	require.NoError(t, svc.Init(context.Background()))
	assert.Equal(t, true, health(t, h)["embeddings_ready"])

	calls := emb.calls.Load()
	require.NoError(t, svc.Init(context.Background()))
	assert.Equal(t, calls, emb.calls.Load())

	n, err := svc.store.Len()
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestReinitializeServedFromCache(t *testing.T) {
	emb := &countingEmbedder{}
	svc, err := NewWithClients(testConfig(t), nobodyVision{}, emb)
	require.NoError(t, err)
	defer svc.Close()

	require.NoError(t, svc.Init(context.Background()))
	calls := emb.calls.Load()
	require.NoError(t, svc.Analyzer().Engine().Reinitialize(context.Background()))
	assert.Equal(t, calls, emb.calls.Load())
}

func TestAnalyzeWithoutPerson(t *testing.T) {
	svc, err := NewWithClients(testConfig(t), nobodyVision{}, &countingEmbedder{})
	require.NoError(t, err)
	defer svc.Close()
	require.NoError(t, svc.Init(context.Background()))

	res, err := svc.Analyzer().AnalyzeComplete(context.Background(), image.NewNRGBA(image.Rect(0, 0, 64, 128)))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}
