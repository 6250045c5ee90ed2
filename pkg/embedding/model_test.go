package embedding

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captioner struct {
	caption string
	err     error
}

func (c captioner) SimpleQuery(context.Context, string, string, string) (string, error) {
	return c.caption, c.err
}

type tableEmbedder struct {
	vectors map[string][]float32
	calls   atomic.Int32
	inputs  atomic.Int32
}

func (e *tableEmbedder) Embed(_ context.Context, _ string, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	e.inputs.Add(int32(len(texts)))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := e.vectors[t]
		if !ok {
			return nil, errors.New("unknown text " + t)
		}
		out[i] = v
	}
	return out, nil
}

func newModel(caption string) (*Model, *tableEmbedder) {
	emb := &tableEmbedder{vectors: map[string][]float32{
		"a red cotton t-shirt": {1, 0, 0},
		"t-shirt":              {0.9, 0.1, 0},
		"pants":                {0, 1, 0},
		"shoes":                {0, 0, 1},
	}}
	return New(captioner{caption: caption}, emb, Options{VisionModel: "v", EmbeddingModel: "e"}), emb
}

func TestJointSimilarity(t *testing.T) {
	m, _ := newModel("  a red cotton t-shirt\n")
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))

	probs, err := m.JointSimilarity(context.Background(), img, []string{"t-shirt", "pants", "shoes"})
	require.NoError(t, err)
	require.Len(t, probs, 3)

	var sum float64
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, probs[0], 0.99)
	assert.InDelta(t, probs[1], probs[2], 1e-12)
}

func TestTextVectorsAreMemoized(t *testing.T) {
	m, emb := newModel("a red cotton t-shirt")
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))

	_, err := m.JointSimilarity(context.Background(), img, []string{"t-shirt", "pants"})
	require.NoError(t, err)
	_, err = m.JointSimilarity(context.Background(), img, []string{"t-shirt", "pants", "shoes"})
	require.NoError(t, err)

	// one caption embed per call, then label batches of 2 and 1
	assert.Equal(t, int32(4), emb.calls.Load())
	assert.Equal(t, int32(5), emb.inputs.Load())
}

func TestJointSimilarityErrors(t *testing.T) {
	m, _ := newModel("a red cotton t-shirt")
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))

	_, err := m.JointSimilarity(context.Background(), img, nil)
	assert.Error(t, err)

	m, _ = newModel("   ")
	_, err = m.JointSimilarity(context.Background(), img, []string{"pants"})
	assert.ErrorContains(t, err, "empty caption")

	m = New(captioner{err: errors.New("offline")}, &tableEmbedder{}, Options{})
	_, err = m.EncodeImage(context.Background(), img)
	assert.ErrorContains(t, err, "offline")
}

func TestEncodeText(t *testing.T) {
	m, _ := newModel("")
	v, err := m.EncodeText(context.Background(), "pants")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, v)
}

func TestSoftmaxIsStable(t *testing.T) {
	p := softmax([]float64{1000, 1000})
	assert.InDelta(t, 0.5, p[0], 1e-12)
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestCosineMismatchedLengths(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.InDelta(t, 1.0, cosine([]float32{1, 0}, []float32{1, 0, 5}), 1e-9)
		assert.InDelta(t, 1.0, cosine([]float32{2, 2, 7}, []float32{1, 1}), 1e-9)
	})
}
