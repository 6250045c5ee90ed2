// Package embedding places garment crops and catalog labels in one vector
// space. A vision model describes the crop in words and a text embedder
// encodes both the description and the labels.
package embedding

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"
	"sync"

	"github.com/luizh3/fashion-extractor-api/pkg/client"
	"github.com/luizh3/fashion-extractor-api/pkg/processing"
)

// LogitScale sharpens cosine similarities before the softmax.
const LogitScale = 100.0

// DescribePrompt asks the vision model for a compact garment caption.
const DescribePrompt = `Describe the clothing item in this image in one short sentence.
Mention the garment type, its main color, material and style.
Plain text only, no lists, no preamble.`

// Options configures the models behind a Model
type Options struct {
	VisionModel    string
	EmbeddingModel string
	Format         string
	MaxDim         int
	Quality        int
}

// Model implements client.EmbeddingModel
type Model struct {
	vision    client.VisionClient
	embedder  client.Embedder
	processor *processing.Processor
	opts      Options

	mu    sync.Mutex
	texts map[string][]float32
}

// New creates a Model
func New(vision client.VisionClient, embedder client.Embedder, opts Options) *Model {
	if opts.Format == "" {
		opts.Format = "jpg"
	}
	if opts.Quality <= 0 {
		opts.Quality = 85
	}
	return &Model{
		vision:    vision,
		embedder:  embedder,
		processor: processing.NewProcessor(),
		opts:      opts,
		texts:     make(map[string][]float32),
	}
}

// EncodeText embeds a single text
func (m *Model) EncodeText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.encodeTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EncodeImage captions the image and embeds the caption
func (m *Model) EncodeImage(ctx context.Context, img image.Image) ([]float32, error) {
	caption, err := m.Describe(ctx, img)
	if err != nil {
		return nil, err
	}
	vecs, err := m.embedder.Embed(ctx, m.opts.EmbeddingModel, []string{caption})
	if err != nil {
		return nil, fmt.Errorf("embed caption: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed caption: got %d vectors", len(vecs))
	}
	return vecs[0], nil
}

// Describe returns the vision model's caption for img
func (m *Model) Describe(ctx context.Context, img image.Image) (string, error) {
	imgB64, err := m.processor.PrepareImageForModel(img, m.opts.Format, m.opts.MaxDim, m.opts.Quality)
	if err != nil {
		return "", fmt.Errorf("failed to prepare image: %v", err)
	}
	caption, err := m.vision.SimpleQuery(ctx, m.opts.VisionModel, DescribePrompt, imgB64)
	if err != nil {
		return "", fmt.Errorf("describe image: %w", err)
	}
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return "", fmt.Errorf("describe image: empty caption")
	}
	return caption, nil
}

// JointSimilarity returns softmax(LogitScale * cos(image, text)) over texts
func (m *Model) JointSimilarity(ctx context.Context, img image.Image, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts to compare")
	}

	imgVec, err := m.EncodeImage(ctx, img)
	if err != nil {
		return nil, err
	}
	textVecs, err := m.encodeTexts(ctx, texts)
	if err != nil {
		return nil, err
	}

	logits := make([]float64, len(texts))
	for i, tv := range textVecs {
		if len(tv) != len(imgVec) {
			return nil, fmt.Errorf("dimension mismatch: image %d, text %d", len(imgVec), len(tv))
		}
		logits[i] = LogitScale * cosine(imgVec, tv)
	}
	return softmax(logits), nil
}

// encodeTexts embeds texts, reusing vectors seen before
func (m *Model) encodeTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	m.mu.Lock()
	for i, t := range texts {
		if v, ok := m.texts[t]; ok {
			out[i] = v
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	m.mu.Unlock()

	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := m.embedder.Embed(ctx, m.opts.EmbeddingModel, missing)
	if err != nil {
		return nil, fmt.Errorf("embed texts: %w", err)
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("embed texts: got %d vectors for %d texts", len(vecs), len(missing))
	}

	m.mu.Lock()
	for j, v := range vecs {
		m.texts[missing[j]] = v
		out[missingIdx[j]] = v
	}
	m.mu.Unlock()

	return out, nil
}

// cosine compares the shared prefix of a and b; 0 when either is zero.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range min(len(a), len(b)) {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func softmax(logits []float64) []float64 {
	hi := math.Inf(-1)
	for _, l := range logits {
		hi = max(hi, l)
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		out[i] = math.Exp(l - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
