// Package compat ranks garments and colors by embedding similarity and
// scores outfits built from classified body regions.
package compat

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/luizh3/fashion-extractor-api/internal/apperrors"
	"github.com/luizh3/fashion-extractor-api/pkg/client"
)

// Engine holds a catalog and its embeddings. Every query fails with
// ErrNotReady until Init has completed once.
type Engine struct {
	catalog  *Catalog
	embedder client.Embedder
	model    string

	mu    sync.Mutex
	state atomic.Pointer[embeddings]
}

type embeddings struct {
	garments [][]float32
	colors   [][]float32
}

// NewEngine creates an engine over catalog. Embeddings come from embedder
// using the given model.
func NewEngine(catalog *Catalog, embedder client.Embedder, model string) *Engine {
	return &Engine{catalog: catalog, embedder: embedder, model: model}
}

// Catalog returns the engine's catalog.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Ready reports whether embeddings are available.
func (e *Engine) Ready() bool {
	return e.state.Load() != nil
}

// Init computes every catalog embedding. Calls after a successful Init are
// no-ops; concurrent calls run the computation at most once.
func (e *Engine) Init(ctx context.Context) error {
	if e.Ready() {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Ready() {
		return nil
	}
	return e.load(ctx)
}

// Reinitialize recomputes all embeddings and swaps them in at once. Readers
// keep the previous set until the new one is complete.
func (e *Engine) Reinitialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.load(ctx)
}

// must be called with mu held
func (e *Engine) load(ctx context.Context) error {
	prompts := make([]string, len(e.catalog.garments))
	for i, g := range e.catalog.garments {
		prompts[i] = g.Prompt
	}
	names := make([]string, len(e.catalog.colors))
	for i, c := range e.catalog.colors {
		names[i] = c.Name
	}

	garments, err := e.embed(ctx, prompts)
	if err != nil {
		return fmt.Errorf("embedding garments: %w", err)
	}
	colors, err := e.embed(ctx, names)
	if err != nil {
		return fmt.Errorf("embedding colors: %w", err)
	}
	if len(garments[0]) != len(colors[0]) {
		return fmt.Errorf("garment and color embeddings differ in size: %d vs %d", len(garments[0]), len(colors[0]))
	}

	e.state.Store(&embeddings{garments: garments, colors: colors})
	return nil
}

func (e *Engine) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := e.embedder.Embed(ctx, e.model, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vecs))
	}
	dim := len(vecs[0])
	for i, v := range vecs {
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("embedding for %q has size %d, want %d", texts[i], len(v), dim)
		}
	}
	return vecs, nil
}

func (e *Engine) snapshot() (*embeddings, error) {
	s := e.state.Load()
	if s == nil {
		return nil, apperrors.ErrNotReady
	}
	return s, nil
}
