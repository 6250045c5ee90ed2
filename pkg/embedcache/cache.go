// Package embedcache persists text embeddings in BadgerDB so catalog
// vectors survive restarts and repeated engine initialization.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/luizh3/fashion-extractor-api/internal/metrics"
	"github.com/luizh3/fashion-extractor-api/pkg/client"
)

const keyPrefix = "emb:"

// Store is a BadgerDB-backed embedding store.
type Store struct {
	db *badger.DB
}

// Open opens the store in dir. An empty dir keeps everything in memory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Wrap returns an Embedder that consults the store before calling inner.
func (s *Store) Wrap(inner client.Embedder) client.Embedder {
	return &cachedEmbedder{store: s, inner: inner}
}

// Len returns the number of cached vectors.
func (s *Store) Len() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func cacheKey(model, text string) []byte {
	sum := sha256.Sum256([]byte(text))
	return []byte(keyPrefix + model + ":" + hex.EncodeToString(sum[:]))
}

func (s *Store) lookup(model string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	err := s.db.View(func(txn *badger.Txn) error {
		for i, t := range texts {
			item, err := txn.Get(cacheKey(model, t))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get embedding: %w", err)
			}
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &out[i])
			}); err != nil {
				return fmt.Errorf("decode embedding: %w", err)
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) store(model string, texts []string, vecs [][]float32) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for i, t := range texts {
		data, err := json.Marshal(vecs[i])
		if err != nil {
			return fmt.Errorf("marshal embedding: %w", err)
		}
		if err := wb.Set(cacheKey(model, t), data); err != nil {
			return fmt.Errorf("set embedding: %w", err)
		}
	}
	return wb.Flush()
}

type cachedEmbedder struct {
	store *Store
	inner client.Embedder
}

func (c *cachedEmbedder) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	out, err := c.store.lookup(model, texts)
	if err != nil {
		return nil, err
	}

	var missing []string
	var idx []int
	for i, v := range out {
		if v == nil {
			missing = append(missing, texts[i])
			idx = append(idx, i)
		}
	}
	metrics.EmbeddingCacheHits.Add(float64(len(texts) - len(missing)))
	if len(missing) == 0 {
		return out, nil
	}
	metrics.EmbeddingCacheMisses.Add(float64(len(missing)))

	vecs, err := c.inner.Embed(ctx, model, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(missing))
	}
	if err := c.store.store(model, missing, vecs); err != nil {
		return nil, err
	}
	for j, v := range vecs {
		out[idx[j]] = v
	}
	return out, nil
}
