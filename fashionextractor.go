// Package fashionextractor wires the outfit pipeline from a configuration:
// vision and embedding backends, the embedding cache, pose detection,
// region geometry, cropping, the compatibility engine and the HTTP API.
//
// Basic usage:
//
//	cfg, err := config.Load("")
//	if err != nil {
//		log.Fatal(err)
//	}
//	svc, err := fashionextractor.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer svc.Close()
//
//	if err := svc.Init(ctx); err != nil {
//		log.Fatal(err)
//	}
//	res, err := svc.Analyzer().AnalyzeComplete(ctx, img)
//
// Handler returns the chi router serving the same pipeline over HTTP.
package fashionextractor

import (
	"context"
	"fmt"
	"net/http"

	"github.com/luizh3/fashion-extractor-api/internal/api"
	"github.com/luizh3/fashion-extractor-api/internal/config"
	"github.com/luizh3/fashion-extractor-api/internal/logging"
	"github.com/luizh3/fashion-extractor-api/pkg/analyzer"
	"github.com/luizh3/fashion-extractor-api/pkg/client"
	"github.com/luizh3/fashion-extractor-api/pkg/compat"
	"github.com/luizh3/fashion-extractor-api/pkg/cropper"
	"github.com/luizh3/fashion-extractor-api/pkg/detection"
	"github.com/luizh3/fashion-extractor-api/pkg/embedcache"
	"github.com/luizh3/fashion-extractor-api/pkg/embedding"
	"github.com/luizh3/fashion-extractor-api/pkg/geometry"
	"github.com/luizh3/fashion-extractor-api/pkg/llamacpp"
	"github.com/luizh3/fashion-extractor-api/pkg/ollama"
)

// Version of the fashion extractor
const Version = api.Version

// Service owns every pipeline component built from one configuration
type Service struct {
	cfg      *config.Config
	store    *embedcache.Store
	cropper  *cropper.RegionCropper
	analyzer *analyzer.Analyzer
	server   *api.Server
}

// New builds the backends named in cfg and the pipeline on top of them
func New(cfg *config.Config) (*Service, error) {
	vision, err := newBackend(cfg.Vision.Backend, cfg.Vision.URL)
	if err != nil {
		return nil, fmt.Errorf("vision backend: %w", err)
	}
	embedder, err := newBackend(cfg.Embedding.Backend, cfg.Embedding.URL)
	if err != nil {
		return nil, fmt.Errorf("embedding backend: %w", err)
	}
	return NewWithClients(cfg, vision, embedder)
}

// NewWithClients builds the pipeline on caller supplied backends. Embeddings
// are cached in cfg.Embedding.CacheDir, or in memory when it is empty.
func NewWithClients(cfg *config.Config, vision client.VisionClient, embedder client.Embedder) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := embedcache.Open(cfg.Embedding.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	cached := store.Wrap(embedder)

	geom, err := geometry.New(cfg.Geometry.MarginFraction)
	if err != nil {
		store.Close()
		return nil, err
	}
	crop := cropper.NewWithConfig(cropper.CropConfig{
		MinSide: map[geometry.Region]int{geometry.Feet: cfg.Cropper.MinFeetSide},
	})

	detector := detection.NewDetector(vision, detection.Options{
		Model:         cfg.Vision.Model,
		Format:        cfg.Vision.SendFormat,
		MaxDim:        cfg.Vision.SendSize,
		Quality:       cfg.Vision.SendQuality,
		MinVisibility: detection.DefaultOptions().MinVisibility,
	})
	model := embedding.New(vision, cached, embedding.Options{
		VisionModel:    cfg.Vision.Model,
		EmbeddingModel: cfg.Embedding.Model,
		Format:         cfg.Vision.SendFormat,
		MaxDim:         cfg.Vision.SendSize,
		Quality:        cfg.Vision.SendQuality,
	})
	engine := compat.NewEngine(compat.DefaultCatalog(), cached, cfg.Embedding.Model)

	a, err := analyzer.New(analyzer.Deps{
		Geometry: geom,
		Cropper:  crop,
		Pose:     detector,
		People:   detector,
		Model:    model,
		Engine:   engine,
	}, analyzer.Config{
		OutputDir:   cfg.Output.StaticDir,
		JPEGQuality: cfg.Output.JPEGQuality,
		URLPrefix:   api.StaticRoute,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	server := api.NewServer(a, crop, api.Options{
		CORSOrigins:        cfg.Server.CORSOrigins,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		MaxUploadBytes:     int64(cfg.Server.MaxUploadMB) << 20,
		StaticDir:          cfg.Output.StaticDir,
		DefaultTopK:        cfg.Compat.DefaultTopK,
		JPEGQuality:        cfg.Output.JPEGQuality,
	})

	return &Service{
		cfg:      cfg,
		store:    store,
		cropper:  crop,
		analyzer: a,
		server:   server,
	}, nil
}

// Init computes the catalog embeddings. Until it succeeds the
// compatibility operations answer NotReady.
func (s *Service) Init(ctx context.Context) error {
	if err := s.analyzer.Engine().Init(ctx); err != nil {
		return fmt.Errorf("initialize embeddings: %w", err)
	}
	n, err := s.store.Len()
	if err == nil {
		logging.Info().Int("cached_embeddings", n).Msg("catalog embeddings ready")
	}
	return nil
}

// Handler returns the HTTP API
func (s *Service) Handler() http.Handler {
	return s.server.Router()
}

// Analyzer returns the pipeline
func (s *Service) Analyzer() *analyzer.Analyzer {
	return s.analyzer
}

// Cropper returns the region cropper
func (s *Service) Cropper() *cropper.RegionCropper {
	return s.cropper
}

// Config returns the configuration the service was built from
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Close releases the embedding cache
func (s *Service) Close() error {
	return s.store.Close()
}

type backend interface {
	client.VisionClient
	client.Embedder
}

func newBackend(name, url string) (backend, error) {
	switch name {
	case "ollama":
		c, err := ollama.NewClient(url)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "llamacpp":
		c, err := llamacpp.NewClient(url)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown backend %q (use ollama or llamacpp)", name)
	}
}
