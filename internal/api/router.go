// Package api exposes region extraction, clothing classification and outfit
// compatibility over HTTP using the chi router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/luizh3/fashion-extractor-api/internal/logging"
	"github.com/luizh3/fashion-extractor-api/pkg/analyzer"
	"github.com/luizh3/fashion-extractor-api/pkg/cropper"
	"github.com/luizh3/fashion-extractor-api/pkg/processing"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

// StaticRoute is where saved crops are served from.
const StaticRoute = "/api/v1/static/body-parts/"

// Options configures the HTTP layer
type Options struct {
	CORSOrigins        []string
	RateLimitPerMinute int
	MaxUploadBytes     int64
	StaticDir          string
	DefaultTopK        int
	JPEGQuality        int
}

// DefaultOptions returns permissive development settings
func DefaultOptions() Options {
	return Options{
		CORSOrigins:        []string{"*"},
		RateLimitPerMinute: 120,
		MaxUploadBytes:     20 << 20,
		StaticDir:          "static/body_parts",
		DefaultTopK:        5,
		JPEGQuality:        95,
	}
}

// Server holds the handlers' collaborators
type Server struct {
	analyzer  *analyzer.Analyzer
	cropper   *cropper.RegionCropper
	processor *processing.Processor
	opts      Options
	log       zerolog.Logger
}

// NewServer creates a Server
func NewServer(a *analyzer.Analyzer, c *cropper.RegionCropper, opts Options) *Server {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 5
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = 95
	}
	return &Server{
		analyzer:  a,
		cropper:   c,
		processor: processing.NewProcessor(),
		opts:      opts,
		log:       logging.With("api"),
	}
}

// Router builds the chi handler tree
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         86400,
	}))
	r.Use(s.requestLogger)
	r.Use(metricsMiddleware)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.opts.RateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(s.opts.RateLimitPerMinute, time.Minute))
		}

		r.Get("/config/margin", s.handleGetMargin)
		r.Put("/config/margin", s.handleSetMargin)

		r.Route("/body-parts", func(r chi.Router) {
			r.Post("/detect", s.handleDetect)
			r.Post("/detect/base64", s.handleDetectBase64)
			r.Post("/extract", s.handleExtractAll)
			r.Post("/extract/{part}", s.handleExtractPart)
		})

		r.Route("/clothing", func(r chi.Router) {
			r.Post("/classify", s.handleClassify)
			r.Post("/classify/base64", s.handleClassifyBase64)
			r.Post("/compatible-items", s.handleCompatibleItems)
			r.Post("/color-compatibility", s.handleColorCompatibility)
			r.Post("/outfit-suggestions", s.handleOutfitSuggestions)
			r.Get("/colors", s.handleColors)
			r.Get("/body-regions", s.handleBodyRegions)
			r.Get("/categories", s.handleCategories)
		})

		r.Route("/analysis", func(r chi.Router) {
			r.Post("/complete", s.handleAnalyzeComplete)
			r.Post("/complete/base64", s.handleAnalyzeCompleteBase64)
		})

		r.Get("/static/body-parts/{filename}", s.handleStatic)
	})

	return r
}
