package api

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/luizh3/fashion-extractor-api/internal/apperrors"
	"github.com/luizh3/fashion-extractor-api/internal/utils"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Fashion Extractor API",
		"version": Version,
		"endpoints": map[string]string{
			"health":   "/health",
			"metrics":  "/metrics",
			"margin":   "/api/v1/config/margin",
			"detect":   "/api/v1/body-parts/detect",
			"extract":  "/api/v1/body-parts/extract",
			"classify": "/api/v1/clothing/classify",
			"analysis": "/api/v1/analysis/complete",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"embeddings_ready": s.analyzer.Engine().Ready(),
		"margin_fraction":  s.analyzer.Geometry().MarginFraction(),
	})
}

type marginResponse struct {
	MarginFraction   float64 `json:"margin_fraction"`
	MarginPercentage string  `json:"margin_percentage"`
}

type marginRequest struct {
	MarginFraction *float64 `json:"margin_fraction" validate:"required"`
}

func (s *Server) marginResponse() marginResponse {
	m := s.analyzer.Geometry().MarginFraction()
	return marginResponse{MarginFraction: m, MarginPercentage: fmt.Sprintf("%.1f%%", m*100)}
}

func (s *Server) handleGetMargin(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.marginResponse())
}

func (s *Server) handleSetMargin(w http.ResponseWriter, r *http.Request) {
	var req marginRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := s.analyzer.Geometry().SetMarginFraction(*req.MarginFraction); err != nil {
		respondError(w, err)
		return
	}
	s.log.Info().Float64("margin_fraction", *req.MarginFraction).Msg("margin updated")
	respondJSON(w, http.StatusOK, s.marginResponse())
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	path := filepath.Join(s.opts.StaticDir, name)
	if !utils.IsPartFilename(name) || !utils.FileExists(path) {
		respondError(w, apperrors.New(apperrors.CodeRegionNotFound, "file %s not found", name))
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, path)
}
