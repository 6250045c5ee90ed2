package api

import (
	"image"
	"net/http"
	"strings"

	"github.com/luizh3/fashion-extractor-api/internal/apperrors"
	"github.com/luizh3/fashion-extractor-api/internal/metrics"
	"github.com/luizh3/fashion-extractor-api/pkg/types"
)

type compatibleItemsRequest struct {
	SelectedItem  types.SelectedItem `json:"selected_item" validate:"required"`
	TargetRegions []string           `json:"target_regions"`
	TopK          int                `json:"top_k" validate:"gte=0"`
}

type colorCompatibilityRequest struct {
	Color         string   `json:"color" validate:"required"`
	TargetRegions []string `json:"target_regions"`
	TopK          int      `json:"top_k" validate:"gte=0"`
}

type outfitSuggestionsRequest struct {
	SelectedItems []types.SelectedItem `json:"selected_items" validate:"required,min=1,dive"`
	TopK          int                  `json:"top_k" validate:"gte=0"`
}

func (s *Server) topK(k int) int {
	if k == 0 {
		return s.opts.DefaultTopK
	}
	return k
}

// answerQuery records the outcome of a compatibility operation and writes
// either its result or its error.
func answerQuery(w http.ResponseWriter, op string, result any, err error) {
	if err != nil {
		metrics.RecordCompatQuery(op, strings.ToLower(string(apperrors.CodeOf(err))))
		respondError(w, err)
		return
	}
	metrics.RecordCompatQuery(op, "ok")
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) classify(w http.ResponseWriter, r *http.Request, img image.Image, filename string) {
	part, err := s.analyzer.ClassifyPart(r.Context(), s.processor.EnsureRGB(img))
	if err != nil {
		respondError(w, err)
		return
	}
	resp := map[string]any{
		"success":        true,
		"classification": part,
	}
	if filename != "" {
		resp["filename"] = filename
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	img, filename, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, err)
		return
	}
	s.classify(w, r, img, filename)
}

func (s *Server) handleClassifyBase64(w http.ResponseWriter, r *http.Request) {
	img, err := s.readBase64(w, r)
	if err != nil {
		respondError(w, err)
		return
	}
	s.classify(w, r, img, "")
}

func (s *Server) handleCompatibleItems(w http.ResponseWriter, r *http.Request) {
	var req compatibleItemsRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	res, err := s.analyzer.Engine().CompatibleItems(req.SelectedItem, req.TargetRegions, s.topK(req.TopK))
	answerQuery(w, "compatible_items", res, err)
}

func (s *Server) handleColorCompatibility(w http.ResponseWriter, r *http.Request) {
	var req colorCompatibilityRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	res, err := s.analyzer.Engine().ColorCompatibility(strings.ToLower(req.Color), req.TargetRegions, s.topK(req.TopK))
	answerQuery(w, "color_compatibility", res, err)
}

func (s *Server) handleOutfitSuggestions(w http.ResponseWriter, r *http.Request) {
	var req outfitSuggestionsRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	res, err := s.analyzer.Engine().OutfitSuggestions(req.SelectedItems, s.topK(req.TopK))
	answerQuery(w, "outfit_suggestions", res, err)
}

func (s *Server) handleColors(w http.ResponseWriter, r *http.Request) {
	colors := s.analyzer.Engine().Catalog().Colors()
	names := make([]string, len(colors))
	for i, c := range colors {
		names[i] = c.Name
	}
	respondJSON(w, http.StatusOK, map[string]any{"colors": names, "total": len(names)})
}

func (s *Server) handleBodyRegions(w http.ResponseWriter, r *http.Request) {
	cat := s.analyzer.Engine().Catalog()
	respondJSON(w, http.StatusOK, map[string]any{
		"body_regions":    cat.Regions(),
		"items_by_region": cat.GarmentsByRegion(),
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	garments := s.analyzer.Engine().Catalog().Garments()
	respondJSON(w, http.StatusOK, map[string]any{"categories": garments, "total": len(garments)})
}
