package api

import (
	"encoding/base64"
	"errors"
	"image"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/luizh3/fashion-extractor-api/internal/apperrors"
	"github.com/luizh3/fashion-extractor-api/pkg/cropper"
	"github.com/luizh3/fashion-extractor-api/pkg/geometry"
)

type cropResponse struct {
	Part     geometry.Region `json:"part"`
	Image    string          `json:"image"`
	Format   string          `json:"format"`
	Width    int             `json:"width"`
	Height   int             `json:"height"`
	BBox     geometry.Rect   `json:"bbox"`
	Upscaled bool            `json:"upscaled"`
}

type extractAllResponse struct {
	Success  bool                             `json:"success"`
	Error    string                           `json:"error,omitempty"`
	Parts    map[geometry.Region]cropResponse `json:"body_parts"`
	Failures map[geometry.Region]string       `json:"failures,omitempty"`
}

func (s *Server) encodeCrop(c cropper.CropResult) (cropResponse, error) {
	data, err := s.processor.EncodeJPEG(c.Image, s.opts.JPEGQuality)
	if err != nil {
		return cropResponse{}, err
	}
	b := c.Image.Bounds()
	return cropResponse{
		Part:     c.Region,
		Image:    base64.StdEncoding.EncodeToString(data),
		Format:   "jpeg",
		Width:    b.Dx(),
		Height:   b.Dy(),
		BBox:     c.BBox,
		Upscaled: c.Upscaled,
	}, nil
}

// detect answers a region detection. A missing person is not an HTTP error:
// the detection itself reports success false.
func (s *Server) detect(w http.ResponseWriter, r *http.Request, img image.Image) {
	det, err := s.analyzer.DetectRegions(r.Context(), s.processor.EnsureRGB(img))
	if err != nil && !errors.Is(err, apperrors.ErrNoDetection) {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, det)
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	img, _, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, err)
		return
	}
	s.detect(w, r, img)
}

func (s *Server) handleDetectBase64(w http.ResponseWriter, r *http.Request) {
	img, err := s.readBase64(w, r)
	if err != nil {
		respondError(w, err)
		return
	}
	s.detect(w, r, img)
}

func (s *Server) handleExtractAll(w http.ResponseWriter, r *http.Request) {
	img, _, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, err)
		return
	}
	img = s.processor.EnsureRGB(img)

	det, err := s.analyzer.DetectRegions(r.Context(), img)
	if errors.Is(err, apperrors.ErrNoDetection) {
		respondJSON(w, http.StatusOK, extractAllResponse{Error: det.Error, Parts: map[geometry.Region]cropResponse{}})
		return
	}
	if err != nil {
		respondError(w, err)
		return
	}

	crops, failed := s.cropper.ExtractAll(img, det.Detection)
	resp := extractAllResponse{
		Success:  true,
		Parts:    make(map[geometry.Region]cropResponse, len(crops)),
		Failures: make(map[geometry.Region]string),
	}
	for region, err := range failed {
		resp.Failures[region] = err.Error()
	}
	for region, c := range crops {
		if c.Empty() {
			resp.Failures[region] = "region has no area"
			continue
		}
		enc, err := s.encodeCrop(c)
		if err != nil {
			resp.Failures[region] = err.Error()
			continue
		}
		resp.Parts[region] = enc
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExtractPart(w http.ResponseWriter, r *http.Request) {
	part := chi.URLParam(r, "part")
	region, ok := geometry.ParseRegion(part)
	if !ok {
		respondError(w, apperrors.New(apperrors.CodeInvalidArgument, "unknown body part %q", part).
			WithDetail("valid_parts", []geometry.Region{geometry.Torso, geometry.Legs, geometry.Feet, geometry.Head}))
		return
	}

	img, _, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, err)
		return
	}

	c, err := s.analyzer.ExtractRegion(r.Context(), s.processor.EnsureRGB(img), region)
	if err == nil && c.Empty() {
		err = apperrors.New(apperrors.CodeRegionNotFound, "region %s has no area", region)
	}
	if err != nil {
		respondError(w, err)
		return
	}
	enc, err := s.encodeCrop(c)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, enc)
}
