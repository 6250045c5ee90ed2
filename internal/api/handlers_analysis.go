package api

import (
	"image"
	"net/http"
)

func (s *Server) analyze(w http.ResponseWriter, r *http.Request, img image.Image) {
	res, err := s.analyzer.AnalyzeComplete(r.Context(), img)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalyzeComplete(w http.ResponseWriter, r *http.Request) {
	img, _, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, err)
		return
	}
	s.analyze(w, r, img)
}

func (s *Server) handleAnalyzeCompleteBase64(w http.ResponseWriter, r *http.Request) {
	img, err := s.readBase64(w, r)
	if err != nil {
		respondError(w, err)
		return
	}
	s.analyze(w, r, img)
}
