package api

import (
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/luizh3/fashion-extractor-api/internal/apperrors"
	"github.com/luizh3/fashion-extractor-api/internal/logging"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

type errorResponse struct {
	Error   apperrors.Code `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// respondJSON sends a JSON response with proper headers
func respondJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError maps err through the error taxonomy. Errors outside it are
// logged and reported as internal.
func respondError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := apperrors.HTTPStatus(code)

	resp := errorResponse{Error: code, Message: err.Error()}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		resp.Message = appErr.Message
		resp.Details = appErr.Details
	}
	if status >= http.StatusInternalServerError {
		logging.Error().Err(err).Str("code", string(code)).Msg("API error")
	}
	respondJSON(w, status, resp)
}

func invalidArgument(format string, args ...any) error {
	return apperrors.New(apperrors.CodeInvalidArgument, format, args...)
}

// decodeJSON reads a bounded JSON body into v and validates it
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return invalidArgument("invalid JSON body: %v", err)
	}
	if err := getValidator().Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fe.Namespace()
				msgs[i] = fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag())
			}
			return apperrors.New(apperrors.CodeInvalidArgument, "%s", strings.Join(msgs, "; ")).WithDetail("fields", fields)
		}
		return invalidArgument("%v", err)
	}
	return nil
}

// readUpload decodes the image sent in the "file" multipart field
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (image.Image, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		return nil, "", invalidArgument("invalid multipart form: %v", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", invalidArgument("missing file field")
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, "", invalidArgument("file must be an image, got %s", ct)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", invalidArgument("failed to read upload: %v", err)
	}
	if len(data) == 0 {
		return nil, "", invalidArgument("file is empty")
	}
	img, err := s.processor.DecodeImage(data)
	if err != nil {
		return nil, "", invalidArgument("%v", err)
	}
	return img, header.Filename, nil
}

type base64ImageRequest struct {
	Image string `json:"image" validate:"required"`
}

func (s *Server) readBase64(w http.ResponseWriter, r *http.Request) (image.Image, error) {
	var req base64ImageRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		return nil, err
	}
	img, err := s.processor.DecodeBase64Image(req.Image)
	if err != nil {
		return nil, invalidArgument("%v", err)
	}
	return img, nil
}
