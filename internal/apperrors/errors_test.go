package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIsMatchesByCode(t *testing.T) {
	err := New(CodeUnknownLabel, "unknown garment %q", "cape")
	wrapped := fmt.Errorf("compatible items: %w", err)

	assert.True(t, errors.Is(wrapped, ErrUnknownLabel))
	assert.False(t, errors.Is(wrapped, ErrUnknownColor))
	assert.Equal(t, `UNKNOWN_LABEL: unknown garment "cape"`, err.Error())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotReady, CodeOf(fmt.Errorf("wrap: %w", ErrNotReady)))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	err := ErrRegionNotFound.WithDetail("region", "feet")

	assert.Equal(t, "feet", err.Details["region"])
	assert.Nil(t, ErrRegionNotFound.Details)
	assert.True(t, errors.Is(err, ErrRegionNotFound))
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Code]int{
		CodeNoDetection:     http.StatusNotFound,
		CodeRegionNotFound:  http.StatusNotFound,
		CodeUnknownLabel:    http.StatusNotFound,
		CodeUnknownColor:    http.StatusNotFound,
		CodeInvalidArgument: http.StatusBadRequest,
		CodeNotReady:        http.StatusServiceUnavailable,
		CodeInternal:        http.StatusInternalServerError,
	}
	for code, want := range tests {
		t.Run(string(code), func(t *testing.T) {
			assert.Equal(t, want, HTTPStatus(code))
		})
	}
}
