package errors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIErrorImplementsError(t *testing.T) {
	err := New(http.StatusBadRequest, "INVALID_REQUEST", "bad input")
	assert.Equal(t, "bad input", err.Error())
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
}

func TestAPIErrorRenderSetsStatus(t *testing.T) {
	apiErr := NewWithDetails(http.StatusNotFound, "NO_RESULT", "nothing yet", "run the evaluation first")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, render.Render(rec, req, apiErr))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error_code":"NO_RESULT"`)
	assert.Contains(t, rec.Body.String(), "run the evaluation first")
}
