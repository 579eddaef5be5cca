package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	t.Run("should write status and error body", func(t *testing.T) {
		// given
		w := httptest.NewRecorder()

		// when
		WriteError(w, http.StatusBadRequest, "Invalid horizon", "days must not be negative")

		// then
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		var body ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "Invalid horizon", body.Error)
		assert.Equal(t, "days must not be negative", body.Details)
	})

	t.Run("should omit empty details", func(t *testing.T) {
		w := httptest.NewRecorder()

		WriteError(w, http.StatusNotFound, "Not found", "")

		assert.JSONEq(t, `{"error":"Not found"}`, w.Body.String())
	})
}
