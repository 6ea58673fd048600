package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paroisse/paroisse/internal/shared"
)

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(fmt.Errorf("load: %w", shared.ErrNotFound)))
	assert.Equal(t, http.StatusConflict, StatusFor(&shared.ConflictError{Message: "x"}))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(shared.NewValidationError("name", "requis")))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
}

func TestRespondErrorHidesInternalDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("pq: connection refused to 10.0.0.3"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.NotContains(t, body.Detail, "10.0.0.3")
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}
