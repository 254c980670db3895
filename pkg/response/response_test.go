package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/ukydev/fleet-maintenance/pkg/errors"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestError_MapsKinds(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		code    string
		message string
	}{
		{apperrors.Validation("mileage must be >= 0"), http.StatusBadRequest, apperrors.CodeValidation, "mileage must be >= 0"},
		{apperrors.NotFound("vehicle v1 not found"), http.StatusNotFound, apperrors.CodeNotFound, "vehicle v1 not found"},
		{fmt.Errorf("wrapped: %w", apperrors.Conflict("already completed")), http.StatusConflict, apperrors.CodeConflict, "already completed"},
		{errors.New("socket closed"), http.StatusInternalServerError, apperrors.CodeInternal, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			body := decodeError(t, rec)
			assert.Equal(t, tt.code, body.Error)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, map[string]int{"count": 2})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"count":2}`, rec.Body.String())
}
