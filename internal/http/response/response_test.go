package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON_WritesStatusAndBody(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	JSON(rec, req, http.StatusBadGateway, ErrorWithDetails("Payment creation failed", "timeout"))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var got map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, map[string]string{"error": "Payment creation failed", "details": "timeout"}, got)
}

func TestError_OmitsEmptyDetails(t *testing.T) {
	b, err := json.Marshal(Error("Invalid action"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Invalid action"}`, string(b))
}

func TestValidationError(t *testing.T) {
	type req struct {
		Email  string `validate:"required,email"`
		Action string `validate:"oneof=request confirm"`
	}
	err := validator.New().Struct(req{Action: "other"})
	require.Error(t, err)

	got := ValidationError(err.(validator.ValidationErrors))
	assert.Equal(t, "field Email is a required field, field Action must be one of: request confirm", got.Error)
}
