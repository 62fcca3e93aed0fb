package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/freshtable/billing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyValidation(t *testing.T) {
	v := validator.New()
	RegisterValidations(v)

	type amount struct {
		Amount string `json:"amount" validate:"required,money"`
	}

	tests := []struct {
		value string
		valid bool
	}{
		{"25.00", true},
		{"25", true},
		{"0.5", true},
		{"-10.00", true},
		{"25.001", false},
		{"abc", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			err := v.Struct(amount{Amount: tt.value})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestHandleValidationError(t *testing.T) {
	type refundRequest struct {
		CustomerID string `json:"customer_id" binding:"required,uuid"`
		Amount     string `json:"amount" binding:"required,money"`
		SourceType string `json:"source_type" binding:"required,oneof=CREDIT PAYMENT"`
	}

	SetupValidator()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/test", func(c *gin.Context) {
		var req refundRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewSuccessResponse(req))
	})

	t.Run("reports every rejected field by its JSON name", func(t *testing.T) {
		body := strings.NewReader(`{"customer_id": "nope", "amount": "1.234", "source_type": "CASH"}`)
		req := httptest.NewRequest(http.MethodPost, "/test", body)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(RequestIDHeader, "req-42")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "req-42", resp.Error.RequestID)

		messages := map[string]string{}
		for _, d := range resp.Error.Details {
			messages[d.Field] = d.Message
		}
		assert.Equal(t, "Invalid UUID format", messages["customer_id"])
		assert.Equal(t, "Must be a decimal amount with at most two decimal places", messages["amount"])
		assert.Equal(t, "Must be one of: CREDIT PAYMENT", messages["source_type"])
	})

	t.Run("accepts a valid body", func(t *testing.T) {
		body := strings.NewReader(`{"customer_id": "6f1c2f1e-9b7a-4a53-8d4e-2b0f5c1d9e77", "amount": "12.50", "source_type": "CREDIT"}`)
		req := httptest.NewRequest(http.MethodPost, "/test", body)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("malformed JSON has no field details", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Empty(t, resp.Error.Details)
	})
}
