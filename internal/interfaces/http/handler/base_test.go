package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/freshtable/billing/internal/interfaces/http/dto"
	"github.com/freshtable/billing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestBaseHandler_Success(t *testing.T) {
	h := &BaseHandler{}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	h.Success(c, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
}

func TestBaseHandler_Created(t *testing.T) {
	h := &BaseHandler{}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	h.Created(c, map[string]string{"id": "123"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, decode(t, w).Success)
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
		expectedMsg    string
	}{
		{
			name:           "validation error",
			err:            shared.NewValidationError("INVALID_AMOUNT", "Amount must be positive"),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "ERR_INVALID_AMOUNT",
			expectedMsg:    "Amount must be positive",
		},
		{
			name:           "not found error",
			err:            shared.NewNotFoundError("invoice", uuid.MustParse("8a2a7d5e-9c8b-4b0e-a1d2-3f4e5a6b7c8d")),
			expectedStatus: http.StatusNotFound,
			expectedCode:   dto.ErrCodeNotFound,
			expectedMsg:    "invoice 8a2a7d5e-9c8b-4b0e-a1d2-3f4e5a6b7c8d not found",
		},
		{
			name:           "state conflict",
			err:            shared.NewStateConflictError("Refund is already COMPLETED"),
			expectedStatus: http.StatusConflict,
			expectedCode:   dto.ErrCodeInvalidState,
			expectedMsg:    "Refund is already COMPLETED",
		},
		{
			name:           "insufficient funds",
			err:            shared.ErrInsufficientBalance,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   dto.ErrCodeInsufficientBalance,
			expectedMsg:    "Insufficient balance available",
		},
		{
			name:           "cross tenant",
			err:            shared.NewCrossTenantError("Invoice belongs to another customer"),
			expectedStatus: http.StatusForbidden,
			expectedCode:   dto.ErrCodeCrossTenant,
			expectedMsg:    "Invoice belongs to another customer",
		},
		{
			name:           "wrapped domain error",
			err:            fmt.Errorf("apply credit: %w", shared.NewStateConflictError("Credit is EXPIRED")),
			expectedStatus: http.StatusConflict,
			expectedCode:   dto.ErrCodeInvalidState,
			expectedMsg:    "Credit is EXPIRED",
		},
		{
			name:           "persistence error hides the cause",
			err:            shared.WrapPersistence("save invoice", errors.New("pq: connection reset")),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   dto.ErrCodePersistence,
			expectedMsg:    "A storage error occurred; no changes were made",
		},
		{
			name:           "foreign error",
			err:            errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   dto.ErrCodeInternal,
			expectedMsg:    "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
			c.Set(middleware.RequestIDKey, "req-1")

			h.HandleError(c, tt.err)

			assert.Equal(t, tt.expectedStatus, w.Code)
			resp := decode(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.expectedCode, resp.Error.Code)
			assert.Equal(t, tt.expectedMsg, resp.Error.Message)
			assert.Equal(t, "req-1", resp.Error.RequestID)
		})
	}
}

func TestBaseHandler_HandleError_Nil(t *testing.T) {
	h := &BaseHandler{}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	h.HandleError(c, nil)

	assert.False(t, c.Writer.Written())
}

func TestBaseHandler_ParamUUID(t *testing.T) {
	h := &BaseHandler{}

	t.Run("valid", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		want := uuid.New()
		c.Params = gin.Params{{Key: "payment_id", Value: want.String()}}

		got, ok := h.ParamUUID(c, "payment_id")
		assert.True(t, ok)
		assert.Equal(t, want, got)
	})

	t.Run("invalid", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Params = gin.Params{{Key: "payment_id", Value: "not-a-uuid"}}

		_, ok := h.ParamUUID(c, "payment_id")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid payment_id format", decode(t, w).Error.Message)
	})
}

func TestBaseHandler_BindJSON(t *testing.T) {
	h := &BaseHandler{}
	bind := func(body string) (*httptest.ResponseRecorder, bool) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")
		var req RecordCashPaymentRequest
		return w, h.BindJSON(c, &req)
	}

	t.Run("malformed JSON", func(t *testing.T) {
		w, ok := bind(`{"amount":`)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decode(t, w).Error.Code)
	})

	t.Run("field validation", func(t *testing.T) {
		w, ok := bind(`{"customer_id":"x","amount":"1.001"}`)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode(t, w)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Len(t, resp.Error.Details, 3)
	})

	t.Run("body over the limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"customer_id":"8a2a7d5e-9c8b-4b0e-a1d2-3f4e5a6b7c8d"}`))
		c.Request.Header.Set("Content-Type", "application/json")
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 8)

		var req RecordCashPaymentRequest
		assert.False(t, h.BindJSON(c, &req))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, dto.ErrCodeRequestTooLarge, decode(t, w).Error.Code)
	})

	t.Run("valid", func(t *testing.T) {
		_, ok := bind(`{"customer_id":"8a2a7d5e-9c8b-4b0e-a1d2-3f4e5a6b7c8d","amount":"20.00","received_by":"driver-7"}`)
		assert.True(t, ok)
	})
}
