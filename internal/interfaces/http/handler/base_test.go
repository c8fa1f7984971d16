package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	salesapp "github.com/erp/salesops/internal/application/sales"
	"github.com/erp/salesops/internal/domain/shared"
	"github.com/erp/salesops/internal/interfaces/http/dto"
	"github.com/erp/salesops/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext(method, target string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, nil)
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetRequestID(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/")
	assert.Empty(t, getRequestID(c))

	c.Request.Header.Set(middleware.HeaderRequestID, "header-id")
	assert.Equal(t, "header-id", getRequestID(c))

	c.Set(middleware.RequestIDKey, "ctx-id")
	assert.Equal(t, "ctx-id", getRequestID(c), "context takes precedence over header")
}

func TestBaseHandler_SuccessResponses(t *testing.T) {
	h := &BaseHandler{}

	c, w := newTestContext(http.MethodGet, "/")
	h.Success(c, map[string]string{"key": "value"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w).Success)

	c, w = newTestContext(http.MethodPost, "/")
	h.Created(c, map[string]string{"id": "123"})
	assert.Equal(t, http.StatusCreated, w.Code)

	c, w = newTestContext(http.MethodGet, "/")
	h.SuccessWithMeta(c, []string{"a", "b"}, 45, 2, 20)
	resp := decode(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(45), resp.Meta.Total)
	assert.Equal(t, 3, resp.Meta.TotalPages)

	r := gin.New()
	r.DELETE("/x", h.NoContent)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.Bytes())
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{
			name:   "not found",
			err:    shared.ErrNotFound,
			status: http.StatusNotFound,
			code:   dto.ErrCodeNotFound,
		},
		{
			name:    "wrapped validation error",
			err:     fmt.Errorf("create quote: %w", shared.NewValidationError("client_id", "Client not found")),
			status:  http.StatusBadRequest,
			code:    dto.ErrCodeValidation,
			message: "client_id: Client not found",
		},
		{
			name:   "invalid state",
			err:    shared.NewDomainError(shared.CodeInvalidState, "Cannot transition quote from accepted to draft"),
			status: http.StatusUnprocessableEntity,
			code:   dto.ErrCodeInvalidState,
		},
		{
			name:   "concurrency conflict",
			err:    shared.ErrConcurrencyConflict,
			status: http.StatusConflict,
			code:   dto.ErrCodeConcurrencyConflict,
		},
		{
			name: "saga failure",
			err: &salesapp.SagaError{
				Operation:   "quote creation",
				Step:        "reserve line 2",
				Cause:       shared.ErrInsufficientStock,
				Compensated: true,
			},
			status:  http.StatusConflict,
			code:    dto.ErrCodeReservationConflict,
			message: "quote creation failed at reserve line 2: Insufficient stock available (rolled back)",
		},
		{
			name:    "unknown error",
			err:     errors.New("connection reset"),
			status:  http.StatusInternalServerError,
			code:    dto.ErrCodeInternal,
			message: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			c, w := newTestContext(http.MethodGet, "/")
			c.Set(middleware.RequestIDKey, "req-1")

			h.HandleError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			resp := decode(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, "req-1", resp.Error.RequestID)
			if tt.message != "" {
				assert.Equal(t, tt.message, resp.Error.Message)
			}
		})
	}
}

func TestBaseHandler_HandleErrorNil(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext(http.MethodGet, "/")
	h.HandleError(c, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.Bytes())
}

func TestBaseHandler_ParseID(t *testing.T) {
	h := &BaseHandler{}
	r := gin.New()
	r.GET("/quotes/:id", func(c *gin.Context) {
		if _, ok := h.parseID(c, "id"); ok {
			c.Status(http.StatusOK)
		}
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/quotes/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid id format", decode(t, w).Error.Message)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/quotes/4f1c2e1a-7a4e-4c62-9d0a-1f6a2b3c4d5e", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
