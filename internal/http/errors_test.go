package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/taskvip/walletcore/internal/apperr"
)

func renderError(t *testing.T, err error) (int, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/x", func(c *gin.Context) { WriteError(c, err) })
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	var body map[string]any
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode body: %v", errDecode)
	}
	return rec.Code, body
}

func TestWriteErrorStatusTable(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.ErrInvalidAmount, http.StatusBadRequest},
		{apperr.ErrSelfAction, http.StatusForbidden},
		{apperr.ErrCapacityExceeded, http.StatusConflict},
		{apperr.ErrInsufficientBalance, http.StatusPaymentRequired},
		{apperr.ErrInvalidTransition, http.StatusConflict},
		{apperr.NotFound("withdrawal"), http.StatusNotFound},
		{apperr.Consistency("broken"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", apperr.ErrNotOwner), http.StatusForbidden},
		{apperr.ErrUserDisabled, http.StatusForbidden},
		{errors.New("db down"), http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		if got, _ := renderError(t, tc.err); got != tc.want {
			t.Fatalf("%v: status %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestWriteErrorBody(t *testing.T) {
	_, body := renderError(t, apperr.Validation("payment_details.ifsc", "ifsc must match AAAA0XXXXXX"))
	if body["kind"] != "validation" || body["code"] != "invalid_field" || body["field"] != "payment_details.ifsc" || body["error"] == "" {
		t.Fatalf("unexpected body %v", body)
	}
	_, internal := renderError(t, errors.New("secret dsn leaked"))
	if internal["error"] != "internal error" {
		t.Fatalf("internal error detail leaked: %v", internal)
	}
}
