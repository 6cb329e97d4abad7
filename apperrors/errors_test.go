package apperrors_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/iPranay05/Skill-Prob-sub002/apperrors"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestIs_MatchesKindAndMessage(t *testing.T) {
	err := fmt.Errorf("enroll: %w", apperrors.Conflict(apperrors.MsgAlreadyEnrolled))

	assert.True(t, errors.Is(err, apperrors.ErrAlreadyEnrolled))
	assert.False(t, errors.Is(err, apperrors.ErrCouponAlreadyUsed))
	assert.True(t, errors.Is(err, &apperrors.Error{Kind: apperrors.KindConflict}))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, apperrors.KindCapacityExceeded, apperrors.KindOf(apperrors.ErrCourseFull))
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(errors.New("boom")))
}

func TestStatusCode(t *testing.T) {
	cases := map[apperrors.Kind]int{
		apperrors.KindValidation:          http.StatusBadRequest,
		apperrors.KindConflict:            http.StatusConflict,
		apperrors.KindCapacityExceeded:    http.StatusConflict,
		apperrors.KindNotFound:            http.StatusNotFound,
		apperrors.KindAuthorization:       http.StatusForbidden,
		apperrors.KindExternalService:     http.StatusServiceUnavailable,
		apperrors.KindGenerationExhausted: http.StatusServiceUnavailable,
		apperrors.KindInternal:            http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, apperrors.New(kind, "x", nil).StatusCode(), string(kind))
	}
}

func TestErrorMiddleware_RendersAttachedError(t *testing.T) {
	r := gin.New()
	r.Use(apperrors.ErrorMiddleware())
	r.GET("/x", func(c *gin.Context) {
		_ = c.Error(apperrors.NotFound("Enrollment not found"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Enrollment not found")
	assert.Contains(t, w.Body.String(), `"kind":"not_found"`)
}

func TestRespond_HidesInternalDetail(t *testing.T) {
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		apperrors.Respond(c, errors.New("pq: connection refused"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}
