package apperrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies an application error so callers can branch without
// inspecting message text.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindConflict            Kind = "conflict"
	KindCapacityExceeded    Kind = "capacity_exceeded"
	KindNotFound            Kind = "not_found"
	KindAuthorization       Kind = "authorization"
	KindExternalService     Kind = "external_service"
	KindGenerationExhausted Kind = "generation_exhausted"
	KindInternal            Kind = "internal"
)

// Error represents an application error
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match when target is an *Error of the same kind and, if the
// target carries a message, the same message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// StatusCode maps the error kind onto an HTTP status.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindCapacityExceeded:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthorization:
		return http.StatusForbidden
	case KindExternalService:
		return http.StatusServiceUnavailable
	case KindGenerationExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new Error
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error { return New(KindValidation, message, nil) }

func Conflict(message string) *Error { return New(KindConflict, message, nil) }

func CapacityExceeded(message string) *Error { return New(KindCapacityExceeded, message, nil) }

func NotFound(message string) *Error { return New(KindNotFound, message, nil) }

func Forbidden(message string) *Error { return New(KindAuthorization, message, nil) }

func External(message string, err error) *Error { return New(KindExternalService, message, err) }

func Internal(message string, err error) *Error { return New(KindInternal, message, err) }

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// From converts any error into an *Error, wrapping foreign errors as internal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("Internal server error", err)
}

// Domain messages surfaced verbatim to callers.
const (
	MsgCouponInactive       = "Coupon is not active"
	MsgCouponOutsideWindow  = "Coupon has expired or is not yet valid"
	MsgCouponLimitExceeded  = "Coupon usage limit exceeded"
	MsgCouponAlreadyUsed    = "Coupon already used for this course"
	MsgCouponInUse          = "cannot delete used coupon"
	MsgCouponCodeExists     = "Coupon code already exists"
	MsgAlreadyEnrolled      = "Student is already enrolled in this course"
	MsgCourseFull           = "Course is full"
	MsgCodeGenerationFailed = "Failed to generate a unique coupon code"
)

var (
	ErrAlreadyEnrolled   = Conflict(MsgAlreadyEnrolled)
	ErrCouponAlreadyUsed = Conflict(MsgCouponAlreadyUsed)
	ErrCourseFull        = CapacityExceeded(MsgCourseFull)
	ErrCouponInUse       = Conflict(MsgCouponInUse)
)

// Respond writes err as JSON using its mapped status code.
func Respond(c *gin.Context, err error) {
	appErr := From(err)
	status := appErr.StatusCode()
	msg := appErr.Message
	if status >= http.StatusInternalServerError && appErr.Kind == KindInternal {
		msg = "Internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "kind": appErr.Kind})
}

// ErrorMiddleware renders the last error attached with c.Error when the
// handler did not write a response itself.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			Respond(c, c.Errors.Last().Err)
		}
	}
}
