// Package apierr is the unified error envelope returned by every HTTP
// and UDS endpoint. Success bodies are endpoint-specific and carry no
// success flag; error bodies always render as Error so a client needs
// one decode path regardless of endpoint.
package apierr

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Code identifies the class of failure, stable across releases so
// clients can branch on it instead of parsing Message.
type Code string

const (
	CodeNotFound     Code = "not_found"
	CodeInvalidInput Code = "invalid_input"
	CodeConflict     Code = "conflict"
	CodeLocked       Code = "locked"
	CodeUnavailable  Code = "unavailable"
	CodeInternal     Code = "internal"
)

// Error is the JSON body of every non-2xx response.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// httpStatus maps a Code to its HTTP status. The UDS listener serves
// the same HTTP router, so responses on both listeners carry it.
func httpStatus(code Code) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeConflict, CodeLocked:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Abort writes an Error body with the status matching code and stops
// further gin handler chain processing.
func Abort(c *gin.Context, code Code, message string) {
	c.AbortWithStatusJSON(httpStatus(code), Error{Code: code, Message: message})
}

// NotFound is a convenience wrapper for the common "no such X" case.
func NotFound(c *gin.Context, message string) {
	Abort(c, CodeNotFound, message)
}

// InvalidInput is a convenience wrapper for request validation failures.
func InvalidInput(c *gin.Context, message string) {
	Abort(c, CodeInvalidInput, message)
}

// Internal is a convenience wrapper for unexpected server-side failures.
func Internal(c *gin.Context, message string) {
	Abort(c, CodeInternal, message)
}
