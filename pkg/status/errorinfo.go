package status

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorResponse is the JSON body returned with any failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrorInfo is an error returned to the user. The message MUST only contain
// user visible state, never internal details.
type ErrorInfo struct {
	StatusCode int
	Message    string
}

func NewErrorInfo(statusCode int, format string, args ...any) *ErrorInfo {
	return &ErrorInfo{
		StatusCode: statusCode,
		Message:    fmt.Sprintf(format, args...),
	}
}

// Response returns the body to write for the error.
func (e *ErrorInfo) Response() *ErrorResponse {
	return &ErrorResponse{Error: e.Message}
}

func (e *ErrorInfo) Error() string {
	return fmt.Sprintf(
		"%s (%d): %s",
		strings.ToLower(http.StatusText(e.StatusCode)),
		e.StatusCode,
		e.Message,
	)
}
