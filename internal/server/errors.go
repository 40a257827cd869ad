package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"paper-notes-app/internal/notes"
	"paper-notes-app/internal/pics"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

var errInvalidRequest = errors.New("invalid request")

// statusFor maps domain errors to HTTP status codes. Anything unknown is
// treated as an I/O failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pics.ErrMissingPaperID),
		errors.Is(err, pics.ErrInvalidPaperID),
		errors.Is(err, pics.ErrMissingFile),
		errors.Is(err, pics.ErrUnsupportedExt),
		errors.Is(err, pics.ErrFileTooLarge),
		errors.Is(err, notes.ErrPaperNotObject),
		errors.Is(err, errInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, notes.ErrPaperNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// abortWithError writes the error body. Client errors carry their message
// in "error"; server errors use message and put the cause in "details".
func abortWithError(c *gin.Context, message string, err error) {
	status := statusFor(err)
	body := ErrorResponse{Error: message, Details: err.Error()}
	if status < http.StatusInternalServerError {
		body = ErrorResponse{Error: err.Error()}
	}
	c.AbortWithStatusJSON(status, body)
}
