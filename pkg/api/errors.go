package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the JSON body for every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrNotFound is returned by handlers when a run does not exist.
var ErrNotFound = errors.New("not found")

// writeError maps an error to an HTTP status and writes a consistent JSON
// body, logging anything that is not an expected client-facing condition.
func writeError(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		slog.Error("api: request failed", "status", status, "error", err)
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}
