package web

// errors.go turns handler errors into JSON responses.
//
// Validation failures keep their field messages and return 422. Everything
// else goes through core.MapError so clients get a stable message and code
// while the technical error is only logged, tagged with the request ID.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/csvingest/internal/core"
	"github.com/JonMunkholm/csvingest/internal/logging"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Message string              `json:"message"`
	Action  string              `json:"action,omitempty"`
	Code    string              `json:"code,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// respondError logs err and writes the matching error response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.WithFields(r.Context(), "path", r.URL.Path, "method", r.Method)

	var ve *core.ValidationError
	if errors.As(err, &ve) {
		logger.Info("upload rejected", "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Message: ve.Message,
			Errors:  ve.Errors,
		})
		return
	}

	status := statusFor(err)
	msg := core.MapError(err)

	if status >= http.StatusInternalServerError {
		logger.Error("request error", "status", status, "error", err, "code", msg.Code)
	} else {
		logger.Warn("request error", "status", status, "error", err, "code", msg.Code)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, ErrorResponse{
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUploadNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyUploads),
		errors.Is(err, core.ErrQueueFull),
		errors.Is(err, core.ErrQueueClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
