// Package httputil holds the JSON response helpers, including the terminal
// error boundary that maps taxonomy errors to HTTP responses.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/redmonkez12/contacts-api/internal/apperror"
	"github.com/redmonkez12/contacts-api/internal/logging"
)

// errorBody is the wire shape of every failure response.
type errorBody struct {
	Message string            `json:"message"`
	Details []apperror.Detail `json:"details,omitempty"`
}

// RespondJSON sends a JSON response with the given status code.
// Logs encoding errors to avoid silent failures.
func RespondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.NewLogger(false).Error("failed to encode JSON response", "error", err)
	}
}

// RespondError is the terminal error handler. Taxonomy errors render their
// status and safe message; details are only included in the body for
// validation failures (400), where the first detail's message replaces the
// generic one. Anything else is a defect: it is logged loudly and answered
// with a generic 500 so bugs never hide behind a quiet error page.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.GetLoggerFromContext(r.Context())

	ae, ok := apperror.As(err)
	if !ok {
		logger.Error("unexpected non-taxonomy error, this is a defect", "error", err.Error())
		RespondJSON(w, errorBody{Message: "Internal server error"}, http.StatusInternalServerError)
		return
	}

	logger.Warn("request failed", "status", ae.StatusCode, "error", ae.Error())

	body := errorBody{Message: ae.Message}
	if ae.Kind == apperror.KindValidation && len(ae.Details) > 0 {
		body.Message = ae.Details[0].Message
		body.Details = ae.Details
	}
	RespondJSON(w, body, ae.StatusCode)
}
