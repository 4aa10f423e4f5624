package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/xraph/quota"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeError maps err onto a status. Internal faults are logged and never
// echoed to the client.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "api: request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeMessage(w, status, "internal error")
		return
	}
	writeMessage(w, status, err.Error())
}

func statusOf(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, quota.ErrUnauthorized):
		return http.StatusUnauthorized
	case quota.IsNotFound(err):
		return http.StatusNotFound
	case quota.IsConflict(err):
		return http.StatusConflict
	case quota.IsInvalidInput(err), errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.Is(err, quota.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, quota.ErrUpstreamFailure):
		return http.StatusBadGateway
	case quota.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
