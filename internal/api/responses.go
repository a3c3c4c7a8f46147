package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondWithJSON writes a JSON response with the given status code
func respondWithJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondWithError maps err to a status and writes it. 5xx errors are
// logged with the full cause.
func respondWithError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := MapErrorToStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err, "path", r.URL.Path, "status", status)
	} else {
		logger.Debug("request rejected", "error", err, "path", r.URL.Path, "status", status)
	}
	respondWithJSON(w, status, ErrorResponse{Error: safeErrorMessage(err)})
}

// decodeAndValidate reads a JSON body into v and checks its validate tags
func decodeAndValidate(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	return nil
}
