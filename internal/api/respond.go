package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/p-n-ai/pai-paths/internal/learning"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "status", status, "error", err)
	}
}

// writeError maps engine error kinds onto HTTP statuses. Internal errors are logged and
// their detail is not returned to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch learning.Kind(err) {
	case learning.KindNotFound:
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: string(learning.KindNotFound), Message: err.Error()})
	case learning.KindInvalid:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: string(learning.KindInvalid), Message: err.Error()})
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: string(learning.KindInternal), Message: "internal error"})
	}
}

// decodeJSON reads a single JSON object into v, rejecting unknown fields and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("decode request body: %v", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", learning.ErrInvalidInput, fmt.Sprintf(format, args...))
}
