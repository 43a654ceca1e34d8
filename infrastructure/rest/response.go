package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"team-chat/errors"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError renders err as {"message": ...} with the status of its kind.
// Internal failures never leak their text.
func WriteError(w http.ResponseWriter, err error) {
	writeJSON(w, errors.HTTPStatus(err), messageResponse{Message: errors.PublicMessage(err)})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.log.Log(r.Context(), level, "Request failed",
		"method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	WriteError(w, err)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.ErrInvalidRequest
	}
	return nil
}
