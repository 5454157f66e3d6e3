// Package api serves consultations over HTTP/JSON and WebSocket.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/xaenox/astro-bot/internal/consultation"
	"github.com/xaenox/astro-bot/internal/storage"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

// Handler provides the consultation HTTP endpoints.
type Handler struct {
	svc    *consultation.Service
	logger *zap.Logger
}

func NewHandler(svc *consultation.Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// errorStatus maps service errors to a status code and a message that is safe
// to show to the caller.
func errorStatus(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, consultation.ErrEmptyMessage),
		errors.Is(err, consultation.ErrInvalidForm),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, consultation.ErrMessageTooLong), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, storage.ErrSessionNotFound):
		return http.StatusNotFound, "session not found"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
	}
	Error(w, status, message)
}

// decodeJSON reads a JSON body into v. An empty body is accepted when
// optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}
