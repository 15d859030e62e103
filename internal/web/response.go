package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/septivank/meter-readings/internal/domain"
	"github.com/septivank/meter-readings/internal/logging"
	"github.com/septivank/meter-readings/internal/query"
	"go.uber.org/zap"
)

// Response is the envelope of every API response
type Response struct {
	Success bool   `json:"success"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, payload any) {
	writeJSON(w, http.StatusOK, Response{Success: true, Payload: payload})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Error: msg})
}

// respondError maps err onto a status code and logs server-side failures
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, "internal server error"

	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, msg = http.StatusNotFound, "meter reading not found"
	case errors.Is(err, query.ErrInvalidPageRequest), errors.Is(err, query.ErrInvalidPredicate):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrInvalidInput):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.As(err, &maxBytesErr):
		status, msg = http.StatusRequestEntityTooLarge, "file too large"
	}

	if status >= http.StatusInternalServerError {
		logging.WithRequestID(s.logger, middleware.GetReqID(r.Context())).Error("request error",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	writeError(w, status, msg)
}
