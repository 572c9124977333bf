package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"taskboard/internal/recurrence"
	"taskboard/internal/repository"
	"taskboard/internal/service"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Code: code, Message: msg})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(service.ErrValidation, err)
	}
	return nil
}

// fail maps service errors to HTTP responses.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, recurrence.ErrInvalidDate),
		errors.Is(err, recurrence.ErrMissingRecurrenceDays),
		errors.Is(err, recurrence.ErrUnknownRecurrenceType),
		errors.Is(err, recurrence.ErrInvalidWeekday):
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid credentials")
	case errors.Is(err, service.ErrNoPhone):
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "permission_denied", "not allowed")
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, repository.ErrDuplicate):
		writeError(w, http.StatusConflict, "already_exists", "already exists")
	default:
		s.deps.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
