package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/agenthub-dev/agenthub/internal/catalog"
	"github.com/agenthub-dev/agenthub/internal/engine"
	"github.com/agenthub-dev/agenthub/internal/redact"
	"github.com/agenthub-dev/agenthub/internal/source"
)

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP statuses. Every outbound
// message passes through redaction.
func writeError(w http.ResponseWriter, err error) {
	var (
		valErr  *engine.ValidationError
		syncErr *source.SyncError
	)
	switch {
	case errors.As(err, &valErr):
		writeErrorCode(w, http.StatusBadRequest, "validation", valErr.Msg)
	case errors.Is(err, source.ErrInvalidSpec):
		writeErrorCode(w, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, source.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, "not-found", err.Error())
	case errors.Is(err, source.ErrExists):
		writeErrorCode(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, source.ErrNotRemovable):
		writeErrorCode(w, http.StatusForbidden, "not-removable", err.Error())
	case errors.Is(err, catalog.ErrUnavailable):
		writeErrorCode(w, http.StatusServiceUnavailable, "catalog-unavailable", err.Error())
	case errors.As(err, &syncErr):
		writeErrorCode(w, http.StatusBadGateway, "sync-failed", err.Error())
	default:
		writeErrorCode(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = redact.String(message)
	writeJSON(w, status, body)
}
