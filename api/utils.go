package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/htol/techlib/logger"
	"github.com/htol/techlib/middleware"
	"github.com/htol/techlib/repo"
	"github.com/htol/techlib/service"
	"github.com/htol/techlib/storage"
	"github.com/htol/techlib/validator"
)

const maxJSONBody = 1 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// respondWithError logs an error and sends an HTTP error response as JSON
func respondWithError(w http.ResponseWriter, r *http.Request, message string, err error, statusCode int) {
	if statusCode >= http.StatusInternalServerError {
		logger.Error(message, "error", err, "status", statusCode, "request_id", middleware.GetRequestID(r.Context()))
	} else {
		logger.Debug(message, "error", err, "status", statusCode, "request_id", middleware.GetRequestID(r.Context()))
	}
	respondJSON(w, statusCode, errorBody{Error: message})
}

// respondWithValidationError sends a validation error response as JSON
func respondWithValidationError(w http.ResponseWriter, message string, fields map[string]string) {
	logger.Debug("Validation error", "message", message, "fields", fields)
	respondJSON(w, http.StatusBadRequest, errorBody{Error: message, Fields: fields})
}

// writeError maps a service error to its status code.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		respondWithValidationError(w, "validation failed", verr.Fields)
		return
	}

	status, message := statusOf(err)
	if status == http.StatusInternalServerError {
		respondWithError(w, r, "internal server error", err, status)
		return
	}
	respondWithError(w, r, message, err, status)
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, service.ErrInvalidCredentials.Error()
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "admin access required"
	case errors.Is(err, validator.ErrInvalidID),
		errors.Is(err, repo.ErrNotFound),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrBadName):
		return http.StatusNotFound, "not found"
	case errors.Is(err, service.ErrNoPDF):
		return http.StatusNotFound, service.ErrNoPDF.Error()
	case errors.Is(err, repo.ErrAlreadyExists), errors.Is(err, storage.ErrExists):
		return http.StatusConflict, "already exists"
	case errors.Is(err, storage.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, storage.ErrTooLarge.Error()
	case errors.Is(err, storage.ErrNotPDF):
		return http.StatusUnsupportedMediaType, storage.ErrNotPDF.Error()
	case errors.Is(err, storage.ErrNotReady):
		return http.StatusServiceUnavailable, storage.ErrNotReady.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

// decodeJSON reads a JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			respondWithValidationError(w, "request body is empty", nil)
			return false
		}
		respondWithValidationError(w, "invalid JSON body: "+err.Error(), nil)
		return false
	}
	return true
}

// pathParam returns a decoded URL parameter. chi matches on the raw path
// when the request carries one.
func pathParam(r *http.Request, key string) (string, bool) {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v, true
	}
	unescaped, err := url.PathUnescape(v)
	if err != nil {
		return "", false
	}
	return unescaped, true
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
