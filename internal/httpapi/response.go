// internal/httpapi/response.go

// Package httpapi holds the JSON envelope, error mapping and request helpers
// shared by the HTTP handlers.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"carmarket/internal/market"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// UserHeader carries the acting user's id, set by the session layer in front
// of this service.
const UserHeader = "X-User-ID"

var (
	// ErrBadRequest marks malformed payloads, headers or path parameters.
	ErrBadRequest = errors.New("bad request")
	// ErrUnauthenticated means the request carries no acting user.
	ErrUnauthenticated = errors.New("missing or invalid " + UserHeader + " header")
)

// Response is the envelope of every JSON reply.
type Response struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JSON writes a success envelope.
func JSON(w http.ResponseWriter, status int, data any, message string) {
	write(w, status, Response{Status: status, Message: message, Data: data})
}

// JSONError writes a failure envelope.
func JSONError(w http.ResponseWriter, status int, err error, message string) {
	write(w, status, Response{Status: status, Message: message, Error: err.Error()})
}

func write(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// MapErrorToHTTP maps service errors to a status code and short message.
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication required"
	}

	switch market.KindOf(err) {
	case market.KindNotFound:
		return http.StatusNotFound, "not found"
	case market.KindPermissionDenied:
		return http.StatusForbidden, "permission denied"
	case market.KindInvalidState:
		return http.StatusConflict, "conflict"
	case market.KindValidationFailed:
		return http.StatusUnprocessableEntity, "validation failed"
	case market.KindInsufficientFunds:
		return http.StatusPaymentRequired, "insufficient funds"
	default:
		return http.StatusServiceUnavailable, "temporarily unavailable, retry later"
	}
}

// WriteError maps err and writes it. Store failures are logged; their
// underlying cause is not echoed to the client.
func WriteError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	status, message := MapErrorToHTTP(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
		JSONError(w, status, market.ErrStoreFailure, message)
		return
	}
	log.WithError(err).WithField("status", status).Debug("request declined")
	JSONError(w, status, err, message)
}

// Decode reads a JSON body into v.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", ErrBadRequest, err)
	}
	return nil
}

// PathID parses a uuid path parameter.
func PathID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s %q is not a valid id", ErrBadRequest, name, raw)
	}
	return id, nil
}

// UserID returns the acting user.
func UserID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.Header.Get(UserHeader))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrUnauthenticated
	}
	return id, nil
}
