// Package handlers provides HTTP handlers for the Nimbus API.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/nimbusfs/nimbus/pkg/store/metadata"
	"github.com/nimbusfs/nimbus/pkg/store/users"
)

// Problem represents an RFC 7807 "problem details" response.
// https://tools.ietf.org/html/rfc7807
type Problem struct {
	// Type is a URI reference that identifies the problem type.
	// If not set, defaults to "about:blank".
	Type string `json:"type,omitempty"`

	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`

	// Status is the HTTP status code for this occurrence of the problem.
	Status int `json:"status"`

	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`
}

// ContentTypeProblemJSON is the Content-Type for RFC 7807 problem responses.
const ContentTypeProblemJSON = "application/problem+json"

// WriteProblem writes an RFC 7807 problem response.
func WriteProblem(w http.ResponseWriter, status int, title, detail string) {
	problem := &Problem{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	}

	w.Header().Set("Content-Type", ContentTypeProblemJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

// BadRequest writes a 400 Bad Request problem response.
func BadRequest(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusBadRequest, "Bad Request", detail)
}

// Unauthorized writes a 401 Unauthorized problem response.
func Unauthorized(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusUnauthorized, "Unauthorized", detail)
}

// Forbidden writes a 403 Forbidden problem response.
func Forbidden(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusForbidden, "Forbidden", detail)
}

// NotFound writes a 404 Not Found problem response.
func NotFound(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusNotFound, "Not Found", detail)
}

// Conflict writes a 409 Conflict problem response.
func Conflict(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusConflict, "Conflict", detail)
}

// InsufficientStorage writes a 507 Insufficient Storage problem response.
func InsufficientStorage(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusInsufficientStorage, "Insufficient Storage", detail)
}

// InternalServerError writes a 500 Internal Server Error problem response.
func InternalServerError(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", detail)
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteJSONOK writes a 200 OK JSON response.
func WriteJSONOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteJSONCreated writes a 201 Created JSON response.
func WriteJSONCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a 204 No Content response.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is
// written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// writeStoreError maps a drive/store error onto the matching problem
// response.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case metadata.IsNotFound(err):
		NotFound(w, err.Error())
	case metadata.IsConflict(err):
		Conflict(w, err.Error())
	case metadata.IsPermissionDenied(err):
		Forbidden(w, err.Error())
	case metadata.IsQuotaExceeded(err):
		InsufficientStorage(w, err.Error())
	case metadata.IsValidation(err), metadata.IsInvalidTarget(err):
		BadRequest(w, err.Error())
	default:
		InternalServerError(w, err.Error())
	}
}

// ActorHeader carries the username of the acting user. Authentication is
// performed upstream; the API trusts this header.
const ActorHeader = "X-Nimbus-Actor"

type contextKey string

const actorKey contextKey = "actor"

// ActorResolver is middleware that resolves the X-Nimbus-Actor username
// to an account ID and stores it in the request context. Requests with a
// missing or unknown actor are rejected with 401.
func ActorResolver(userStore users.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username := r.Header.Get(ActorHeader)
			if username == "" {
				Unauthorized(w, "Missing "+ActorHeader+" header")
				return
			}

			user, err := userStore.GetUserByUsername(r.Context(), username)
			if err != nil {
				if metadata.IsNotFound(err) {
					Unauthorized(w, "Unknown actor "+username)
					return
				}
				InternalServerError(w, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), actorKey, user.UserID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// actorFrom extracts the resolved acting user from the request context.
// Returns false (and writes 401) when ActorResolver did not run.
func actorFrom(w http.ResponseWriter, r *http.Request) (metadata.UserID, bool) {
	actor, ok := r.Context().Value(actorKey).(metadata.UserID)
	if !ok {
		Unauthorized(w, "Missing "+ActorHeader+" header")
		return "", false
	}
	return actor, true
}
