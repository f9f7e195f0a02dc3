// internal/app/features/errors/render.go
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/tradeya/tradeya/internal/app/system/inputval"
)

// Body is the JSON shape of every error response.
type Body struct {
	Error   string                `json:"error"`
	Message string                `json:"message"`
	Fields  []inputval.FieldError `json:"fields,omitempty"`
}

// WriteJSON writes v as the response with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RenderError writes an error body.
func RenderError(w http.ResponseWriter, _ *http.Request, status int, code, msg string) {
	WriteJSON(w, status, Body{Error: code, Message: msg})
}

// RenderBadRequest reports malformed or invalid input.
func RenderBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	RenderError(w, r, http.StatusBadRequest, "bad_request", msg)
}

// RenderValidation reports failed field rules, one entry per field.
func RenderValidation(w http.ResponseWriter, _ *http.Request, res *inputval.Result) {
	WriteJSON(w, http.StatusBadRequest, Body{Error: "validation_failed", Message: res.First(), Fields: res.Errors})
}

// RenderUnauthorized asks the client to sign in.
func RenderUnauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	if msg == "" {
		msg = "Please sign in to continue."
	}
	RenderError(w, r, http.StatusUnauthorized, "unauthorized", msg)
}

// RenderForbidden reports a signed-in user acting outside their rights.
func RenderForbidden(w http.ResponseWriter, r *http.Request, msg string) {
	if msg == "" {
		msg = "You don't have permission to do that."
	}
	RenderError(w, r, http.StatusForbidden, "forbidden", msg)
}

// RenderNotFound reports a missing resource.
func RenderNotFound(w http.ResponseWriter, r *http.Request, msg string) {
	RenderError(w, r, http.StatusNotFound, "not_found", msg)
}

// RenderConflict reports a request that clashes with the current state.
func RenderConflict(w http.ResponseWriter, r *http.Request, msg string) {
	RenderError(w, r, http.StatusConflict, "conflict", msg)
}

// RenderTooManyRequests reports a rate limit.
func RenderTooManyRequests(w http.ResponseWriter, r *http.Request, msg string) {
	RenderError(w, r, http.StatusTooManyRequests, "rate_limited", msg)
}

// RenderServerError reports an internal failure without detail.
func RenderServerError(w http.ResponseWriter, r *http.Request, msg string) {
	if msg == "" {
		msg = "Something went wrong. Please try again."
	}
	RenderError(w, r, http.StatusInternalServerError, "server_error", msg)
}

// RenderServiceUnavailable reports a dependency that is down or not configured.
func RenderServiceUnavailable(w http.ResponseWriter, r *http.Request, msg string) {
	RenderError(w, r, http.StatusServiceUnavailable, "unavailable", msg)
}
