// internal/app/features/errors/errors.go
package errors

import "net/http"

// Handler serves the router's fallback responses.
type Handler struct{}

// NewHandler constructs an errors Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// NotFound answers requests that match no route.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	RenderNotFound(w, r, "No such endpoint.")
}

// MethodNotAllowed answers requests whose path matches with another method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	RenderError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed.")
}
