// internal/app/features/errors/logger.go
package errors

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/tradeya/tradeya/internal/app/workflow"
	"go.uber.org/zap"
)

// ErrorLogger logs server-side failures with request context before the
// handler writes the error response.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger creates an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{log: logger}
}

func (l *ErrorLogger) fields(r *http.Request, err error, extra []zap.Field) []zap.Field {
	fs := []zap.Field{
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		fs = append(fs, zap.String("request_id", id))
	}
	return append(fs, extra...)
}

// LogServerError logs msg with err and responds 500 with userMsg.
func (l *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string, extra ...zap.Field) {
	l.log.Error(msg, l.fields(r, err, extra)...)
	RenderServerError(w, r, userMsg)
}

// HandleWorkflow maps an error from the workflow service onto a response.
// Unclassified errors are logged as server errors with msg.
func (l *ErrorLogger) HandleWorkflow(w http.ResponseWriter, r *http.Request, msg string, err error, extra ...zap.Field) {
	var we *workflow.Error
	if !errors.As(err, &we) {
		l.LogServerError(w, r, msg, err, "", extra...)
		return
	}
	switch we.Kind {
	case workflow.ErrNotFound:
		RenderNotFound(w, r, we.Msg)
	case workflow.ErrForbidden:
		RenderForbidden(w, r, we.Msg)
	case workflow.ErrConflict:
		l.log.Debug(msg, l.fields(r, err, extra)...)
		RenderConflict(w, r, we.Msg)
	case workflow.ErrInvalid:
		RenderBadRequest(w, r, we.Msg)
	default:
		l.LogServerError(w, r, msg, err, "", extra...)
	}
}
