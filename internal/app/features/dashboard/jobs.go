// internal/app/features/dashboard/jobs.go
package dashboard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/features/shared"
	"github.com/tradeya/tradeya/internal/app/system/authz"
	"github.com/tradeya/tradeya/internal/app/system/tasks"
	"github.com/tradeya/tradeya/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// ServeJobs handles GET /api/admin/jobs.
func (h *Handler) ServeJobs(w http.ResponseWriter, r *http.Request) {
	if h.Jobs == nil {
		uierrors.WriteJSON(w, http.StatusOK, shared.Items([]tasks.JobInfo{}))
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, shared.Items(h.Jobs.Jobs()))
}

type runResponse struct {
	Job  string `json:"job"`
	Took string `json:"took"`
}

// HandleRunJob handles POST /api/admin/jobs/{name}/run. The job runs
// synchronously so the caller sees its outcome.
func (h *Handler) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	if h.Jobs == nil {
		uierrors.RenderServiceUnavailable(w, r, "Background jobs are not running.")
		return
	}
	name := chi.URLParam(r, "name")
	_, uname, _, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Job())
	defer cancel()

	start := time.Now()
	err := h.Jobs.RunNow(ctx, name)
	switch {
	case errors.Is(err, tasks.ErrUnknownJob):
		uierrors.RenderNotFound(w, r, "Unknown job.")
		return
	case errors.Is(err, tasks.ErrJobBusy):
		uierrors.RenderConflict(w, r, "The job is already running.")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "manual job run failed", err, "The job failed. See the server log.", zap.String("job", name))
		return
	}
	h.Log.Info("job run by admin", zap.String("job", name), zap.String("user", uname))
	uierrors.WriteJSON(w, http.StatusOK, runResponse{Job: name, Took: time.Since(start).Round(time.Millisecond).String()})
}
