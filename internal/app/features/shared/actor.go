// internal/app/features/shared/actor.go
package shared

import (
	"net/http"

	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/system/paging"
	"github.com/tradeya/tradeya/internal/app/workflow"
)

// Actor resolves the signed-in user for a workflow call. It has written an
// error response when ok is false.
func Actor(w http.ResponseWriter, r *http.Request, svc *workflow.Service, errLog *uierrors.ErrorLogger) (workflow.Actor, bool) {
	a, err := svc.ActorFor(r)
	if err != nil {
		errLog.HandleWorkflow(w, r, "resolve actor", err)
		return workflow.Actor{}, false
	}
	return a, true
}

// Items wraps a non-paged list so every list response is an object.
func Items[T any](items []T) paging.Page[T] {
	if items == nil {
		items = []T{}
	}
	return paging.Page[T]{Items: items}
}
