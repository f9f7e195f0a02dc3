// internal/app/features/auditlog/list.go
package auditlog

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/dalemusser/waffle/pantry/query"
	uierrors "github.com/tradeya/tradeya/internal/app/features/errors"
	"github.com/tradeya/tradeya/internal/app/features/shared"
	"github.com/tradeya/tradeya/internal/app/store/audit"
	"github.com/tradeya/tradeya/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	pageSize     = 50
	historyLimit = 200
)

// ServeList handles GET /api/admin/audit.
//
// Filters: category, event_type, user_id, entity_id, start_date and
// end_date (YYYY-MM-DD, end inclusive), page (1-based).
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	category := query.Get(r, "category")
	eventType := query.Get(r, "event_type")
	if category != "" && eventTypesForCategory(category) == nil {
		uierrors.RenderBadRequest(w, r, "Unknown audit category.")
		return
	}
	if eventType != "" && !slices.Contains(eventTypesForCategory(category), eventType) {
		uierrors.RenderBadRequest(w, r, "Unknown event type for this category.")
		return
	}

	page := 1
	if p, err := strconv.Atoi(query.Get(r, "page")); err == nil && p > 0 {
		page = p
	}

	filter := audit.QueryFilter{
		Category:  category,
		EventType: eventType,
		Limit:     pageSize,
		Offset:    int64((page - 1) * pageSize),
	}
	for name, dst := range map[string]**primitive.ObjectID{"user_id": &filter.UserID, "entity_id": &filter.EntityID} {
		v := query.Get(r, name)
		if v == "" {
			continue
		}
		id, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			uierrors.RenderBadRequest(w, r, "Invalid "+name+".")
			return
		}
		*dst = &id
	}
	if v := query.Get(r, "start_date"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			uierrors.RenderBadRequest(w, r, "start_date must be YYYY-MM-DD.")
			return
		}
		filter.StartTime = &t
	}
	if v := query.Get(r, "end_date"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			uierrors.RenderBadRequest(w, r, "end_date must be YYYY-MM-DD.")
			return
		}
		endOfDay := t.Add(24*time.Hour - time.Nanosecond)
		filter.EndTime = &endOfDay
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit log list")
	defer cancel()

	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "query audit events", err, "")
		return
	}
	total, err := h.Events.CountByFilter(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count audit events", err, "")
		return
	}

	totalPages := max(int((total+pageSize-1)/pageSize), 1)
	uierrors.WriteJSON(w, http.StatusOK, listResponse{
		Items:      h.items(ctx, events),
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
	})
}

// ServeEntity handles GET /api/admin/audit/entity/{id}: the recorded
// history of one trade, collaboration, challenge or user.
func (h *Handler) ServeEntity(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.IDParam(r, "id")
	if !ok {
		uierrors.RenderNotFound(w, r, "Not found.")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "audit entity history")
	defer cancel()

	events, err := h.Events.GetByEntity(ctx, id, historyLimit)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "entity audit history", err, "", zap.String("entity_id", id.Hex()))
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, shared.Items(h.items(ctx, events)))
}

// ServeCategories handles GET /api/admin/audit/categories.
func (h *Handler) ServeCategories(w http.ResponseWriter, r *http.Request) {
	uierrors.WriteJSON(w, http.StatusOK, shared.Items(allCategories()))
}

// items resolves actor and target names in one batch lookup.
func (h *Handler) items(ctx context.Context, events []audit.Event) []listItem {
	userIDs := make(map[primitive.ObjectID]struct{})
	for _, e := range events {
		if e.ActorID != nil {
			userIDs[*e.ActorID] = struct{}{}
		}
		if e.UserID != nil {
			userIDs[*e.UserID] = struct{}{}
		}
	}

	userNames := make(map[primitive.ObjectID]string)
	if len(userIDs) > 0 {
		ids := make([]primitive.ObjectID, 0, len(userIDs))
		for id := range userIDs {
			ids = append(ids, id)
		}
		users, err := h.Users.GetByIDs(ctx, ids)
		if err != nil {
			h.Log.Warn("failed to fetch user names for audit log", zap.Error(err))
		}
		for _, u := range users {
			userNames[u.ID] = u.DisplayName
		}
	}

	name := func(id primitive.ObjectID) string {
		if n, ok := userNames[id]; ok {
			return n
		}
		return id.Hex()
	}

	items := make([]listItem, 0, len(events))
	for _, e := range events {
		item := listItem{
			ID:         e.ID.Hex(),
			Timestamp:  e.Timestamp,
			Category:   e.Category,
			EventType:  e.EventType,
			EntityKind: e.EntityKind,
			IP:         e.IP,
			Success:    e.Success,
			Failure:    e.FailureReason,
			Details:    e.Details,
		}
		if e.ActorID != nil {
			item.ActorID = e.ActorID.Hex()
			item.ActorName = name(*e.ActorID)
		}
		if e.UserID != nil {
			item.TargetID = e.UserID.Hex()
			item.TargetName = name(*e.UserID)
		}
		if e.EntityID != nil {
			item.EntityID = e.EntityID.Hex()
		}
		items = append(items, item)
	}
	return items
}
