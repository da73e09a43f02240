package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/thomasnguyen/corgi-quest/internal/api/respond"
	"github.com/thomasnguyen/corgi-quest/internal/api/validate"
	"github.com/thomasnguyen/corgi-quest/internal/model"
	"github.com/thomasnguyen/corgi-quest/internal/services"
)

const defaultActivityLimit = 20

type ActivityHandler struct {
	activities *services.ActivityService
	log        zerolog.Logger
}

func NewActivityHandler(activities *services.ActivityService, log zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{activities: activities, log: log}
}

// activityResponse adds the spoken summary to a logged activity.
type activityResponse struct {
	*model.ActivityResult
	Message string `json:"message"`
}

type catalogActivityRequest struct {
	ActivityType    string `json:"activityType"`
	DurationMinutes int    `json:"durationMinutes"`
}

// postableSources are the ?source= values a client may claim. Catalog and
// voice entries go through their own endpoints.
var postableSources = map[string]model.ActivitySource{
	"":                           model.SourceManual,
	string(model.SourceManual):   model.SourceManual,
	string(model.SourceRealtime): model.SourceRealtime,
}

// ListActivities GET /api/households/{householdId}/activities?limit=&since=
func (h *ActivityHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	householdID := mux.Vars(r)["householdId"]
	q := r.URL.Query()
	limit, err := validate.Limit(q.Get("limit"), defaultActivityLimit)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	var items []*model.Activity
	if since := q.Get("since"); since != "" {
		day, err := validate.Date("since", since)
		if err != nil {
			respond.WriteBadRequest(w, err.Error())
			return
		}
		items, err = h.activities.ListSince(r.Context(), householdID, day, limit)
		if err != nil {
			writeServiceError(w, h.log, err)
			return
		}
	} else {
		items, err = h.activities.ListRecent(r.Context(), householdID, limit)
		if err != nil {
			writeServiceError(w, h.log, err)
			return
		}
	}
	respond.WriteList(w, items)
}

// LogActivity POST /api/households/{householdId}/activities?source=
func (h *ActivityHandler) LogActivity(w http.ResponseWriter, r *http.Request) {
	householdID := mux.Vars(r)["householdId"]
	source, ok := postableSources[r.URL.Query().Get("source")]
	if !ok {
		respond.WriteBadRequest(w, "source must be manual or realtime")
		return
	}
	var report model.ActivityReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.MaxLen("notes", report.Notes, 1000); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	res, err := h.activities.LogActivity(r.Context(), householdID, callerID(r), &report, source)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, activityResponse{ActivityResult: res, Message: res.Summary()})
}

// LogCatalogActivity POST /api/households/{householdId}/activities/catalog
func (h *ActivityHandler) LogCatalogActivity(w http.ResponseWriter, r *http.Request) {
	householdID := mux.Vars(r)["householdId"]
	var req catalogActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.NonEmpty("activityType", req.ActivityType); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := validate.Positive("durationMinutes", req.DurationMinutes); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	res, err := h.activities.LogCatalogActivity(r.Context(), householdID, callerID(r), req.ActivityType, req.DurationMinutes)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, activityResponse{ActivityResult: res, Message: res.Summary()})
}

// DeleteActivity DELETE /api/households/{householdId}/activities/{activityId}
func (h *ActivityHandler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := validate.UUID("activityId", vars["activityId"]); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := h.activities.Delete(r.Context(), vars["householdId"], vars["activityId"]); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetActivityCatalog GET /api/activity-catalog
func (h *ActivityHandler) GetActivityCatalog(w http.ResponseWriter, r *http.Request) {
	respond.WriteList(w, h.activities.Catalog().Types())
}
