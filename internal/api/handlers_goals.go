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

const defaultMoodLimit = 20

// ProgressHandler serves the daily goal, streak and mood endpoints.
type ProgressHandler struct {
	goals   *services.GoalService
	streaks *services.StreakService
	moods   *services.MoodService
	log     zerolog.Logger
}

func NewProgressHandler(goals *services.GoalService, streaks *services.StreakService, moods *services.MoodService, log zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{goals: goals, streaks: streaks, moods: moods, log: log}
}

type updateTargetsRequest struct {
	PhysicalTarget int `json:"physicalTarget"`
	MentalTarget   int `json:"mentalTarget"`
}

type logMoodRequest struct {
	Mood string  `json:"mood"`
	Note *string `json:"note,omitempty"`
}

// GetTodayGoal GET /api/households/{householdId}/goals/today
func (h *ProgressHandler) GetTodayGoal(w http.ResponseWriter, r *http.Request) {
	goal, err := h.goals.Today(r.Context(), mux.Vars(r)["householdId"])
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, goal)
}

// UpdateTodayGoal PUT /api/households/{householdId}/goals/today
func (h *ProgressHandler) UpdateTodayGoal(w http.ResponseWriter, r *http.Request) {
	var req updateTargetsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	goal, err := h.goals.UpdateTargets(r.Context(), mux.Vars(r)["householdId"], req.PhysicalTarget, req.MentalTarget)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, goal)
}

// GetStreak GET /api/households/{householdId}/streak
func (h *ProgressHandler) GetStreak(w http.ResponseWriter, r *http.Request) {
	streak, err := h.streaks.Get(r.Context(), mux.Vars(r)["householdId"])
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, streak)
}

// ListMoods GET /api/households/{householdId}/moods?limit=
func (h *ProgressHandler) ListMoods(w http.ResponseWriter, r *http.Request) {
	limit, err := validate.Limit(r.URL.Query().Get("limit"), defaultMoodLimit)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	items, err := h.moods.List(r.Context(), mux.Vars(r)["householdId"], limit)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteList(w, items)
}

// LogMood POST /api/households/{householdId}/moods
func (h *ProgressHandler) LogMood(w http.ResponseWriter, r *http.Request) {
	var req logMoodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.MaxLen("note", req.Note, 500); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	entry, err := h.moods.Log(r.Context(), mux.Vars(r)["householdId"], callerID(r), model.Mood(req.Mood), req.Note)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, entry)
}
