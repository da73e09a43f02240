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

const maxTranscriptLen = 4000

// AssistantHandler serves the AI-backed endpoints.
type AssistantHandler struct {
	recommendations *services.RecommendationService
	voice           *services.VoiceService
	log             zerolog.Logger
}

func NewAssistantHandler(recommendations *services.RecommendationService, voice *services.VoiceService, log zerolog.Logger) *AssistantHandler {
	return &AssistantHandler{recommendations: recommendations, voice: voice, log: log}
}

type parseVoiceRequest struct {
	Text string `json:"text"`
}

// WeeklyRecommendations POST /api/households/{householdId}/recommendations/weekly
func (h *AssistantHandler) WeeklyRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := h.recommendations.Weekly(r.Context(), mux.Vars(r)["householdId"])
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if recs == nil {
		recs = []model.Recommendation{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"recommendations": recs})
}

// ParseVoice POST /api/households/{householdId}/voice/parse
func (h *AssistantHandler) ParseVoice(w http.ResponseWriter, r *http.Request) {
	var req parseVoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.NonEmpty("text", req.Text); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := validate.MaxLen("text", &req.Text, maxTranscriptLen); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	parsed, err := h.voice.ParseActivity(r.Context(), mux.Vars(r)["householdId"], callerID(r), req.Text)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, parsed)
}

// MintVoiceToken POST /api/households/{householdId}/voice/token
func (h *AssistantHandler) MintVoiceToken(w http.ResponseWriter, r *http.Request) {
	sess, err := h.voice.MintRealtimeToken(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, sess)
}
