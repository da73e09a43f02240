package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/thomasnguyen/corgi-quest/internal/api/respond"
	"github.com/thomasnguyen/corgi-quest/internal/api/validate"
	"github.com/thomasnguyen/corgi-quest/internal/auth"
	"github.com/thomasnguyen/corgi-quest/internal/model"
	"github.com/thomasnguyen/corgi-quest/internal/services"
)

// HouseholdHandler serves household onboarding and the home screen read model.
type HouseholdHandler struct {
	households *services.HouseholdService
	dogs       *services.DogService
	issuer     *auth.Issuer
	log        zerolog.Logger
}

func NewHouseholdHandler(households *services.HouseholdService, dogs *services.DogService, issuer *auth.Issuer, log zerolog.Logger) *HouseholdHandler {
	return &HouseholdHandler{households: households, dogs: dogs, issuer: issuer, log: log}
}

// membershipResponse is returned by create and join.
type membershipResponse struct {
	*services.HouseholdMembership
	Token string `json:"token"`
}

type joinHouseholdRequest struct {
	InviteCode string `json:"inviteCode"`
	Name       string `json:"name"`
}

// CreateHousehold POST /api/households
func (h *HouseholdHandler) CreateHousehold(w http.ResponseWriter, r *http.Request) {
	var req services.CreateHouseholdInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	m, err := h.households.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	h.writeMembership(w, http.StatusCreated, m)
}

// JoinHousehold POST /api/households/join
func (h *HouseholdHandler) JoinHousehold(w http.ResponseWriter, r *http.Request) {
	var req joinHouseholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.NonEmpty("inviteCode", req.InviteCode); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	m, err := h.households.Join(r.Context(), req.InviteCode, req.Name)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	h.writeMembership(w, http.StatusOK, m)
}

func (h *HouseholdHandler) writeMembership(w http.ResponseWriter, status int, m *services.HouseholdMembership) {
	token, err := h.issuer.Issue(m.Household.HouseholdID, m.User.UserID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, status, membershipResponse{HouseholdMembership: m, Token: token})
}

// GetHousehold GET /api/households/{householdId}
func (h *HouseholdHandler) GetHousehold(w http.ResponseWriter, r *http.Request) {
	householdID := mux.Vars(r)["householdId"]
	household, err := h.households.Get(r.Context(), householdID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	members, err := h.households.Members(r.Context(), householdID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if members == nil {
		members = []*model.User{}
	}
	profile, err := h.dogs.Profile(r.Context(), householdID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"household": household,
		"members":   members,
		"profile":   profile,
	})
}
