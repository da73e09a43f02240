package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/thomasnguyen/corgi-quest/internal/api/respond"
	"github.com/thomasnguyen/corgi-quest/internal/api/validate"
	"github.com/thomasnguyen/corgi-quest/internal/services"
)

type CosmeticHandler struct {
	cosmetics *services.CosmeticService
	log       zerolog.Logger
}

func NewCosmeticHandler(cosmetics *services.CosmeticService, log zerolog.Logger) *CosmeticHandler {
	return &CosmeticHandler{cosmetics: cosmetics, log: log}
}

type equipRequest struct {
	ItemID string `json:"itemId"`
}

// ListCosmetics GET /api/households/{householdId}/cosmetics
func (h *CosmeticHandler) ListCosmetics(w http.ResponseWriter, r *http.Request) {
	items, err := h.cosmetics.List(r.Context(), mux.Vars(r)["householdId"])
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteList(w, items)
}

// Equip PUT /api/households/{householdId}/cosmetics/equipped
func (h *CosmeticHandler) Equip(w http.ResponseWriter, r *http.Request) {
	var req equipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.NonEmpty("itemId", req.ItemID); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	eq, err := h.cosmetics.Equip(r.Context(), mux.Vars(r)["householdId"], req.ItemID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, eq)
}

// Unequip DELETE /api/households/{householdId}/cosmetics/equipped
func (h *CosmeticHandler) Unequip(w http.ResponseWriter, r *http.Request) {
	if err := h.cosmetics.Unequip(r.Context(), mux.Vars(r)["householdId"]); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
