package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/match-arena/models"
	"github.com/Dosada05/match-arena/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type AdminHandler struct {
	coordinator *services.MatchLifecycleCoordinator
}

func NewAdminHandler(coordinator *services.MatchLifecycleCoordinator) *AdminHandler {
	return &AdminHandler{coordinator: coordinator}
}

type resolveDisputeInput struct {
	Resolution models.DisputeStatus `json:"resolution"`
	WinnerID   *string              `json:"winner_id"`
}

func (h *AdminHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	disputeID := chi.URLParam(r, "disputeID")
	if _, err := uuid.Parse(disputeID); err != nil {
		badRequestResponse(w, r, errors.New("disputeID must be a UUID"))
		return
	}

	var input resolveDisputeInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.coordinator.ResolveDispute(r.Context(), disputeID, input.Resolution, input.WinnerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
