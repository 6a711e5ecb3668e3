package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/match-arena/models"
	"github.com/Dosada05/match-arena/services"
)

type MatchHandler struct {
	coordinator *services.MatchLifecycleCoordinator
	reconciler  *services.ScoreReconciler
}

func NewMatchHandler(coordinator *services.MatchLifecycleCoordinator, reconciler *services.ScoreReconciler) *MatchHandler {
	return &MatchHandler{coordinator: coordinator, reconciler: reconciler}
}

type startMatchInput struct {
	DurationMinutes int `json:"duration_minutes"`
}

type scoreInput struct {
	Player1ID    string `json:"player1_id"`
	Player2ID    string `json:"player2_id"`
	Player1Score *int   `json:"player1_score"`
	Player2Score *int   `json:"player2_score"`
}

// authorizedMatch загружает матч и проверяет, что пользователь - участник или админ.
func (h *MatchHandler) authorizedMatch(w http.ResponseWriter, r *http.Request) (*models.Match, string, bool) {
	userID, ok := currentUser(w, r)
	if !ok {
		return nil, "", false
	}
	matchID, ok := matchIDParam(w, r)
	if !ok {
		return nil, "", false
	}
	match, err := h.coordinator.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return nil, "", false
	}
	if !match.HasParticipant(userID) && !isAdmin(r) {
		forbiddenResponse(w, r, services.ErrNotAuthorized.Error())
		return nil, "", false
	}
	return match, userID, true
}

func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	match, _, ok := h.authorizedMatch(w, r)
	if !ok {
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) StartMatch(w http.ResponseWriter, r *http.Request) {
	match, _, ok := h.authorizedMatch(w, r)
	if !ok {
		return
	}

	var input startMatchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	started, err := h.coordinator.StartMatch(r.Context(), match.ID, input.DurationMinutes)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": started}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SubmitScore принимает счёт от участника. submitted_by берётся из токена.
func (h *MatchHandler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	matchID, ok := matchIDParam(w, r)
	if !ok {
		return
	}

	var input scoreInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Player1Score == nil || input.Player2Score == nil {
		errorResponse(w, r, http.StatusUnprocessableEntity, errors.New("player1_score and player2_score are required").Error())
		return
	}

	outcome, err := h.coordinator.AcceptScoreSubmission(r.Context(), matchID, models.ScoreSubmission{
		MatchID:      matchID,
		Player1ID:    input.Player1ID,
		Player2ID:    input.Player2ID,
		Player1Score: *input.Player1Score,
		Player2Score: *input.Player2Score,
		SubmittedBy:  userID,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	status := http.StatusOK
	if outcome.Status == services.SubmissionPending {
		status = http.StatusAccepted
	}
	if err := writeJSON(w, status, outcome, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) GetSubmissions(w http.ResponseWriter, r *http.Request) {
	match, _, ok := h.authorizedMatch(w, r)
	if !ok {
		return
	}
	subs := h.reconciler.GetSubmissions(match.ID)
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match_id": match.ID, "submissions": subs}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// FinalizeMatch повторяет сохранение сверенной пары после сбоя хранилища.
func (h *MatchHandler) FinalizeMatch(w http.ResponseWriter, r *http.Request) {
	match, _, ok := h.authorizedMatch(w, r)
	if !ok {
		return
	}
	outcome, err := h.coordinator.RetryFinalize(r.Context(), match.ID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, outcome, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
