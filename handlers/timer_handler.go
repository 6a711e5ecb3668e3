package handlers

import (
	"net/http"

	"github.com/Dosada05/match-arena/services"
)

type TimerHandler struct {
	timer *services.MatchTimer
}

func NewTimerHandler(timer *services.MatchTimer) *TimerHandler {
	return &TimerHandler{timer: timer}
}

// GetTimer никогда не отвечает 404: неизвестный матч - это "00:00" и timer = null.
func (h *TimerHandler) GetTimer(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDParam(w, r)
	if !ok {
		return
	}
	resp := jsonResponse{
		"match_id":  matchID,
		"remaining": h.timer.GetRemainingTimeFormatted(matchID),
		"timer":     nil,
	}
	if snap, found := h.timer.GetTimer(matchID); found {
		resp["timer"] = snap
	}
	if err := writeJSON(w, http.StatusOK, resp, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TimerHandler) PauseTimer(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.timer.PauseTimer)
}

func (h *TimerHandler) ResumeTimer(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.timer.ResumeTimer)
}

func (h *TimerHandler) ResetTimer(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, func(matchID string) error {
		h.timer.ResetTimer(matchID)
		return nil
	})
}

func (h *TimerHandler) StopTimer(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDParam(w, r)
	if !ok {
		return
	}
	h.timer.StopTimer(matchID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *TimerHandler) control(w http.ResponseWriter, r *http.Request, op func(matchID string) error) {
	matchID, ok := matchIDParam(w, r)
	if !ok {
		return
	}
	if err := op(matchID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	snap, _ := h.timer.GetTimer(matchID)
	resp := jsonResponse{
		"match_id":  matchID,
		"remaining": h.timer.GetRemainingTimeFormatted(matchID),
		"timer":     snap,
	}
	if err := writeJSON(w, http.StatusOK, resp, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
