package handlers

import (
	"net/http"

	"github.com/Dosada05/match-arena/models"
	"github.com/Dosada05/match-arena/services"
)

type MatchmakingHandler struct {
	queue *services.MatchmakingQueue
}

func NewMatchmakingHandler(queue *services.MatchmakingQueue) *MatchmakingHandler {
	return &MatchmakingHandler{queue: queue}
}

// JoinQueue ставит текущего пользователя в очередь. Если пара нашлась сразу,
// queued = false, а матч придёт сигналом matchCreated.
func (h *MatchmakingHandler) JoinQueue(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var prefs models.MatchmakingPreferences
	if err := readJSON(w, r, &prefs); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.queue.JoinMatchmaking(r.Context(), userID, prefs); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	resp := jsonResponse{"user_id": userID, "queued": h.queue.Contains(userID), "queue_size": h.queue.Size()}
	if err := writeJSON(w, http.StatusAccepted, resp, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchmakingHandler) LeaveQueue(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	h.queue.LeaveMatchmaking(userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *MatchmakingHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.GetMatchmakingStats(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, stats, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
