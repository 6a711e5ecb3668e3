package models

import (
	"encoding/json"
	"time"
)

// MatchStatus представляет статусы матча, соответствующие CHECK в таблице matches.
type MatchStatus string

const (
	StatusScheduled  MatchStatus = "scheduled"
	StatusInProgress MatchStatus = "in_progress"
	StatusCompleted  MatchStatus = "completed"
	StatusDisputed   MatchStatus = "disputed"
)

func (s MatchStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusDisputed:
		return true
	}
	return false
}

// Match - авторитетная запись матча во внешнем хранилище.
type Match struct {
	ID              string          `json:"id"`
	TournamentID    *string         `json:"tournament_id,omitempty"`
	Player1ID       string          `json:"player1_id"`
	Player2ID       string          `json:"player2_id"`
	Player1Score    *int            `json:"player1_score,omitempty"`
	Player2Score    *int            `json:"player2_score,omitempty"`
	WinnerID        *string         `json:"winner_id,omitempty"`
	Status          MatchStatus     `json:"status"`
	GameMode        *string         `json:"game_mode,omitempty"`
	ScheduledTime   time.Time       `json:"scheduled_time"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	DisputedBy      *string         `json:"disputed_by,omitempty"`
	DisputeReason   *string         `json:"dispute_reason,omitempty"`
	MatchmakingData json.RawMessage `json:"matchmaking_data,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// HasParticipant сообщает, играет ли userID в этом матче.
func (m *Match) HasParticipant(userID string) bool {
	return userID != "" && (m.Player1ID == userID || m.Player2ID == userID)
}

// NewMatch - поля для создания матча.
type NewMatch struct {
	TournamentID    *string
	Player1ID       string
	Player2ID       string
	Status          MatchStatus
	GameMode        string
	ScheduledTime   time.Time
	MatchmakingData *MatchmakingData
}

// MatchUpdate - частичное обновление матча. nil означает "не менять".
type MatchUpdate struct {
	Status        *MatchStatus
	Player1Score  *int
	Player2Score  *int
	WinnerID      *string
	StartedAt     *time.Time
	CompletedAt   *time.Time
	DisputedBy    *string
	DisputeReason *string
}

// IsEmpty сообщает, что обновление ничего не меняет.
func (u MatchUpdate) IsEmpty() bool {
	return u.Status == nil && u.Player1Score == nil && u.Player2Score == nil &&
		u.WinnerID == nil && u.StartedAt == nil && u.CompletedAt == nil &&
		u.DisputedBy == nil && u.DisputeReason == nil
}

// MatchmakingData сохраняется в matches.matchmaking_data (jsonb).
type MatchmakingData struct {
	Player1Preferences MatchmakingPreferences `json:"player1_preferences"`
	Player2Preferences MatchmakingPreferences `json:"player2_preferences"`
	WaitTimeSeconds    float64                `json:"wait_time_seconds"`
	MatchQuality       float64                `json:"match_quality"`
}
