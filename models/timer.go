package models

import "time"

// TimerSnapshot - копия состояния таймера матча, безопасная для передачи подписчикам.
type TimerSnapshot struct {
	MatchID                 string    `json:"match_id"`
	StartTime               time.Time `json:"start_time"`
	DurationMinutes         int       `json:"duration_minutes"`
	RemainingSeconds        int       `json:"remaining_seconds"`
	IsRunning               bool      `json:"is_running"`
	IsPaused                bool      `json:"is_paused"`
	PausedRemainingSnapshot *int      `json:"paused_remaining_snapshot,omitempty"`
}
