package models

import "time"

type MatchmakingPreferences struct {
	GameMode                  string  `json:"game_mode"`
	SkillRange                float64 `json:"skill_range"`
	RegionPreference          string  `json:"region_preference,omitempty"`
	AvailabilityWindowMinutes float64 `json:"availability_window_minutes"`
}

// PlayerStats вычисляется из истории матчей один раз при входе в очередь.
type PlayerStats struct {
	UserID             string   `json:"user_id"`
	SkillRating        float64  `json:"skill_rating"`
	RecentWinRate      float64  `json:"recent_win_rate"`
	AverageScore       float64  `json:"average_score"`
	GamesPlayed        int      `json:"games_played"`
	PreferredGameModes []string `json:"preferred_game_modes"`
	ActiveRegion       string   `json:"active_region"`
}

type QueueEntry struct {
	UserID      string                 `json:"user_id"`
	Preferences MatchmakingPreferences `json:"preferences"`
	JoinedAt    time.Time              `json:"joined_at"`
	Stats       PlayerStats            `json:"stats"`
}

type MatchmakingStats struct {
	AverageWaitTime    float64        `json:"average_wait_time"`
	MatchQuality       float64        `json:"match_quality"`
	ActivePlayersCount int            `json:"active_players_count"`
	RegionDistribution map[string]int `json:"region_distribution"`
}
