package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/match-arena/models"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSkillRating  = 1000
	DefaultActiveRegion = "global"

	recentMatchesLimit = 20
)

type PlayerStatsRepository interface {
	GetPlayerStats(ctx context.Context, userID string) (*models.PlayerStats, error)
}

type postgresPlayerStatsRepository struct {
	db *sql.DB
}

func NewPostgresPlayerStatsRepository(db *sql.DB) PlayerStatsRepository {
	return &postgresPlayerStatsRepository{db: db}
}

type matchHistory struct {
	games      int
	wins       int
	totalScore int64
	gameModes  []string
}

// GetPlayerStats собирает статистику по последним завершённым матчам игрока и его профилю.
// Игрок без профиля получает рейтинг и регион по умолчанию.
func (r *postgresPlayerStatsRepository) GetPlayerStats(ctx context.Context, userID string) (*models.PlayerStats, error) {
	var (
		history     matchHistory
		skillRating = float64(DefaultSkillRating)
		region      = DefaultActiveRegion
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := r.recentHistory(gctx, userID)
		if err != nil {
			return err
		}
		history = h
		return nil
	})
	g.Go(func() error {
		var (
			rating sql.NullFloat64
			active sql.NullString
		)
		err := r.db.QueryRowContext(gctx,
			`SELECT skill_rating, active_region FROM players WHERE id = $1`, userID,
		).Scan(&rating, &active)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("failed to get player profile %s: %w", userID, err)
		}
		if rating.Valid {
			skillRating = rating.Float64
		}
		if active.Valid && active.String != "" {
			region = active.String
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &models.PlayerStats{
		UserID:             userID,
		SkillRating:        skillRating,
		GamesPlayed:        history.games,
		PreferredGameModes: history.gameModes,
		ActiveRegion:       region,
	}
	if history.games > 0 {
		stats.RecentWinRate = float64(history.wins) / float64(history.games)
		stats.AverageScore = float64(history.totalScore) / float64(history.games)
	}
	return stats, nil
}

func (r *postgresPlayerStatsRepository) recentHistory(ctx context.Context, userID string) (matchHistory, error) {
	query := `
		WITH recent AS (
			SELECT player1_id, player1_score, player2_score, winner_id, game_mode
			FROM matches
			WHERE (player1_id = $1 OR player2_id = $1) AND status = 'completed'
			ORDER BY completed_at DESC NULLS LAST
			LIMIT $2
		)
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE winner_id = $1),
		       COALESCE(SUM(CASE WHEN player1_id = $1 THEN player1_score ELSE player2_score END), 0),
		       COALESCE(array_agg(DISTINCT game_mode) FILTER (WHERE game_mode IS NOT NULL), '{}')
		FROM recent`

	var h matchHistory
	var modes pq.StringArray
	err := r.db.QueryRowContext(ctx, query, userID, recentMatchesLimit).Scan(
		&h.games,
		&h.wins,
		&h.totalScore,
		&modes,
	)
	if err != nil {
		return matchHistory{}, fmt.Errorf("failed to aggregate match history for %s: %w", userID, err)
	}
	h.gameModes = []string(modes)
	if h.gameModes == nil {
		h.gameModes = []string{}
	}
	return h, nil
}
