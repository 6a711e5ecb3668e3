package services

import (
	"context"
	"time"

	"github.com/Dosada05/match-arena/models"
)

// MatchStore - внешнее хранилище матчей. Ядро только читает и пишет через него.
type MatchStore interface {
	GetMatch(ctx context.Context, matchID string) (*models.Match, error)
	UpdateMatch(ctx context.Context, matchID string, upd models.MatchUpdate) (*models.Match, error)
	CreateMatch(ctx context.Context, in models.NewMatch) (*models.Match, error)
	InsertDisputeRecord(ctx context.Context, matchID, reporterID, reason string) (*models.MatchDispute, error)
	ListMatchesSince(ctx context.Context, since time.Time) ([]*models.Match, error)
}

// DisputeStore используется только при ручном разрешении спора администратором.
type DisputeStore interface {
	GetDispute(ctx context.Context, disputeID string) (*models.MatchDispute, error)
	ResolveDispute(ctx context.Context, disputeID string, status models.DisputeStatus, notes string) error
}

// PlayerStatsSource вычисляет статистику игрока по истории матчей. Чистое чтение.
type PlayerStatsSource interface {
	GetPlayerStats(ctx context.Context, userID string) (*models.PlayerStats, error)
}
