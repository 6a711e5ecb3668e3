package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/match-arena/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound           = errors.New("match not found")
	ErrMatchParticipantInvalid = errors.New("match participant conflict or invalid")
	ErrMatchStatusInvalid      = errors.New("match status violates constraint")
)

type MatchRepository interface {
	GetMatch(ctx context.Context, matchID string) (*models.Match, error)
	UpdateMatch(ctx context.Context, matchID string, upd models.MatchUpdate) (*models.Match, error)
	CreateMatch(ctx context.Context, in models.NewMatch) (*models.Match, error)
	InsertDisputeRecord(ctx context.Context, matchID, reporterID, reason string) (*models.MatchDispute, error)
	ListMatchesSince(ctx context.Context, since time.Time) ([]*models.Match, error)
}

const matchColumns = `id, tournament_id, player1_id, player2_id, player1_score, player2_score, winner_id,
		status, game_mode, scheduled_time, started_at, completed_at, disputed_by, dispute_reason,
		matchmaking_data, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	match, err := scanMatch(r.db.QueryRowContext(ctx, query, matchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %s: %w", matchID, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) CreateMatch(ctx context.Context, in models.NewMatch) (*models.Match, error) {
	// jsonb передаётся строкой: []byte lib/pq кодирует как bytea.
	var mmData interface{}
	if in.MatchmakingData != nil {
		raw, err := json.Marshal(in.MatchmakingData)
		if err != nil {
			return nil, fmt.Errorf("failed to encode matchmaking data: %w", err)
		}
		mmData = string(raw)
	}
	status := in.Status
	if status == "" {
		status = models.StatusScheduled
	}
	var gameMode *string
	if in.GameMode != "" {
		gameMode = &in.GameMode
	}

	query := `
		INSERT INTO matches (tournament_id, player1_id, player2_id, status, game_mode, scheduled_time, matchmaking_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + matchColumns

	match, err := scanMatch(r.db.QueryRowContext(ctx, query,
		in.TournamentID,
		in.Player1ID,
		in.Player2ID,
		status,
		gameMode,
		in.ScheduledTime,
		mmData,
	))
	if err != nil {
		return nil, r.handleMatchError(err)
	}
	return match, nil
}

// UpdateMatch пишет только заданные поля и возвращает актуальную запись.
func (r *postgresMatchRepository) UpdateMatch(ctx context.Context, matchID string, upd models.MatchUpdate) (*models.Match, error) {
	if upd.IsEmpty() {
		return r.GetMatch(ctx, matchID)
	}

	var queryBuilder strings.Builder
	queryBuilder.WriteString("UPDATE matches SET ")
	args := make([]interface{}, 0, 9)
	placeholderIndex := 1

	set := func(column string, value interface{}) {
		if placeholderIndex > 1 {
			queryBuilder.WriteString(", ")
		}
		queryBuilder.WriteString(column)
		queryBuilder.WriteString(" = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, value)
		placeholderIndex++
	}

	if upd.Status != nil {
		set("status", *upd.Status)
	}
	if upd.Player1Score != nil {
		set("player1_score", *upd.Player1Score)
	}
	if upd.Player2Score != nil {
		set("player2_score", *upd.Player2Score)
	}
	if upd.WinnerID != nil {
		set("winner_id", *upd.WinnerID)
	}
	if upd.StartedAt != nil {
		set("started_at", *upd.StartedAt)
	}
	if upd.CompletedAt != nil {
		set("completed_at", *upd.CompletedAt)
	}
	if upd.DisputedBy != nil {
		set("disputed_by", *upd.DisputedBy)
	}
	if upd.DisputeReason != nil {
		set("dispute_reason", *upd.DisputeReason)
	}

	queryBuilder.WriteString(" WHERE id = $")
	queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
	args = append(args, matchID)
	queryBuilder.WriteString(" RETURNING ")
	queryBuilder.WriteString(matchColumns)

	match, err := scanMatch(r.db.QueryRowContext(ctx, queryBuilder.String(), args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, r.handleMatchError(err)
	}
	return match, nil
}

func (r *postgresMatchRepository) InsertDisputeRecord(ctx context.Context, matchID, reporterID, reason string) (*models.MatchDispute, error) {
	query := `
		INSERT INTO match_disputes (match_id, reporter_id, reason, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	dispute := &models.MatchDispute{
		MatchID:    matchID,
		ReporterID: reporterID,
		Reason:     reason,
		Status:     models.DisputePending,
	}
	err := r.db.QueryRowContext(ctx, query, matchID, reporterID, reason, dispute.Status).Scan(&dispute.ID, &dispute.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Constraint == "match_disputes_match_id_fkey" {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to insert dispute for match %s: %w", matchID, err)
	}
	return dispute, nil
}

func (r *postgresMatchRepository) ListMatchesSince(ctx context.Context, since time.Time) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE created_at > $1 ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches since %s: %w", since.Format(time.RFC3339), err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		match, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func scanMatch(row rowScanner) (*models.Match, error) {
	match := &models.Match{}
	var mmData []byte
	err := row.Scan(
		&match.ID,
		&match.TournamentID,
		&match.Player1ID,
		&match.Player2ID,
		&match.Player1Score,
		&match.Player2Score,
		&match.WinnerID,
		&match.Status,
		&match.GameMode,
		&match.ScheduledTime,
		&match.StartedAt,
		&match.CompletedAt,
		&match.DisputedBy,
		&match.DisputeReason,
		&mmData,
		&match.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(mmData) > 0 {
		match.MatchmakingData = json.RawMessage(mmData)
	}
	return match, nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// "23514": check_violation
		switch pqErr.Constraint {
		case "matches_distinct_players":
			return ErrMatchParticipantInvalid
		case "matches_status_check":
			return ErrMatchStatusInvalid
		}
	}
	return err
}
