package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/match-arena/models"
)

var (
	ErrDisputeNotFound = errors.New("dispute not found")
)

type DisputeRepository interface {
	GetDispute(ctx context.Context, disputeID string) (*models.MatchDispute, error)
	ResolveDispute(ctx context.Context, disputeID string, status models.DisputeStatus, notes string) error
	ListPending(ctx context.Context) ([]*models.MatchDispute, error)
}

const disputeColumns = `id, match_id, reporter_id, reason, status, resolution_notes, created_at, resolved_at`

type postgresDisputeRepository struct {
	db *sql.DB
}

func NewPostgresDisputeRepository(db *sql.DB) DisputeRepository {
	return &postgresDisputeRepository{db: db}
}

func (r *postgresDisputeRepository) GetDispute(ctx context.Context, disputeID string) (*models.MatchDispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM match_disputes WHERE id = $1`

	dispute, err := scanDispute(r.db.QueryRowContext(ctx, query, disputeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("failed to scan dispute by id %s: %w", disputeID, err)
	}
	return dispute, nil
}

// ResolveDispute закрывает только спор в статусе pending.
func (r *postgresDisputeRepository) ResolveDispute(ctx context.Context, disputeID string, status models.DisputeStatus, notes string) error {
	query := `
		UPDATE match_disputes
		SET status = $1, resolution_notes = $2, resolved_at = NOW()
		WHERE id = $3 AND status = $4`

	result, err := r.db.ExecContext(ctx, query, status, notes, disputeID, models.DisputePending)
	if err != nil {
		return fmt.Errorf("failed to resolve dispute %s: %w", disputeID, err)
	}
	return checkAffectedRows(result, ErrDisputeNotFound)
}

func (r *postgresDisputeRepository) ListPending(ctx context.Context) ([]*models.MatchDispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM match_disputes WHERE status = $1 ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, models.DisputePending)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending disputes: %w", err)
	}
	defer rows.Close()

	disputes := make([]*models.MatchDispute, 0)
	for rows.Next() {
		d, scanErr := scanDispute(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan dispute row: %w", scanErr)
		}
		disputes = append(disputes, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during dispute rows iteration: %w", err)
	}
	return disputes, nil
}

func scanDispute(row rowScanner) (*models.MatchDispute, error) {
	d := &models.MatchDispute{}
	err := row.Scan(
		&d.ID,
		&d.MatchID,
		&d.ReporterID,
		&d.Reason,
		&d.Status,
		&d.ResolutionNotes,
		&d.CreatedAt,
		&d.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}
