package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dosada05/match-arena/models"
	"github.com/Dosada05/match-arena/storage"
	"github.com/google/uuid"
)

// EvidenceArchive сохраняет спорные заявки для последующего разбора администратором.
type EvidenceArchive interface {
	ArchiveDispute(ctx context.Context, matchID string, submissions []models.ScoreSubmission) (string, error)
}

type disputeEvidence struct {
	MatchID     string                   `json:"match_id"`
	ArchivedAt  time.Time                `json:"archived_at"`
	Submissions []models.ScoreSubmission `json:"submissions"`
}

type disputeArchive struct {
	uploader storage.FileUploader
	prefix   string
}

func NewDisputeArchive(uploader storage.FileUploader) EvidenceArchive {
	return &disputeArchive{uploader: uploader, prefix: "disputes"}
}

func (a *disputeArchive) ArchiveDispute(ctx context.Context, matchID string, submissions []models.ScoreSubmission) (string, error) {
	body, err := json.Marshal(disputeEvidence{
		MatchID:     matchID,
		ArchivedAt:  time.Now().UTC(),
		Submissions: submissions,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode dispute evidence for match %s: %w", matchID, err)
	}

	key := fmt.Sprintf("%s/%s/%s.json", a.prefix, matchID, uuid.NewString())
	result, err := a.uploader.Upload(ctx, key, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	return result.Key, nil
}
