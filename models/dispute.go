package models

import "time"

type DisputeStatus string

const (
	DisputePending  DisputeStatus = "pending"
	DisputeUpheld   DisputeStatus = "upheld"
	DisputeRejected DisputeStatus = "rejected"
)

// MatchDispute - запись в таблице match_disputes.
type MatchDispute struct {
	ID              string        `json:"id"`
	MatchID         string        `json:"match_id"`
	ReporterID      string        `json:"reporter_id"`
	Reason          string        `json:"reason"`
	Status          DisputeStatus `json:"status"`
	ResolutionNotes *string       `json:"resolution_notes,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	ResolvedAt      *time.Time    `json:"resolved_at,omitempty"`
}
