package models

import "time"

// ScoreSubmission - результат матча, заявленный одним из игроков.
type ScoreSubmission struct {
	MatchID      string    `json:"match_id"`
	Player1ID    string    `json:"player1_id"`
	Player2ID    string    `json:"player2_id"`
	Player1Score int       `json:"player1_score"`
	Player2Score int       `json:"player2_score"`
	SubmittedBy  string    `json:"submitted_by"`
	Timestamp    time.Time `json:"timestamp"`
}

// ScoreFor возвращает счёт, заявленный для userID.
func (s ScoreSubmission) ScoreFor(userID string) (int, bool) {
	switch userID {
	case s.Player1ID:
		return s.Player1Score, true
	case s.Player2ID:
		return s.Player2Score, true
	}
	return 0, false
}
