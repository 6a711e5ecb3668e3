package services

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/Dosada05/match-arena/events"
	"github.com/Dosada05/match-arena/models"
)

// ScoreTolerance - максимальное расхождение по каждому слоту, при котором счета усредняются.
const ScoreTolerance = 5

type ReconcileOutcome string

const (
	OutcomeExact     ReconcileOutcome = "exact"
	OutcomeSwapped   ReconcileOutcome = "swapped"
	OutcomeTolerance ReconcileOutcome = "tolerance"
	OutcomeDisputed  ReconcileOutcome = "disputed"
)

// Reconciliation - итог сверки двух заявок. Счета даны в порядке слотов первой заявки.
type Reconciliation struct {
	MatchID      string                   `json:"match_id"`
	Outcome      ReconcileOutcome         `json:"outcome"`
	Player1ID    string                   `json:"player1_id"`
	Player2ID    string                   `json:"player2_id"`
	Player1Score int                      `json:"player1_score"`
	Player2Score int                      `json:"player2_score"`
	Submissions  []models.ScoreSubmission `json:"submissions"`
}

func (r *Reconciliation) Accepted() bool {
	return r != nil && r.Outcome != OutcomeDisputed
}

// ScoreReconciler хранит заявки на счёт по матчам и сверяет каждую пару.
type ScoreReconciler struct {
	mu          sync.Mutex
	submissions map[string][]models.ScoreSubmission
	reconciled  map[string]*Reconciliation
	emitter     events.Emitter
}

func NewScoreReconciler(emitter events.Emitter) *ScoreReconciler {
	if emitter == nil {
		emitter = events.Nop{}
	}
	return &ScoreReconciler{
		submissions: make(map[string][]models.ScoreSubmission),
		reconciled:  make(map[string]*Reconciliation),
		emitter:     emitter,
	}
}

// SubmitScore сохраняет заявку. Возвращает true, пока заявка ждёт пару или пара
// сошлась, и false при споре.
func (r *ScoreReconciler) SubmitScore(sub models.ScoreSubmission) (bool, error) {
	rec, err := r.Submit(sub)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return true, nil
	}
	return rec.Accepted(), nil
}

// Submit - то же, что SubmitScore, но возвращает итог сверки; nil, пока пары нет.
func (r *ScoreReconciler) Submit(sub models.ScoreSubmission) (*Reconciliation, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}

	r.mu.Lock()
	pending := r.submissions[sub.MatchID]
	for _, existing := range pending {
		if existing.SubmittedBy == sub.SubmittedBy {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: player %s, match %s", ErrDuplicateSubmission, sub.SubmittedBy, sub.MatchID)
		}
	}
	if len(pending) >= 2 {
		// Пара уже сверена и ждёт очистки координатором.
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: match %s already has two submissions", ErrDuplicateSubmission, sub.MatchID)
	}
	pending = append(pending, sub)
	r.submissions[sub.MatchID] = pending
	if len(pending) < 2 {
		r.mu.Unlock()
		return nil, nil
	}

	rec := reconcile(pending[0], pending[1])
	// Нормализованные/усреднённые значения записываются обратно в обе заявки.
	r.submissions[sub.MatchID] = []models.ScoreSubmission{rec.Submissions[0], rec.Submissions[1]}
	r.reconciled[sub.MatchID] = rec
	r.mu.Unlock()

	if rec.Outcome == OutcomeDisputed {
		r.emitter.Emit(events.Event{
			Name:    events.ScoreDispute,
			MatchID: rec.MatchID,
			UserIDs: []string{rec.Player1ID, rec.Player2ID},
			Payload: events.ScoreDisputePayload{
				MatchID:     rec.MatchID,
				Submissions: append([]models.ScoreSubmission(nil), rec.Submissions...),
			},
		})
	}
	return rec, nil
}

// GetSubmissions возвращает копию заявок матча в порядке поступления.
func (r *ScoreReconciler) GetSubmissions(matchID string) []models.ScoreSubmission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ScoreSubmission{}, r.submissions[matchID]...)
}

// Reconciled возвращает копию итога сверки удерживаемой пары или nil.
// Пара живёт до ClearSubmissions, поэтому финализацию можно повторить.
func (r *ScoreReconciler) Reconciled(matchID string) *Reconciliation {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.reconciled[matchID]
	if !ok {
		return nil
	}
	cp := *rec
	cp.Submissions = append([]models.ScoreSubmission(nil), rec.Submissions...)
	return &cp
}

func (r *ScoreReconciler) ClearSubmissions(matchID string) {
	r.mu.Lock()
	delete(r.submissions, matchID)
	delete(r.reconciled, matchID)
	r.mu.Unlock()
}

// ClearAll сбрасывает все заявки, вызывается при остановке.
func (r *ScoreReconciler) ClearAll() {
	r.mu.Lock()
	r.submissions = make(map[string][]models.ScoreSubmission)
	r.reconciled = make(map[string]*Reconciliation)
	r.mu.Unlock()
}

func validateSubmission(sub models.ScoreSubmission) error {
	var problems []string
	if strings.TrimSpace(sub.MatchID) == "" {
		problems = append(problems, "match_id is required")
	}
	if strings.TrimSpace(sub.Player1ID) == "" || strings.TrimSpace(sub.Player2ID) == "" {
		problems = append(problems, "player ids are required")
	} else if sub.Player1ID == sub.Player2ID {
		problems = append(problems, "player ids must differ")
	}
	if sub.Player1Score < 0 || sub.Player2Score < 0 {
		problems = append(problems, "scores must be non-negative")
	}
	if sub.SubmittedBy == "" || (sub.SubmittedBy != sub.Player1ID && sub.SubmittedBy != sub.Player2ID) {
		problems = append(problems, "submitted_by must be one of the players")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(problems, "; "))
	}
	return nil
}

// reconcile сверяет две заявки по сырым слотам: s1 пришла раньше s2.
// Порядок слотов задаёт матч, координатор отклоняет заявки в чужом порядке.
func reconcile(s1, s2 models.ScoreSubmission) *Reconciliation {
	rec := &Reconciliation{
		MatchID:   s1.MatchID,
		Player1ID: s1.Player1ID,
		Player2ID: s1.Player2ID,
	}

	switch {
	case s1.Player1Score == s2.Player1Score && s1.Player2Score == s2.Player2Score:
		rec.Outcome = OutcomeExact
		rec.Player1Score, rec.Player2Score = s1.Player1Score, s1.Player2Score
	case s1.Player1Score == s2.Player2Score && s1.Player2Score == s2.Player1Score:
		rec.Outcome = OutcomeSwapped
		rec.Player1Score, rec.Player2Score = s1.Player1Score, s1.Player2Score
	case absInt(s1.Player1Score-s2.Player1Score) <= ScoreTolerance && absInt(s1.Player2Score-s2.Player2Score) <= ScoreTolerance:
		rec.Outcome = OutcomeTolerance
		rec.Player1Score = roundAverage(s1.Player1Score, s2.Player1Score)
		rec.Player2Score = roundAverage(s1.Player2Score, s2.Player2Score)
	default:
		rec.Outcome = OutcomeDisputed
		rec.Submissions = []models.ScoreSubmission{s1, s2}
		return rec
	}

	first, second := s1, s2
	first.Player1Score, first.Player2Score = rec.Player1Score, rec.Player2Score
	second.Player1ID, second.Player2ID = s1.Player1ID, s1.Player2ID
	second.Player1Score, second.Player2Score = rec.Player1Score, rec.Player2Score
	rec.Submissions = []models.ScoreSubmission{first, second}
	return rec
}

func roundAverage(a, b int) int {
	return int(math.Round(float64(a+b) / 2))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
