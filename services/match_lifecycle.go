package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/match-arena/events"
	"github.com/Dosada05/match-arena/models"
	"github.com/Dosada05/match-arena/repositories"
)

// Subscriber - регистрация обработчиков сигналов (events.Bus).
type Subscriber interface {
	Subscribe(name events.Name, h events.Handler) (unsubscribe func())
}

type SignalBus interface {
	events.Emitter
	Subscriber
}

type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionCompleted SubmissionStatus = "completed"
	SubmissionDisputed  SubmissionStatus = "disputed"
)

// ScoreOutcome - результат приёма заявки со счётом.
type ScoreOutcome struct {
	MatchID        string               `json:"match_id"`
	Status         SubmissionStatus     `json:"status"`
	Reconciliation *Reconciliation      `json:"reconciliation,omitempty"`
	Match          *models.Match        `json:"match,omitempty"`
	Dispute        *models.MatchDispute `json:"dispute,omitempty"`
	Draw           bool                 `json:"draw,omitempty"`
}

// MatchLifecycleCoordinator ведёт матч по состояниям
// scheduled → in_progress → completed | disputed и сохраняет итоги во внешнем хранилище.
type MatchLifecycleCoordinator struct {
	store      MatchStore
	disputes   DisputeStore
	reconciler *ScoreReconciler
	timer      *MatchTimer
	queue      *MatchmakingQueue
	archive    EvidenceArchive
	emitter    events.Emitter
	logger     *slog.Logger
	now        func() time.Time

	mu         sync.Mutex
	finalizing map[string]bool
	// Запись спора, сохранённая до сбоя UpdateMatch, переиспользуется при повторе.
	disputeRecords map[string]*models.MatchDispute

	closeOnce     sync.Once
	unsubscribers []func()
}

// finalizeRetryTimeout ограничивает повтор финализации по истечении таймера.
const finalizeRetryTimeout = 10 * time.Second

func NewMatchLifecycleCoordinator(
	store MatchStore,
	disputes DisputeStore,
	reconciler *ScoreReconciler,
	timer *MatchTimer,
	queue *MatchmakingQueue,
	archive EvidenceArchive,
	bus SignalBus,
	logger *slog.Logger,
) *MatchLifecycleCoordinator {
	c := &MatchLifecycleCoordinator{
		store:      store,
		disputes:   disputes,
		reconciler: reconciler,
		timer:      timer,
		queue:      queue,
		archive:    archive,
		emitter:    bus,
		logger:     logger,
		now:        time.Now,

		finalizing:     make(map[string]bool),
		disputeRecords: make(map[string]*models.MatchDispute),
	}
	c.unsubscribers = append(c.unsubscribers, bus.Subscribe(events.MatchTimeUp, func(e events.Event) {
		if err := c.OnTimerExpired(e.MatchID); err != nil {
			c.logger.Warn("match time expired without a stored result", slog.String("match_id", e.MatchID), slog.Any("error", err))
		}
	}))
	return c
}

// StartMatch переводит матч из scheduled в in_progress и запускает отсчёт.
func (c *MatchLifecycleCoordinator) StartMatch(ctx context.Context, matchID string, durationMinutes int) (*models.Match, error) {
	if durationMinutes < MinTimerDurationMinutes || durationMinutes > MaxTimerDurationMinutes {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDuration, durationMinutes)
	}
	match, err := c.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.StatusScheduled {
		return nil, fmt.Errorf("%w: match %s is %s", ErrInvalidMatchState, matchID, match.Status)
	}

	status := models.StatusInProgress
	startedAt := c.now()
	updated, err := c.store.UpdateMatch(ctx, matchID, models.MatchUpdate{Status: &status, StartedAt: &startedAt})
	if err != nil {
		return nil, upstream("start match", err)
	}
	if err := c.timer.StartTimer(matchID, durationMinutes); err != nil {
		return updated, err
	}

	c.logger.Info("match started", slog.String("match_id", matchID), slog.Int("duration_minutes", durationMinutes))
	return updated, nil
}

// AcceptScoreSubmission проверяет заявку по матчу и передаёт её на сверку.
// Со второй заявкой матч завершается или уходит в спор. При сбое хранилища
// пара остаётся в памяти (ErrUpstreamStore), повтор через RetryFinalize.
func (c *MatchLifecycleCoordinator) AcceptScoreSubmission(ctx context.Context, matchID string, sub models.ScoreSubmission) (*ScoreOutcome, error) {
	if sub.MatchID == "" {
		sub.MatchID = matchID
	}
	if sub.MatchID != matchID {
		return nil, fmt.Errorf("%w: submission is for match %s, not %s", ErrValidationFailed, sub.MatchID, matchID)
	}
	if sub.Timestamp.IsZero() {
		sub.Timestamp = c.now()
	}

	match, err := c.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.StatusInProgress {
		return nil, fmt.Errorf("%w: match %s is %s", ErrInvalidMatchState, matchID, match.Status)
	}
	if !match.HasParticipant(sub.SubmittedBy) {
		return nil, fmt.Errorf("%w: %s", ErrNotAuthorized, sub.SubmittedBy)
	}
	// Слоты заявки должны совпадать со слотами матча, сверка сравнивает их как есть.
	if sub.Player1ID != match.Player1ID || sub.Player2ID != match.Player2ID {
		return nil, fmt.Errorf("%w: submission players must be in match slot order (%s, %s)",
			ErrValidationFailed, match.Player1ID, match.Player2ID)
	}

	rec, err := c.reconciler.Submit(sub)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		c.logger.Info("score submitted, waiting for opponent", slog.String("match_id", matchID), slog.String("submitted_by", sub.SubmittedBy))
		return &ScoreOutcome{MatchID: matchID, Status: SubmissionPending, Match: match}, nil
	}

	return c.finalize(ctx, match, rec)
}

// RetryFinalize повторно сохраняет итог сверенной пары, если прошлая попытка
// упала на хранилище. Если матч уже не in_progress, пара сбрасывается.
func (c *MatchLifecycleCoordinator) RetryFinalize(ctx context.Context, matchID string) (*ScoreOutcome, error) {
	rec := c.reconciler.Reconciled(matchID)
	if rec == nil {
		return nil, fmt.Errorf("%w: match %s has no reconciled submissions", ErrInvalidMatchState, matchID)
	}
	match, err := c.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.StatusInProgress {
		c.reconciler.ClearSubmissions(matchID)
		c.forgetDispute(matchID)
		c.logger.Warn("dropped reconciled submissions for a match that is no longer in progress",
			slog.String("match_id", matchID), slog.String("status", string(match.Status)))
		return nil, fmt.Errorf("%w: match %s is %s", ErrInvalidMatchState, matchID, match.Status)
	}
	c.logger.Info("retrying match finalization", slog.String("match_id", matchID), slog.String("outcome", string(rec.Outcome)))
	return c.finalize(ctx, match, rec)
}

// finalize сохраняет итог пары. Для одного матча одновременно идёт не больше одной попытки.
func (c *MatchLifecycleCoordinator) finalize(ctx context.Context, match *models.Match, rec *Reconciliation) (*ScoreOutcome, error) {
	c.mu.Lock()
	if c.finalizing[match.ID] {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: match %s is already being finalized", ErrInvalidMatchState, match.ID)
	}
	c.finalizing[match.ID] = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.finalizing, match.ID)
		c.mu.Unlock()
	}()

	// Пару мог уже сохранить параллельный повтор.
	if c.reconciler.Reconciled(match.ID) == nil {
		return nil, fmt.Errorf("%w: match %s is already finalized", ErrInvalidMatchState, match.ID)
	}
	if rec.Accepted() {
		return c.complete(ctx, match, rec)
	}
	return c.dispute(ctx, match, rec)
}

func (c *MatchLifecycleCoordinator) isFinalizing(matchID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finalizing[matchID]
}

func (c *MatchLifecycleCoordinator) forgetDispute(matchID string) {
	c.mu.Lock()
	delete(c.disputeRecords, matchID)
	c.mu.Unlock()
}

func (c *MatchLifecycleCoordinator) complete(ctx context.Context, match *models.Match, rec *Reconciliation) (*ScoreOutcome, error) {
	p1, p2 := rec.Player1Score, rec.Player2Score

	status := models.StatusCompleted
	completedAt := c.now()
	upd := models.MatchUpdate{
		Status:       &status,
		Player1Score: &p1,
		Player2Score: &p2,
		CompletedAt:  &completedAt,
	}
	draw := p1 == p2
	switch {
	case p1 > p2:
		upd.WinnerID = &match.Player1ID
	case p2 > p1:
		upd.WinnerID = &match.Player2ID
	}

	updated, err := c.store.UpdateMatch(ctx, match.ID, upd)
	if err != nil {
		return nil, upstream("complete match", err)
	}
	c.timer.StopTimer(match.ID)
	c.reconciler.ClearSubmissions(match.ID)

	if draw {
		c.logger.Warn("match completed as a draw, no winner assigned", slog.String("match_id", match.ID), slog.Int("score", p1))
	} else {
		c.logger.Info("match completed",
			slog.String("match_id", match.ID),
			slog.String("outcome", string(rec.Outcome)),
			slog.String("winner_id", *upd.WinnerID))
	}
	c.emitter.Emit(events.Event{
		Name:    events.MatchCompleted,
		MatchID: match.ID,
		UserIDs: []string{match.Player1ID, match.Player2ID},
		Payload: events.MatchResultPayload{Match: updated, Draw: draw},
	})
	return &ScoreOutcome{MatchID: match.ID, Status: SubmissionCompleted, Reconciliation: rec, Match: updated, Draw: draw}, nil
}

func (c *MatchLifecycleCoordinator) dispute(ctx context.Context, match *models.Match, rec *Reconciliation) (*ScoreOutcome, error) {
	first, second := rec.Submissions[0], rec.Submissions[1]
	reporter := second.SubmittedBy
	reason := disputeReason(match, first, second)

	c.mu.Lock()
	record := c.disputeRecords[match.ID]
	c.mu.Unlock()
	if record == nil {
		inserted, err := c.store.InsertDisputeRecord(ctx, match.ID, reporter, reason)
		if err != nil {
			return nil, upstream("insert dispute record", err)
		}
		record = inserted
		c.mu.Lock()
		c.disputeRecords[match.ID] = record
		c.mu.Unlock()
	}
	status := models.StatusDisputed
	updated, err := c.store.UpdateMatch(ctx, match.ID, models.MatchUpdate{
		Status:        &status,
		DisputedBy:    &reporter,
		DisputeReason: &reason,
	})
	if err != nil {
		return nil, upstream("mark match disputed", err)
	}
	c.timer.StopTimer(match.ID)

	if c.archive != nil {
		key, err := c.archive.ArchiveDispute(ctx, match.ID, rec.Submissions)
		if err != nil {
			c.logger.Error("failed to archive dispute evidence", slog.String("match_id", match.ID), slog.Any("error", err))
		} else {
			c.logger.Info("dispute evidence archived", slog.String("match_id", match.ID), slog.String("key", key))
		}
	}
	c.reconciler.ClearSubmissions(match.ID)
	c.forgetDispute(match.ID)

	c.logger.Warn("match disputed", slog.String("match_id", match.ID), slog.String("reason", reason))
	c.emitter.Emit(events.Event{
		Name:    events.MatchDisputed,
		MatchID: match.ID,
		UserIDs: []string{match.Player1ID, match.Player2ID},
		Payload: events.MatchResultPayload{Match: updated, Dispute: record},
	})
	return &ScoreOutcome{MatchID: match.ID, Status: SubmissionDisputed, Reconciliation: rec, Match: updated, Dispute: record}, nil
}

// OnTimerExpired вызывается по MatchTimeUp. Если заявок меньше двух, шлёт ScoresPending
// и возвращает ErrScoresPending: решение о неявке за администратором. Если сверенная
// пара всё ещё удерживается после сбоя хранилища, финализация повторяется.
func (c *MatchLifecycleCoordinator) OnTimerExpired(matchID string) error {
	n := len(c.reconciler.GetSubmissions(matchID))
	if n >= 2 {
		if c.reconciler.Reconciled(matchID) == nil || c.isFinalizing(matchID) {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), finalizeRetryTimeout)
		defer cancel()
		_, err := c.RetryFinalize(ctx, matchID)
		return err
	}
	c.emitter.Emit(events.Event{
		Name:    events.ScoresPending,
		MatchID: matchID,
		Payload: events.ScoresPendingPayload{MatchID: matchID, Submissions: n},
	})
	return fmt.Errorf("%w: match %s has %d of 2 submissions", ErrScoresPending, matchID, n)
}

// ResolveDispute - решение администратора: спорный матч переводится в completed.
// При upheld с указанным победителем он записывается, иначе результат остаётся прежним.
func (c *MatchLifecycleCoordinator) ResolveDispute(ctx context.Context, disputeID string, resolution models.DisputeStatus, winnerID *string) (*models.Match, error) {
	if resolution != models.DisputeUpheld && resolution != models.DisputeRejected {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResolution, resolution)
	}

	dispute, err := c.disputes.GetDispute(ctx, disputeID)
	if err != nil {
		if errors.Is(err, repositories.ErrDisputeNotFound) {
			return nil, fmt.Errorf("%w: dispute %s", ErrNotFound, disputeID)
		}
		return nil, upstream("get dispute", err)
	}
	if dispute.Status != models.DisputePending {
		return nil, fmt.Errorf("%w: dispute %s is already %s", ErrInvalidResolution, disputeID, dispute.Status)
	}

	match, err := c.getMatch(ctx, dispute.MatchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.StatusDisputed {
		return nil, fmt.Errorf("%w: match %s is %s", ErrInvalidMatchState, match.ID, match.Status)
	}
	if winnerID != nil && !match.HasParticipant(*winnerID) {
		return nil, fmt.Errorf("%w: winner %s is not a participant", ErrValidationFailed, *winnerID)
	}

	notes := "Dispute rejected, original result stands"
	if resolution == models.DisputeUpheld {
		notes = "Dispute upheld, match result updated"
	}
	if err := c.disputes.ResolveDispute(ctx, disputeID, resolution, notes); err != nil {
		return nil, upstream("resolve dispute", err)
	}

	status := models.StatusCompleted
	completedAt := c.now()
	upd := models.MatchUpdate{Status: &status, CompletedAt: &completedAt}
	if resolution == models.DisputeUpheld && winnerID != nil {
		upd.WinnerID = winnerID
	}
	updated, err := c.store.UpdateMatch(ctx, match.ID, upd)
	if err != nil {
		return nil, upstream("complete disputed match", err)
	}

	c.logger.Info("dispute resolved",
		slog.String("dispute_id", disputeID),
		slog.String("match_id", match.ID),
		slog.String("resolution", string(resolution)))
	c.emitter.Emit(events.Event{
		Name:    events.MatchCompleted,
		MatchID: match.ID,
		UserIDs: []string{match.Player1ID, match.Player2ID},
		Payload: events.MatchResultPayload{Match: updated},
	})
	return updated, nil
}

// Close останавливает таймеры, сбрасывает заявки и очередь, отписывается от шины.
// Повторный вызов ничего не делает.
func (c *MatchLifecycleCoordinator) Close() {
	c.closeOnce.Do(func() {
		for _, unsubscribe := range c.unsubscribers {
			unsubscribe()
		}
		c.timer.Cleanup()
		c.reconciler.ClearAll()
		if c.queue != nil {
			c.queue.Clear()
		}
		c.mu.Lock()
		c.disputeRecords = make(map[string]*models.MatchDispute)
		c.mu.Unlock()
		c.logger.Info("match coordinator closed")
	})
}

// GetMatch читает матч из хранилища, отсутствие строки даёт ErrNotFound.
func (c *MatchLifecycleCoordinator) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	return c.getMatch(ctx, matchID)
}

func (c *MatchLifecycleCoordinator) getMatch(ctx context.Context, matchID string) (*models.Match, error) {
	if matchID == "" {
		return nil, fmt.Errorf("%w: match id is required", ErrValidationFailed)
	}
	match, err := c.store.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, fmt.Errorf("%w: match %s", ErrNotFound, matchID)
		}
		return nil, upstream("get match", err)
	}
	return match, nil
}

func disputeReason(match *models.Match, first, second models.ScoreSubmission) string {
	claim := func(s models.ScoreSubmission) string {
		a, _ := s.ScoreFor(match.Player1ID)
		b, _ := s.ScoreFor(match.Player2ID)
		return fmt.Sprintf("%s reported %d-%d", s.SubmittedBy, a, b)
	}
	return fmt.Sprintf("score mismatch beyond tolerance %d: %s; %s", ScoreTolerance, claim(first), claim(second))
}
