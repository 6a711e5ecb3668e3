package services

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/match-arena/events"
	"github.com/Dosada05/match-arena/models"
	"github.com/Dosada05/match-arena/scheduler"
)

const (
	MinTimerDurationMinutes = 1
	MaxTimerDurationMinutes = 180

	tickInterval = time.Second
)

type matchTimerState struct {
	matchID         string
	startTime       time.Time
	durationMinutes int
	remaining       int
	running         bool
	paused          bool
	pausedRemaining *int

	// generation меняется при каждой (пере)установке тика; устаревшие тики игнорируются.
	generation uint64
	cancelTick func()
}

func (s *matchTimerState) snapshot() models.TimerSnapshot {
	snap := models.TimerSnapshot{
		MatchID:          s.matchID,
		StartTime:        s.startTime,
		DurationMinutes:  s.durationMinutes,
		RemainingSeconds: s.remaining,
		IsRunning:        s.running,
		IsPaused:         s.paused,
	}
	if s.pausedRemaining != nil {
		v := *s.pausedRemaining
		snap.PausedRemainingSnapshot = &v
	}
	return snap
}

func (s *matchTimerState) stopTick() {
	if s.cancelTick != nil {
		s.cancelTick()
		s.cancelTick = nil
	}
}

// MatchTimer ведёт обратный отсчёт для матчей. Один таймер на matchID.
type MatchTimer struct {
	mu         sync.Mutex
	timers     map[string]*matchTimerState
	generation uint64

	ticker  scheduler.Ticker
	emitter events.Emitter
	logger  *slog.Logger
	now     func() time.Time
}

func NewMatchTimer(ticker scheduler.Ticker, emitter events.Emitter, logger *slog.Logger) *MatchTimer {
	if emitter == nil {
		emitter = events.Nop{}
	}
	return &MatchTimer{
		timers:  make(map[string]*matchTimerState),
		ticker:  ticker,
		emitter: emitter,
		logger:  logger,
		now:     time.Now,
	}
}

// StartTimer запускает отсчёт durationMinutes для матча. Таймер на паузе
// продолжается, запущенный даёт ошибку. Остановленный ResetTimer таймер
// заменяется новым отсчётом.
func (t *MatchTimer) StartTimer(matchID string, durationMinutes int) error {
	if matchID == "" {
		return fmt.Errorf("%w: match id is required", ErrValidationFailed)
	}
	if durationMinutes < MinTimerDurationMinutes || durationMinutes > MaxTimerDurationMinutes {
		return fmt.Errorf("%w: got %d", ErrInvalidDuration, durationMinutes)
	}

	t.mu.Lock()
	if existing, ok := t.timers[matchID]; ok {
		if existing.running {
			t.mu.Unlock()
			return fmt.Errorf("%w: match %s", ErrTimerAlreadyRunning, matchID)
		}
		if existing.paused {
			t.mu.Unlock()
			return t.ResumeTimer(matchID)
		}
		existing.stopTick()
	}

	st := &matchTimerState{
		matchID:         matchID,
		startTime:       t.now(),
		durationMinutes: durationMinutes,
		remaining:       durationMinutes * 60,
		running:         true,
	}
	if err := t.scheduleLocked(st); err != nil {
		t.mu.Unlock()
		return err
	}
	t.timers[matchID] = st
	snap := st.snapshot()
	t.mu.Unlock()

	t.logger.Info("match timer started", slog.String("match_id", matchID), slog.Int("duration_minutes", durationMinutes))
	t.emitUpdate(snap)
	return nil
}

func (t *MatchTimer) PauseTimer(matchID string) error {
	t.mu.Lock()
	st, ok := t.timers[matchID]
	if !ok || !st.running {
		t.mu.Unlock()
		return fmt.Errorf("%w: match %s", ErrNoActiveTimer, matchID)
	}
	st.stopTick()
	t.generation++
	st.generation = t.generation
	st.running = false
	st.paused = true
	remaining := st.remaining
	st.pausedRemaining = &remaining
	snap := st.snapshot()
	t.mu.Unlock()

	t.emitUpdate(snap)
	return nil
}

func (t *MatchTimer) ResumeTimer(matchID string) error {
	t.mu.Lock()
	st, ok := t.timers[matchID]
	if !ok || !st.paused {
		t.mu.Unlock()
		return fmt.Errorf("%w: match %s", ErrNoPausedTimer, matchID)
	}
	st.paused = false
	st.pausedRemaining = nil
	st.running = true
	if err := t.scheduleLocked(st); err != nil {
		st.running = false
		st.paused = true
		remaining := st.remaining
		st.pausedRemaining = &remaining
		t.mu.Unlock()
		return err
	}
	snap := st.snapshot()
	t.mu.Unlock()

	t.emitUpdate(snap)
	return nil
}

// StopTimer снимает тик и удаляет таймер. Неизвестный матч игнорируется.
func (t *MatchTimer) StopTimer(matchID string) {
	t.mu.Lock()
	st, ok := t.timers[matchID]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.timers, matchID)
	st.stopTick()
	st.running = false
	st.paused = false
	st.pausedRemaining = nil
	snap := st.snapshot()
	t.mu.Unlock()

	t.emitUpdate(snap)
}

// ResetTimer возвращает полную длительность и оставляет таймер остановленным.
func (t *MatchTimer) ResetTimer(matchID string) {
	t.mu.Lock()
	st, ok := t.timers[matchID]
	if !ok {
		t.mu.Unlock()
		return
	}
	st.stopTick()
	t.generation++
	st.generation = t.generation
	st.remaining = st.durationMinutes * 60
	st.running = false
	st.paused = false
	st.pausedRemaining = nil
	snap := st.snapshot()
	t.mu.Unlock()

	t.emitUpdate(snap)
}

func (t *MatchTimer) GetTimer(matchID string) (models.TimerSnapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.timers[matchID]
	if !ok {
		return models.TimerSnapshot{}, false
	}
	return st.snapshot(), true
}

// GetRemainingTimeFormatted возвращает "MM:SS", для неизвестного матча "00:00".
func (t *MatchTimer) GetRemainingTimeFormatted(matchID string) string {
	snap, ok := t.GetTimer(matchID)
	if !ok {
		return "00:00"
	}
	return formatRemaining(snap.RemainingSeconds)
}

// Cleanup останавливает все таймеры при остановке сервиса.
func (t *MatchTimer) Cleanup() {
	t.mu.Lock()
	for id, st := range t.timers {
		st.stopTick()
		delete(t.timers, id)
	}
	t.mu.Unlock()
}

func (t *MatchTimer) scheduleLocked(st *matchTimerState) error {
	t.generation++
	gen := t.generation
	matchID := st.matchID
	cancel, err := t.ticker.Every("match-timer:"+matchID, tickInterval, func() {
		t.tick(matchID, gen)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule timer for match %s: %w", matchID, err)
	}
	st.generation = gen
	st.cancelTick = cancel
	return nil
}

func (t *MatchTimer) tick(matchID string, gen uint64) {
	t.mu.Lock()
	st, ok := t.timers[matchID]
	if !ok || !st.running || st.generation != gen {
		t.mu.Unlock()
		return
	}
	st.remaining--
	if st.remaining > 0 {
		snap := st.snapshot()
		t.mu.Unlock()
		t.emitUpdate(snap)
		return
	}

	st.remaining = 0
	st.running = false
	st.stopTick()
	delete(t.timers, matchID)
	snap := st.snapshot()
	t.mu.Unlock()

	t.emitUpdate(snap)
	t.logger.Info("match time is up", slog.String("match_id", matchID))
	t.emitter.Emit(events.Event{
		Name:    events.MatchTimeUp,
		MatchID: matchID,
		Payload: events.MatchTimeUpPayload{MatchID: matchID},
	})
}

func (t *MatchTimer) emitUpdate(snap models.TimerSnapshot) {
	t.emitter.Emit(events.Event{Name: events.TimerUpdate, MatchID: snap.MatchID, Payload: snap})
}

func formatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
