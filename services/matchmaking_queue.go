package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Dosada05/match-arena/events"
	"github.com/Dosada05/match-arena/models"
)

const (
	// MinMatchQuality - минимальная совместимость пары для создания матча.
	MinMatchQuality = 0.6

	statsWindow = 24 * time.Hour

	weightSkill      = 0.4
	weightRegion     = 0.2
	weightGameMode   = 0.2
	weightExperience = 0.2
)

type MatchmakingQueue struct {
	mu      sync.Mutex
	entries map[string]*models.QueueEntry

	store   MatchStore
	stats   PlayerStatsSource
	emitter events.Emitter
	logger  *slog.Logger
	now     func() time.Time
}

func NewMatchmakingQueue(store MatchStore, stats PlayerStatsSource, emitter events.Emitter, logger *slog.Logger) *MatchmakingQueue {
	if emitter == nil {
		emitter = events.Nop{}
	}
	return &MatchmakingQueue{
		entries: make(map[string]*models.QueueEntry),
		store:   store,
		stats:   stats,
		emitter: emitter,
		logger:  logger,
		now:     time.Now,
	}
}

// JoinMatchmaking ставит игрока в очередь и сразу запускает проход подбора.
// Статистика игрока читается до захвата очереди, проход работает с живой очередью.
func (q *MatchmakingQueue) JoinMatchmaking(ctx context.Context, userID string, prefs models.MatchmakingPreferences) error {
	if err := validatePreferences(userID, prefs); err != nil {
		return err
	}
	if q.Contains(userID) {
		return fmt.Errorf("%w: %s", ErrAlreadyQueued, userID)
	}

	stats, err := q.stats.GetPlayerStats(ctx, userID)
	if err != nil {
		return upstream("get player stats", err)
	}

	q.mu.Lock()
	if _, ok := q.entries[userID]; ok {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyQueued, userID)
	}
	q.entries[userID] = &models.QueueEntry{
		UserID:      userID,
		Preferences: prefs,
		JoinedAt:    q.now(),
		Stats:       *stats,
	}
	size := len(q.entries)
	q.mu.Unlock()

	q.logger.Info("player joined matchmaking",
		slog.String("user_id", userID),
		slog.String("game_mode", prefs.GameMode),
		slog.Int("queue_size", size))

	return q.RunPass(ctx)
}

func (q *MatchmakingQueue) LeaveMatchmaking(userID string) {
	q.mu.Lock()
	delete(q.entries, userID)
	q.mu.Unlock()
}

func (q *MatchmakingQueue) Contains(userID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.entries[userID]
	return ok
}

func (q *MatchmakingQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Snapshot возвращает очередь по времени входа, старшие первыми.
func (q *MatchmakingQueue) Snapshot() []models.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	ordered := q.orderedLocked()
	out := make([]models.QueueEntry, len(ordered))
	for i, e := range ordered {
		out[i] = *e
	}
	return out
}

// Clear очищает очередь при остановке.
func (q *MatchmakingQueue) Clear() {
	q.mu.Lock()
	q.entries = make(map[string]*models.QueueEntry)
	q.mu.Unlock()
}

// RunPass подбирает совместимые пары и вытесняет игроков с истёкшим окном ожидания.
// Проходы сериализуются блокировкой очереди. Возвращает первую ошибку создания матча.
func (q *MatchmakingQueue) RunPass(ctx context.Context) error {
	var pending []events.Event
	defer func() {
		for _, e := range pending {
			q.emitter.Emit(e)
		}
	}()

	q.mu.Lock()
	defer q.mu.Unlock()

	var firstErr error
	players := q.orderedLocked()
	for i, anchor := range players {
		if _, ok := q.entries[anchor.UserID]; !ok {
			continue
		}

		var best *models.QueueEntry
		bestScore := -1.0
		for _, candidate := range players[i+1:] {
			if _, ok := q.entries[candidate.UserID]; !ok {
				continue
			}
			score := CompatibilityScore(anchor, candidate)
			if score > bestScore {
				bestScore = score
				best = candidate
			}
		}
		if best == nil || bestScore < MinMatchQuality {
			continue
		}

		match, err := q.createMatch(ctx, anchor, best, bestScore)
		if err != nil {
			// Пара остаётся в очереди, просроченные игроки всё равно вытесняются ниже.
			q.logger.Error("failed to create matchmaking match",
				slog.String("player1_id", anchor.UserID),
				slog.String("player2_id", best.UserID),
				slog.Any("error", err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		delete(q.entries, anchor.UserID)
		delete(q.entries, best.UserID)

		q.logger.Info("match created by matchmaking",
			slog.String("match_id", match.ID),
			slog.String("player1_id", anchor.UserID),
			slog.String("player2_id", best.UserID),
			slog.Float64("match_quality", bestScore))
		pending = append(pending, events.Event{
			Name:    events.MatchCreated,
			MatchID: match.ID,
			UserIDs: []string{anchor.UserID, best.UserID},
			Payload: events.MatchCreatedPayload{Match: match},
		})
	}

	now := q.now()
	for _, p := range players {
		entry, ok := q.entries[p.UserID]
		if !ok {
			continue
		}
		if now.Sub(entry.JoinedAt).Minutes() > entry.Preferences.AvailabilityWindowMinutes {
			delete(q.entries, entry.UserID)
			q.logger.Info("matchmaking timeout", slog.String("user_id", entry.UserID))
			pending = append(pending, events.Event{
				Name:    events.MatchmakingTimeout,
				UserIDs: []string{entry.UserID},
				Payload: events.MatchmakingTimeoutPayload{UserID: entry.UserID},
			})
		}
	}
	return firstErr
}

// RunSweep - периодический проход. Ошибки только логируются, следующий проход повторит.
func (q *MatchmakingQueue) RunSweep(ctx context.Context) {
	if err := q.RunPass(ctx); err != nil {
		q.logger.Error("matchmaking sweep failed", slog.Int("queue_size", q.Size()), slog.Any("error", err))
	}
}

// GetMatchmakingStats объединяет живую очередь и матчи, созданные за последние 24 часа.
func (q *MatchmakingQueue) GetMatchmakingStats(ctx context.Context) (*models.MatchmakingStats, error) {
	matches, err := q.store.ListMatchesSince(ctx, q.now().Add(-statsWindow))
	if err != nil {
		return nil, upstream("list recent matches", err)
	}

	stats := &models.MatchmakingStats{RegionDistribution: make(map[string]int)}
	counted := 0
	for _, m := range matches {
		if len(m.MatchmakingData) == 0 {
			continue
		}
		var data models.MatchmakingData
		if err := json.Unmarshal(m.MatchmakingData, &data); err != nil {
			q.logger.Warn("skipping match with malformed matchmaking data", slog.String("match_id", m.ID), slog.Any("error", err))
			continue
		}
		stats.AverageWaitTime += data.WaitTimeSeconds
		stats.MatchQuality += data.MatchQuality
		counted++
	}
	if counted > 0 {
		stats.AverageWaitTime /= float64(counted)
		stats.MatchQuality /= float64(counted)
	}

	q.mu.Lock()
	stats.ActivePlayersCount = len(q.entries)
	for _, e := range q.entries {
		stats.RegionDistribution[e.Stats.ActiveRegion]++
	}
	q.mu.Unlock()

	return stats, nil
}

// CompatibilityScore - взвешенная совместимость b с якорем a в диапазоне 0..1.
// Разница навыка нормируется на skill_range самого a.
func CompatibilityScore(a, b *models.QueueEntry) float64 {
	skillScore := 0.0
	if a.Preferences.SkillRange > 0 {
		skillScore = math.Max(0, 1-math.Abs(a.Stats.SkillRating-b.Stats.SkillRating)/a.Preferences.SkillRange)
	}

	regionScore := 0.5
	if a.Stats.ActiveRegion == b.Stats.ActiveRegion {
		regionScore = 1
	}

	gameModeScore := 0.0
	if a.Preferences.GameMode == b.Preferences.GameMode {
		gameModeScore = 1
	}

	maxGames := math.Max(math.Max(float64(a.Stats.GamesPlayed), float64(b.Stats.GamesPlayed)), 1)
	expDiff := math.Abs(float64(a.Stats.GamesPlayed - b.Stats.GamesPlayed))
	experienceScore := math.Max(0, 1-expDiff/maxGames)

	return weightSkill*skillScore +
		weightRegion*regionScore +
		weightGameMode*gameModeScore +
		weightExperience*experienceScore
}

func (q *MatchmakingQueue) createMatch(ctx context.Context, p1, p2 *models.QueueEntry, quality float64) (*models.Match, error) {
	now := q.now()
	wait := (now.Sub(p1.JoinedAt).Seconds() + now.Sub(p2.JoinedAt).Seconds()) / 2
	match, err := q.store.CreateMatch(ctx, models.NewMatch{
		Player1ID:     p1.UserID,
		Player2ID:     p2.UserID,
		Status:        models.StatusScheduled,
		GameMode:      p1.Preferences.GameMode,
		ScheduledTime: now,
		MatchmakingData: &models.MatchmakingData{
			Player1Preferences: p1.Preferences,
			Player2Preferences: p2.Preferences,
			WaitTimeSeconds:    wait,
			MatchQuality:       quality,
		},
	})
	if err != nil {
		return nil, upstream("create match", err)
	}
	return match, nil
}

func (q *MatchmakingQueue) orderedLocked() []*models.QueueEntry {
	players := make([]*models.QueueEntry, 0, len(q.entries))
	for _, e := range q.entries {
		players = append(players, e)
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].JoinedAt.Equal(players[j].JoinedAt) {
			return players[i].UserID < players[j].UserID
		}
		return players[i].JoinedAt.Before(players[j].JoinedAt)
	})
	return players
}

func validatePreferences(userID string, prefs models.MatchmakingPreferences) error {
	var problems []string
	if strings.TrimSpace(userID) == "" {
		problems = append(problems, "user id is required")
	}
	if strings.TrimSpace(prefs.GameMode) == "" {
		problems = append(problems, "game_mode is required")
	}
	if prefs.SkillRange <= 0 {
		problems = append(problems, "skill_range must be positive")
	}
	if prefs.AvailabilityWindowMinutes <= 0 {
		problems = append(problems, "availability_window_minutes must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(problems, "; "))
	}
	return nil
}
