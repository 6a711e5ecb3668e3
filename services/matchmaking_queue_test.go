package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Dosada05/match-arena/events"
	"github.com/Dosada05/match-arena/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queueFixture struct {
	queue *MatchmakingQueue
	store *fakeStore
	stats *fakeStats
	rec   *recorder
	clock *clock
}

func newQueueFixture() *queueFixture {
	f := &queueFixture{
		store: newFakeStore(),
		stats: &fakeStats{stats: map[string]models.PlayerStats{}},
		rec:   newRecorder(),
		clock: newClock(),
	}
	f.queue = NewMatchmakingQueue(f.store, f.stats, f.rec, discardLogger())
	f.queue.now = f.clock.Now
	return f
}

func (f *queueFixture) player(id string, skill float64, region string, games int) {
	f.stats.stats[id] = models.PlayerStats{SkillRating: skill, ActiveRegion: region, GamesPlayed: games}
}

func rankedPrefs() models.MatchmakingPreferences {
	return models.MatchmakingPreferences{GameMode: "ranked", SkillRange: 200, AvailabilityWindowMinutes: 10}
}

func TestCompatibilityScore(t *testing.T) {
	a := &models.QueueEntry{
		Preferences: models.MatchmakingPreferences{GameMode: "ranked", SkillRange: 200},
		Stats:       models.PlayerStats{SkillRating: 1000, ActiveRegion: "eu", GamesPlayed: 10},
	}
	twin := &models.QueueEntry{
		Preferences: models.MatchmakingPreferences{GameMode: "ranked", SkillRange: 200},
		Stats:       models.PlayerStats{SkillRating: 1000, ActiveRegion: "eu", GamesPlayed: 10},
	}
	assert.InDelta(t, 1.0, CompatibilityScore(a, twin), 1e-9)

	far := &models.QueueEntry{
		Preferences: models.MatchmakingPreferences{GameMode: "casual", SkillRange: 200},
		Stats:       models.PlayerStats{SkillRating: 1500, ActiveRegion: "na", GamesPlayed: 10},
	}
	// skill 0, region 0.5*0.2, mode 0, experience 0.2
	assert.InDelta(t, 0.3, CompatibilityScore(a, far), 1e-9)

	halfway := &models.QueueEntry{
		Preferences: models.MatchmakingPreferences{GameMode: "ranked", SkillRange: 200},
		Stats:       models.PlayerStats{SkillRating: 1100, ActiveRegion: "eu", GamesPlayed: 5},
	}
	// skill 0.5*0.4, region 0.2, mode 0.2, experience 0.5*0.2
	assert.InDelta(t, 0.7, CompatibilityScore(a, halfway), 1e-9)

	rookies := &models.QueueEntry{Stats: models.PlayerStats{ActiveRegion: "eu"}}
	other := &models.QueueEntry{Stats: models.PlayerStats{ActiveRegion: "eu"}}
	// ноль игр с обеих сторон - равный опыт
	assert.InDelta(t, 0.2+0.2+0.2, CompatibilityScore(rookies, other), 1e-9)
}

func TestMatchmakingQueue_PairsCompatiblePlayers(t *testing.T) {
	f := newQueueFixture()
	f.player("alice", 1000, "eu", 10)
	f.player("bob", 1000, "eu", 10)
	ctx := context.Background()

	require.NoError(t, f.queue.JoinMatchmaking(ctx, "alice", rankedPrefs()))
	assert.Equal(t, 1, f.queue.Size())
	assert.Zero(t, f.rec.count(events.MatchCreated))

	f.clock.Advance(30 * time.Second)
	require.NoError(t, f.queue.JoinMatchmaking(ctx, "bob", rankedPrefs()))
	assert.Zero(t, f.queue.Size())
	assert.Equal(t, 1, f.rec.count(events.MatchCreated))

	e, ok := f.rec.last(events.MatchCreated)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"alice", "bob"}, e.UserIDs)
	payload := e.Payload.(events.MatchCreatedPayload)
	assert.Equal(t, "alice", payload.Match.Player1ID)
	assert.Equal(t, models.StatusScheduled, payload.Match.Status)

	var data models.MatchmakingData
	require.NoError(t, json.Unmarshal(f.store.get(payload.Match.ID).MatchmakingData, &data))
	assert.InDelta(t, 1.0, data.MatchQuality, 1e-9)
	assert.InDelta(t, 15.0, data.WaitTimeSeconds, 1e-9)
}

func TestMatchmakingQueue_IncompatiblePlayersWait(t *testing.T) {
	f := newQueueFixture()
	f.player("alice", 1000, "eu", 10)
	f.player("bob", 1500, "na", 10)
	ctx := context.Background()

	require.NoError(t, f.queue.JoinMatchmaking(ctx, "alice", rankedPrefs()))
	casual := rankedPrefs()
	casual.GameMode = "casual"
	require.NoError(t, f.queue.JoinMatchmaking(ctx, "bob", casual))

	assert.Equal(t, 2, f.queue.Size())
	assert.Zero(t, f.rec.count(events.MatchCreated))
}

func TestMatchmakingQueue_AnchorPicksBestCandidate(t *testing.T) {
	f := newQueueFixture()
	f.player("anchor", 1000, "eu", 10)
	f.player("okay", 1100, "eu", 5)
	f.player("twin", 1000, "eu", 10)
	ctx := context.Background()

	// anchor и okay дают 0.7 и сошлись бы при входе, поэтому ставим их в очередь без прохода
	f.queue.entries["anchor"] = &models.QueueEntry{UserID: "anchor", Preferences: rankedPrefs(), JoinedAt: f.clock.Now(), Stats: f.stats.stats["anchor"]}
	f.queue.entries["okay"] = &models.QueueEntry{UserID: "okay", Preferences: rankedPrefs(), JoinedAt: f.clock.Now().Add(time.Second), Stats: f.stats.stats["okay"]}
	f.queue.entries["twin"] = &models.QueueEntry{UserID: "twin", Preferences: rankedPrefs(), JoinedAt: f.clock.Now().Add(2 * time.Second), Stats: f.stats.stats["twin"]}
	f.clock.Advance(5 * time.Second)

	require.NoError(t, f.queue.RunPass(ctx))
	require.Equal(t, 1, f.rec.count(events.MatchCreated))
	e, _ := f.rec.last(events.MatchCreated)
	assert.Equal(t, []string{"anchor", "twin"}, e.UserIDs)
	assert.True(t, f.queue.Contains("okay"))
}

func TestMatchmakingQueue_AlreadyQueued(t *testing.T) {
	f := newQueueFixture()
	ctx := context.Background()

	require.NoError(t, f.queue.JoinMatchmaking(ctx, "alice", rankedPrefs()))
	err := f.queue.JoinMatchmaking(ctx, "alice", rankedPrefs())
	assert.ErrorIs(t, err, ErrAlreadyQueued)
	assert.Equal(t, 1, f.queue.Size())
}

func TestMatchmakingQueue_ValidatesPreferences(t *testing.T) {
	f := newQueueFixture()
	ctx := context.Background()

	err := f.queue.JoinMatchmaking(ctx, "alice", models.MatchmakingPreferences{GameMode: "ranked"})
	assert.ErrorIs(t, err, ErrValidationFailed)
	err = f.queue.JoinMatchmaking(ctx, "", rankedPrefs())
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Zero(t, f.queue.Size())
}

func TestMatchmakingQueue_StatsFailureIsUpstream(t *testing.T) {
	f := newQueueFixture()
	f.stats.err = errors.New("db down")

	err := f.queue.JoinMatchmaking(context.Background(), "alice", rankedPrefs())
	assert.ErrorIs(t, err, ErrUpstreamStore)
	assert.False(t, f.queue.Contains("alice"))
}

func TestMatchmakingQueue_CreateFailureKeepsPlayersQueued(t *testing.T) {
	f := newQueueFixture()
	f.player("alice", 1000, "eu", 10)
	f.player("bob", 1000, "eu", 10)
	ctx := context.Background()

	require.NoError(t, f.queue.JoinMatchmaking(ctx, "alice", rankedPrefs()))
	f.store.createErr = errors.New("insert failed")
	err := f.queue.JoinMatchmaking(ctx, "bob", rankedPrefs())
	assert.ErrorIs(t, err, ErrUpstreamStore)
	assert.Equal(t, 2, f.queue.Size())
	assert.Zero(t, f.rec.count(events.MatchCreated))

	f.store.createErr = nil
	require.NoError(t, f.queue.RunPass(ctx))
	assert.Zero(t, f.queue.Size())
}

func TestMatchmakingQueue_CreateFailureStillEvictsExpired(t *testing.T) {
	f := newQueueFixture()
	f.player("carol", 3000, "na", 500)
	f.player("alice", 1000, "eu", 10)
	f.player("bob", 1000, "eu", 10)
	ctx := context.Background()

	carolPrefs := models.MatchmakingPreferences{GameMode: "casual", SkillRange: 50, AvailabilityWindowMinutes: 1}
	require.NoError(t, f.queue.JoinMatchmaking(ctx, "carol", carolPrefs))
	require.NoError(t, f.queue.JoinMatchmaking(ctx, "alice", rankedPrefs()))

	f.store.createErr = errors.New("insert failed")
	err := f.queue.JoinMatchmaking(ctx, "bob", rankedPrefs())
	assert.ErrorIs(t, err, ErrUpstreamStore)
	assert.Equal(t, 3, f.queue.Size())

	f.clock.Advance(5 * time.Minute)
	err = f.queue.RunPass(ctx)
	assert.ErrorIs(t, err, ErrUpstreamStore)

	assert.False(t, f.queue.Contains("carol"))
	assert.True(t, f.queue.Contains("alice"))
	assert.True(t, f.queue.Contains("bob"))
	assert.Equal(t, 1, f.rec.count(events.MatchmakingTimeout))
	assert.Zero(t, f.rec.count(events.MatchCreated))
}

func TestMatchmakingQueue_TimeoutEvictsOnce(t *testing.T) {
	f := newQueueFixture()
	ctx := context.Background()
	prefs := rankedPrefs()
	prefs.AvailabilityWindowMinutes = 1

	require.NoError(t, f.queue.JoinMatchmaking(ctx, "alice", prefs))
	f.clock.Advance(time.Minute)
	require.NoError(t, f.queue.RunPass(ctx))
	assert.True(t, f.queue.Contains("alice"))

	f.clock.Advance(time.Second)
	require.NoError(t, f.queue.RunPass(ctx))
	require.NoError(t, f.queue.RunPass(ctx))
	assert.False(t, f.queue.Contains("alice"))
	assert.Equal(t, 1, f.rec.count(events.MatchmakingTimeout))

	e, _ := f.rec.last(events.MatchmakingTimeout)
	assert.Equal(t, events.MatchmakingTimeoutPayload{UserID: "alice"}, e.Payload)
}

func TestMatchmakingQueue_SweepRetriesAfterStoreFailure(t *testing.T) {
	f := newQueueFixture()
	f.player("alice", 1000, "eu", 10)
	f.player("bob", 1000, "eu", 10)
	ctx := context.Background()

	require.NoError(t, f.queue.JoinMatchmaking(ctx, "alice", rankedPrefs()))
	f.store.createErr = errors.New("insert failed")
	_ = f.queue.JoinMatchmaking(ctx, "bob", rankedPrefs())

	f.queue.RunSweep(ctx)
	assert.Equal(t, 2, f.queue.Size())

	f.store.createErr = nil
	f.queue.RunSweep(ctx)
	assert.Zero(t, f.queue.Size())
	assert.Equal(t, 1, f.rec.count(events.MatchCreated))
}

func TestMatchmakingQueue_LeaveIsIdempotent(t *testing.T) {
	f := newQueueFixture()
	require.NoError(t, f.queue.JoinMatchmaking(context.Background(), "alice", rankedPrefs()))

	f.queue.LeaveMatchmaking("alice")
	f.queue.LeaveMatchmaking("alice")
	assert.Zero(t, f.queue.Size())
}

func TestMatchmakingQueue_Stats(t *testing.T) {
	f := newQueueFixture()
	ctx := context.Background()
	now := f.clock.Now()

	for i, d := range []*models.MatchmakingData{
		{WaitTimeSeconds: 10, MatchQuality: 0.8},
		{WaitTimeSeconds: 30, MatchQuality: 1.0},
		nil,
	} {
		in := models.NewMatch{Player1ID: "x", Player2ID: "y", ScheduledTime: now.Add(-time.Duration(i+1) * time.Hour), MatchmakingData: d}
		_, err := f.store.CreateMatch(ctx, in)
		require.NoError(t, err)
	}
	_, err := f.store.CreateMatch(ctx, models.NewMatch{
		Player1ID: "old", Player2ID: "older", ScheduledTime: now.Add(-48 * time.Hour),
		MatchmakingData: &models.MatchmakingData{WaitTimeSeconds: 1000, MatchQuality: 0.1},
	})
	require.NoError(t, err)

	f.player("alice", 1000, "eu", 1)
	f.player("carol", 2000, "eu", 500)
	f.player("dave", 3000, "na", 1)
	prefs := rankedPrefs()
	prefs.SkillRange = 1
	for _, id := range []string{"alice", "carol"} {
		require.NoError(t, f.queue.JoinMatchmaking(ctx, id, prefs))
	}
	casual := prefs
	casual.GameMode = "casual"
	require.NoError(t, f.queue.JoinMatchmaking(ctx, "dave", casual))

	stats, err := f.queue.GetMatchmakingStats(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, stats.AverageWaitTime, 1e-9)
	assert.InDelta(t, 0.9, stats.MatchQuality, 1e-9)
	assert.Equal(t, 3, stats.ActivePlayersCount)
	assert.Equal(t, map[string]int{"eu": 2, "na": 1}, stats.RegionDistribution)
}

func TestMatchmakingQueue_StatsEmpty(t *testing.T) {
	f := newQueueFixture()

	stats, err := f.queue.GetMatchmakingStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.AverageWaitTime)
	assert.Zero(t, stats.MatchQuality)
	assert.Zero(t, stats.ActivePlayersCount)
	assert.Empty(t, stats.RegionDistribution)

	f.store.listErr = errors.New("timeout")
	_, err = f.queue.GetMatchmakingStats(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamStore)
}
