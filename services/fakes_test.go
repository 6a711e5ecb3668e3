package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/match-arena/events"
	"github.com/Dosada05/match-arena/models"
	"github.com/Dosada05/match-arena/repositories"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder собирает события и может служить шиной для координатора.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
	bus    *events.Bus
}

func newRecorder() *recorder {
	return &recorder{bus: events.NewBus()}
}

func (r *recorder) Emit(e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	r.bus.Emit(e)
}

func (r *recorder) Subscribe(name events.Name, h events.Handler) func() {
	return r.bus.Subscribe(name, h)
}

func (r *recorder) count(name events.Name) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

func (r *recorder) last(name events.Name) (events.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Name == name {
			return r.events[i], true
		}
	}
	return events.Event{}, false
}

type fakeJob struct {
	name      string
	fn        func()
	cancelled bool
}

// fakeTicker запускает задачи только по вызову fire.
type fakeTicker struct {
	mu   sync.Mutex
	jobs []*fakeJob
	err  error
}

func (f *fakeTicker) Every(name string, _ time.Duration, fn func()) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	j := &fakeJob{name: name, fn: fn}
	f.jobs = append(f.jobs, j)
	return func() {
		f.mu.Lock()
		j.cancelled = true
		f.mu.Unlock()
	}, nil
}

func (f *fakeTicker) fire(name string, times int) {
	for i := 0; i < times; i++ {
		f.mu.Lock()
		var active []*fakeJob
		for _, j := range f.jobs {
			if j.name == name && !j.cancelled {
				active = append(active, j)
			}
		}
		f.mu.Unlock()
		for _, j := range active {
			j.fn()
		}
	}
}

func (f *fakeTicker) active(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, j := range f.jobs {
		if j.name == name && !j.cancelled {
			n++
		}
	}
	return n
}

type fakeStore struct {
	mu        sync.Mutex
	matches   map[string]*models.Match
	disputes  map[string]*models.MatchDispute
	nextID    int
	updateErr error
	insertErr error
	createErr error
	listErr   error
	updates   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		matches:  make(map[string]*models.Match),
		disputes: make(map[string]*models.MatchDispute),
	}
}

func (s *fakeStore) put(m *models.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.matches[m.ID] = &cp
}

func (s *fakeStore) get(id string) *models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil
	}
	cp := *m
	return &cp
}

func (s *fakeStore) GetMatch(_ context.Context, matchID string) (*models.Match, error) {
	m := s.get(matchID)
	if m == nil {
		return nil, repositories.ErrMatchNotFound
	}
	return m, nil
}

func (s *fakeStore) UpdateMatch(_ context.Context, matchID string, upd models.MatchUpdate) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	m, ok := s.matches[matchID]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	s.updates++
	if upd.Status != nil {
		m.Status = *upd.Status
	}
	if upd.Player1Score != nil {
		v := *upd.Player1Score
		m.Player1Score = &v
	}
	if upd.Player2Score != nil {
		v := *upd.Player2Score
		m.Player2Score = &v
	}
	if upd.WinnerID != nil {
		v := *upd.WinnerID
		m.WinnerID = &v
	}
	if upd.StartedAt != nil {
		m.StartedAt = upd.StartedAt
	}
	if upd.CompletedAt != nil {
		m.CompletedAt = upd.CompletedAt
	}
	if upd.DisputedBy != nil {
		m.DisputedBy = upd.DisputedBy
	}
	if upd.DisputeReason != nil {
		m.DisputeReason = upd.DisputeReason
	}
	cp := *m
	return &cp, nil
}

func (s *fakeStore) CreateMatch(_ context.Context, in models.NewMatch) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.nextID++
	m := &models.Match{
		ID:            fmt.Sprintf("m-%d", s.nextID),
		Player1ID:     in.Player1ID,
		Player2ID:     in.Player2ID,
		Status:        in.Status,
		ScheduledTime: in.ScheduledTime,
		CreatedAt:     in.ScheduledTime,
	}
	if in.GameMode != "" {
		mode := in.GameMode
		m.GameMode = &mode
	}
	if in.MatchmakingData != nil {
		raw, err := jsonRaw(in.MatchmakingData)
		if err != nil {
			return nil, err
		}
		m.MatchmakingData = raw
	}
	s.matches[m.ID] = m
	cp := *m
	return &cp, nil
}

func (s *fakeStore) InsertDisputeRecord(_ context.Context, matchID, reporterID, reason string) (*models.MatchDispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	d := &models.MatchDispute{
		ID:         fmt.Sprintf("d-%d", len(s.disputes)+1),
		MatchID:    matchID,
		ReporterID: reporterID,
		Reason:     reason,
		Status:     models.DisputePending,
		CreatedAt:  time.Now(),
	}
	s.disputes[d.ID] = d
	cp := *d
	return &cp, nil
}

func (s *fakeStore) ListMatchesSince(_ context.Context, since time.Time) ([]*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*models.Match
	for _, m := range s.matches {
		if m.CreatedAt.After(since) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) GetDispute(_ context.Context, disputeID string) (*models.MatchDispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.disputes[disputeID]
	if !ok {
		return nil, repositories.ErrDisputeNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *fakeStore) ResolveDispute(_ context.Context, disputeID string, status models.DisputeStatus, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.disputes[disputeID]
	if !ok || d.Status != models.DisputePending {
		return repositories.ErrDisputeNotFound
	}
	now := time.Now()
	d.Status = status
	d.ResolutionNotes = &notes
	d.ResolvedAt = &now
	return nil
}

type fakeStats struct {
	mu    sync.Mutex
	stats map[string]models.PlayerStats
	err   error
}

func (f *fakeStats) GetPlayerStats(_ context.Context, userID string) (*models.PlayerStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	st, ok := f.stats[userID]
	if !ok {
		st = models.PlayerStats{SkillRating: 1000, ActiveRegion: "global", PreferredGameModes: []string{}}
	}
	st.UserID = userID
	return &st, nil
}

// clock - источник времени, который двигается вручную.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func jsonRaw(v interface{}) (json.RawMessage, error) {
	return json.Marshal(v)
}
