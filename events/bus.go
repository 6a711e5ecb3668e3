// Package events - приёмник сигналов ядра. Компоненты шлют именованные события,
// на них подписаны realtime-слой и координатор.
package events

import (
	"sync"
	"time"

	"github.com/Dosada05/match-arena/models"
)

type Name string

const (
	ScoreDispute       Name = "scoreDispute"
	MatchTimeUp        Name = "matchTimeUp"
	MatchCreated       Name = "matchCreated"
	MatchmakingTimeout Name = "matchmakingTimeout"
	TimerUpdate        Name = "timerUpdate"
	MatchCompleted     Name = "matchCompleted"
	MatchDisputed      Name = "matchDisputed"
	ScoresPending      Name = "scoresPending"
)

type Event struct {
	Name    Name        `json:"type"`
	MatchID string      `json:"match_id,omitempty"`
	UserIDs []string    `json:"user_ids,omitempty"`
	Payload interface{} `json:"payload"`
	At      time.Time   `json:"at"`
}

type ScoreDisputePayload struct {
	MatchID     string                   `json:"match_id"`
	Submissions []models.ScoreSubmission `json:"submissions"`
}

type MatchCreatedPayload struct {
	Match *models.Match `json:"match"`
}

type MatchmakingTimeoutPayload struct {
	UserID string `json:"user_id"`
}

type MatchTimeUpPayload struct {
	MatchID string `json:"match_id"`
}

type MatchResultPayload struct {
	Match   *models.Match        `json:"match"`
	Dispute *models.MatchDispute `json:"dispute,omitempty"`
	Draw    bool                 `json:"draw,omitempty"`
}

type ScoresPendingPayload struct {
	MatchID     string `json:"match_id"`
	Submissions int    `json:"submissions"`
}

// Emitter - то, что нужно ядру: только отправка сигналов.
type Emitter interface {
	Emit(e Event)
}

type Handler func(e Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus доставляет события подписчикам синхронно, в горутине вызывающего.
// Компоненты ядра вызывают Emit только после освобождения своих мьютексов,
// поэтому подписчик может обращаться обратно к ядру. Подписчики не должны блокироваться.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Name][]subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Name][]subscription)}
}

// Subscribe подписывает h на события name и возвращает функцию отписки.
func (b *Bus) Subscribe(name Name, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.subs[name]
			for i, s := range list {
				if s.id == id {
					b.subs[name] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

func (b *Bus) Emit(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[e.Name]))
	for _, s := range b.subs[e.Name] {
		handlers = append(handlers, s.handler)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// Nop отбрасывает все события.
type Nop struct{}

func (Nop) Emit(Event) {}
