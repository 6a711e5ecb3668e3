package realtime

import (
	"github.com/Dosada05/match-arena/events"
)

// Subscriber - источник сигналов ядра (events.Bus).
type Subscriber interface {
	Subscribe(name events.Name, h events.Handler) (unsubscribe func())
}

// Broadcaster - то, во что пишет Forwarder. *Hub реализует его.
type Broadcaster interface {
	BroadcastToRoom(roomID string, message Message)
}

var forwarded = []events.Name{
	events.ScoreDispute,
	events.MatchTimeUp,
	events.MatchCreated,
	events.MatchmakingTimeout,
	events.TimerUpdate,
	events.MatchCompleted,
	events.MatchDisputed,
	events.ScoresPending,
}

// Forward пересылает сигналы в комнату матча и в личные комнаты игроков.
// Возвращает функцию отписки.
func Forward(bus Subscriber, out Broadcaster) (stop func()) {
	unsubs := make([]func(), 0, len(forwarded))
	for _, name := range forwarded {
		unsubs = append(unsubs, bus.Subscribe(name, func(e events.Event) {
			msg := Message{Type: string(e.Name), Payload: e.Payload, At: e.At}
			if e.MatchID != "" {
				out.BroadcastToRoom(MatchRoom(e.MatchID), msg)
			}
			// Тики таймера идут только в комнату матча.
			if e.Name == events.TimerUpdate {
				return
			}
			for _, userID := range e.UserIDs {
				out.BroadcastToRoom(UserRoom(userID), msg)
			}
		}))
	}
	return func() {
		for _, unsubscribe := range unsubs {
			unsubscribe()
		}
	}
}
