package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDeliversToSubscribersOfName(t *testing.T) {
	bus := NewBus()
	var got []Event
	bus.Subscribe(MatchTimeUp, func(e Event) { got = append(got, e) })
	bus.Subscribe(ScoreDispute, func(e Event) { t.Fatalf("unexpected delivery of %s", e.Name) })

	bus.Emit(Event{Name: MatchTimeUp, MatchID: "m1"})

	if assert.Len(t, got, 1) {
		assert.Equal(t, "m1", got[0].MatchID)
		assert.False(t, got[0].At.IsZero())
	}
}

func TestBusUnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus()
	calls := 0
	unsubscribe := bus.Subscribe(MatchCreated, func(Event) { calls++ })
	other := bus.Subscribe(MatchCreated, func(Event) { calls += 10 })

	unsubscribe()
	unsubscribe()
	bus.Emit(Event{Name: MatchCreated})

	assert.Equal(t, 10, calls)
	other()
	bus.Emit(Event{Name: MatchCreated})
	assert.Equal(t, 10, calls)
}

func TestHandlerMayReenterBus(t *testing.T) {
	bus := NewBus()
	nested := 0
	bus.Subscribe(MatchTimeUp, func(Event) {
		bus.Subscribe(MatchDisputed, func(Event) { nested++ })
		bus.Emit(Event{Name: MatchDisputed})
	})

	bus.Emit(Event{Name: MatchTimeUp})
	assert.Equal(t, 1, nested)
}
