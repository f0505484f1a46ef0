package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcherDeliversToSubscribersOfType(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []Event
	d.Subscribe(EventOccurrenceCreated, func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	})

	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventOccurrenceCreated, OccurrenceID: "o-1"}))
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventOccurrenceDeleted, OccurrenceID: "o-2"}))

	if assert.Len(t, got, 1) {
		assert.Equal(t, "o-1", got[0].OccurrenceID)
		assert.False(t, got[0].Timestamp.IsZero())
	}
}

func TestDispatcherRunsAllHandlersAndJoinsErrors(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("boom")
	calls := 0
	d.Subscribe(EventSessionEnded, func(context.Context, Event) error { calls++; return boom })
	d.Subscribe(EventSessionEnded, func(context.Context, Event) error { calls++; return nil })

	err := d.Publish(context.Background(), Event{Type: EventSessionEnded})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}
