package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/occurrence-client/internal/domain"
	"github.com/spec-kit/occurrence-client/internal/events"
	apperrors "github.com/spec-kit/occurrence-client/pkg/util"
)

func TestNotificationsFollowEvents(t *testing.T) {
	ctx := context.Background()
	dispatcher := events.NewInMemoryDispatcher()
	svc := NewNotificationService(dispatcher, nil, 0)
	svc.RegisterHandlers()

	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventOccurrenceCreated, OccurrenceID: "o1"}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		Type:         events.EventOccurrenceStatusChanged,
		OccurrenceID: "o1",
		Payload:      events.StatusChangedPayload{OldStatus: domain.OccurrenceStatusInProgress, NewStatus: domain.OccurrenceStatusClosed, Feedback: "Reparo concluído"},
	}))
	publishFailure(ctx, dispatcher, zap.NewNop(), events.OpCreate, "", apperrors.NewNetworkError(errors.New("dial tcp: refused")))

	created := <-svc.Notifications()
	assert.Equal(t, LevelSuccess, created.Level)
	assert.Equal(t, "o1", created.OccurrenceID)

	closed := <-svc.Notifications()
	assert.Equal(t, "Occurrence closed", closed.Title)
	assert.Equal(t, "Reparo concluído", closed.Message)

	failed := <-svc.Notifications()
	assert.Equal(t, LevelError, failed.Level)
	assert.Equal(t, fallbackMessage(events.OpCreate), failed.Message)
}

func TestNotificationQueueDropsWhenFull(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	svc := NewNotificationService(dispatcher, nil, 1)
	svc.RegisterHandlers()

	for i := 0; i < 3; i++ {
		require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventOccurrenceDeleted}))
	}
	assert.Len(t, svc.Notifications(), 1)
}

func TestRemoteMessageWinsOverFallback(t *testing.T) {
	err := apperrors.FromStatus(409, "Email already registered")
	assert.Equal(t, "Email already registered", apperrors.UserMessage(err, fallbackMessage(events.OpRegister)))
	assert.Equal(t, fallbackMessage(events.OpRegister), apperrors.UserMessage(errors.New("boom"), fallbackMessage(events.OpRegister)))
}
