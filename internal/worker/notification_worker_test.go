package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/occurrence-client/internal/events"
	"github.com/spec-kit/occurrence-client/internal/service"
)

type collectingNotifier struct {
	mu   sync.Mutex
	got  []service.Notification
	fail bool
}

func (c *collectingNotifier) Notify(_ context.Context, n service.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, n)
	if c.fail {
		return errors.New("display unavailable")
	}
	return nil
}

func (c *collectingNotifier) titles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.got))
	for _, n := range c.got {
		out = append(out, n.Title)
	}
	return out
}

func TestWorkerDeliversNotifications(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := events.NewInMemoryDispatcher()
	svc := service.NewNotificationService(dispatcher, nil, 8)
	notifier := &collectingNotifier{}
	done := StartNotificationWorker(ctx, svc, notifier, nil)

	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventOccurrenceCreated, OccurrenceID: "o1"}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventProfileUpdated}))

	assert.Eventually(t, func() bool { return len(notifier.titles()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Report submitted", "Profile saved"}, notifier.titles())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorkerDrainsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dispatcher := events.NewInMemoryDispatcher()
	svc := service.NewNotificationService(dispatcher, nil, 8)
	svc.RegisterHandlers()
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventOccurrenceDeleted}))

	notifier := &collectingNotifier{fail: true}
	<-StartNotificationWorker(ctx, svc, notifier, nil)
	assert.Contains(t, notifier.titles(), "Report deleted")
}

func TestWorkerWithoutNotifierExitsImmediately(t *testing.T) {
	done := StartNotificationWorker(context.Background(), nil, nil, nil)
	_, open := <-done
	assert.False(t, open)
}
