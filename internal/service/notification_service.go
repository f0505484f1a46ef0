package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/occurrence-client/internal/domain"
	"github.com/spec-kit/occurrence-client/internal/events"
	apperrors "github.com/spec-kit/occurrence-client/pkg/util"
)

// NotificationLevel grades a transient notification.
type NotificationLevel string

const (
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
	LevelInfo    NotificationLevel = "info"
)

// Notification is a transient message for the user (a toast).
type Notification struct {
	Level        NotificationLevel
	Title        string
	Message      string
	OccurrenceID string
}

// Notifier displays notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

const defaultNotificationBuffer = 32

// NotificationService turns domain events into notifications and queues them
// for delivery by the notification worker.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	queue      chan Notification
	register   sync.Once
}

// NewNotificationService creates the service. buffer <= 0 uses a default size.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, buffer int) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = defaultNotificationBuffer
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		queue:      make(chan Notification, buffer),
	}
}

// RegisterHandlers subscribes to events. Repeated calls are no-ops.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.register.Do(n.subscribe)
}

func (n *NotificationService) subscribe() {
	n.dispatcher.Subscribe(events.EventOccurrenceCreated, n.handleOccurrenceCreated)
	n.dispatcher.Subscribe(events.EventOccurrenceUpdated, n.handleOccurrenceUpdated)
	n.dispatcher.Subscribe(events.EventOccurrenceStatusChanged, n.handleStatusChanged)
	n.dispatcher.Subscribe(events.EventOccurrenceDeleted, n.handleOccurrenceDeleted)
	n.dispatcher.Subscribe(events.EventProfileUpdated, n.handleProfileUpdated)
	n.dispatcher.Subscribe(events.EventRequestFailed, n.handleRequestFailed)
}

// Notifications is drained by the notification worker.
func (n *NotificationService) Notifications() <-chan Notification {
	return n.queue
}

func (n *NotificationService) handleOccurrenceCreated(_ context.Context, event events.Event) error {
	n.enqueue(Notification{
		Level:        LevelSuccess,
		Title:        "Report submitted",
		Message:      "Your report was sent and will be reviewed.",
		OccurrenceID: event.OccurrenceID,
	})
	return nil
}

func (n *NotificationService) handleOccurrenceUpdated(_ context.Context, event events.Event) error {
	n.enqueue(Notification{Level: LevelSuccess, Title: "Report updated", OccurrenceID: event.OccurrenceID})
	return nil
}

func (n *NotificationService) handleStatusChanged(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.StatusChangedPayload)
	title := "Status changed"
	switch payload.NewStatus {
	case domain.OccurrenceStatusInProgress:
		title = "Occurrence in progress"
	case domain.OccurrenceStatusClosed:
		title = "Occurrence closed"
	}
	n.enqueue(Notification{Level: LevelSuccess, Title: title, Message: payload.Feedback, OccurrenceID: event.OccurrenceID})
	return nil
}

func (n *NotificationService) handleOccurrenceDeleted(_ context.Context, event events.Event) error {
	n.enqueue(Notification{Level: LevelSuccess, Title: "Report deleted", OccurrenceID: event.OccurrenceID})
	return nil
}

func (n *NotificationService) handleProfileUpdated(context.Context, events.Event) error {
	n.enqueue(Notification{Level: LevelSuccess, Title: "Profile saved"})
	return nil
}

func (n *NotificationService) handleRequestFailed(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.RequestFailedPayload)
	n.enqueue(Notification{
		Level:        LevelError,
		Title:        "Something went wrong",
		Message:      payload.Message,
		OccurrenceID: event.OccurrenceID,
	})
	return nil
}

// enqueue never blocks the publisher; when the queue is full the
// notification is dropped.
func (n *NotificationService) enqueue(notification Notification) {
	select {
	case n.queue <- notification:
	default:
		n.logger.Warn("notification queue full, dropping", zap.String("title", notification.Title))
	}
}

func fallbackMessage(op string) string {
	switch op {
	case events.OpLogin:
		return "Could not sign in. Check your credentials and try again."
	case events.OpRegister:
		return "Could not create the account. Try again."
	case events.OpCreate:
		return "Could not submit the report. Try again."
	case events.OpUpdate, events.OpUpdateProfile:
		return "Could not save the changes. Try again."
	case events.OpStartProcess, events.OpClose:
		return "Could not update the occurrence status. Try again."
	case events.OpDelete:
		return "Could not delete the report. Try again."
	default:
		return "Could not load the data. Try again."
	}
}

func publishFailure(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, op, occurrenceID string, err error) {
	perr := dispatcher.Publish(ctx, events.Event{
		Type:         events.EventRequestFailed,
		OccurrenceID: occurrenceID,
		Payload: events.RequestFailedPayload{
			Operation: op,
			Err:       err,
			Message:   apperrors.UserMessage(err, fallbackMessage(op)),
		},
	})
	if perr != nil {
		logger.Warn("publish event", zap.String("type", string(events.EventRequestFailed)), zap.Error(perr))
	}
}
