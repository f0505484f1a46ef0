package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/occurrence-client/internal/service"
)

// StartNotificationWorker registers notification handlers and delivers queued
// notifications to notifier until ctx is done. The returned channel closes
// when the worker exits.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, notifier service.Notifier, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if notificationService == nil || notifier == nil {
		close(done)
		return done
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	notificationService.RegisterHandlers()

	go func() {
		defer close(done)
		queue := notificationService.Notifications()
		for {
			select {
			case <-ctx.Done():
				drain(queue, notifier, logger)
				return
			case n := <-queue:
				deliver(ctx, notifier, n, logger)
			}
		}
	}()
	return done
}

// drain delivers whatever is already queued so that a shutdown does not lose
// the notification for the last action.
func drain(queue <-chan service.Notification, notifier service.Notifier, logger *zap.Logger) {
	for {
		select {
		case n := <-queue:
			deliver(context.Background(), notifier, n, logger)
		default:
			return
		}
	}
}

func deliver(ctx context.Context, notifier service.Notifier, n service.Notification, logger *zap.Logger) {
	if err := notifier.Notify(ctx, n); err != nil {
		logger.Warn("deliver notification", zap.String("title", n.Title), zap.Error(err))
	}
}
