package worker

import (
	"context"

	"github.com/tdhs/helpdesk-service/internal/service"
)

// StartNotificationWorker registers notification handlers and starts webhook
// delivery. The returned channel is closed once delivery stops after ctx ends.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService) <-chan struct{} {
	done := make(chan struct{})
	if notificationService == nil {
		close(done)
		return done
	}
	notificationService.RegisterHandlers()
	go func() {
		defer close(done)
		notificationService.Run(ctx)
	}()
	return done
}
