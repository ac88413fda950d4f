package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tdhs/helpdesk-service/internal/config"
	"github.com/tdhs/helpdesk-service/internal/domain"
	"github.com/tdhs/helpdesk-service/internal/events"
)

func TestNotificationServiceDeliversWebhooks(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	svc := NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{WebhookURL: "http://hooks.local/tickets"})
	delivered := make(chan events.Event, 4)
	svc.send = func(_ context.Context, url string, event events.Event) error {
		if url != "http://hooks.local/tickets" {
			return errors.New("wrong url")
		}
		delivered <- event
		return nil
	}
	svc.RegisterHandlers()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	ticket := &domain.Ticket{ID: "doc-1", TicketNumber: "TDHS-7"}
	if err := dispatcher.Publish(ctx, events.NewEvent(events.EventTicketCreated, ticket, events.Actor{}, nil)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case e := <-delivered:
		if e.TicketNumber != "TDHS-7" || e.Type != events.EventTicketCreated {
			t.Fatalf("unexpected event %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not delivered")
	}
}

func TestNotificationServiceWithoutWebhookQueuesNothing(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	svc := NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{})
	svc.RegisterHandlers()

	ticket := &domain.Ticket{ID: "doc-1", TicketNumber: "TDHS-7"}
	if err := dispatcher.Publish(context.Background(), events.NewEvent(events.EventTicketClosed, ticket, events.Actor{}, nil)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(svc.queue) != 0 {
		t.Fatalf("expected empty queue, got %d", len(svc.queue))
	}
}

func TestNotificationQueueDropsWhenFull(t *testing.T) {
	svc := NewNotificationService(nil, zap.NewNop(), config.NotificationConfig{WebhookURL: "http://hooks.local"})
	ticket := &domain.Ticket{ID: "doc-1", TicketNumber: "TDHS-1"}
	for i := 0; i < notificationQueueSize+10; i++ {
		svc.enqueueWebhook(events.NewEvent(events.EventTicketResolved, ticket, events.Actor{}, nil))
	}
	if len(svc.queue) != notificationQueueSize {
		t.Fatalf("expected a full queue of %d, got %d", notificationQueueSize, len(svc.queue))
	}
}

func TestPostWebhookHonoursContext(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	// port 9 is discard; a cancelled context must fail before dialling
	err := postWebhook(cancelled, "http://127.0.0.1:9/hooks", events.Event{ID: "evt-1"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("cancelled delivery took %s", elapsed)
	}

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	if _, err := webhookDeadline(expired); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}

	short, cancelShort := context.WithTimeout(context.Background(), time.Second)
	defer cancelShort()
	timeout, err := webhookDeadline(short)
	if err != nil || timeout > time.Second || timeout <= 0 {
		t.Fatalf("expected a timeout capped by the deadline, got %s (%v)", timeout, err)
	}

	timeout, err = webhookDeadline(context.Background())
	if err != nil || timeout != webhookTimeout {
		t.Fatalf("expected the default timeout, got %s (%v)", timeout, err)
	}
}
