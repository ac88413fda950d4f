package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/tdhs/helpdesk-service/internal/config"
	"github.com/tdhs/helpdesk-service/internal/events"
)

const (
	notificationQueueSize = 256
	webhookTimeout        = 5 * time.Second
)

type webhookSender func(ctx context.Context, url string, event events.Event) error

// NotificationService handles emitting notifications for domain events.
// Webhook deliveries are queued and sent by Run so publishers never wait on
// the network.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	queue      chan events.Event
	send       webhookSender
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		queue:      make(chan events.Event, notificationQueueSize),
		send:       postWebhook,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketEscalated, n.handleTicketEscalated)
	n.dispatcher.Subscribe(events.EventTicketResolved, n.handleTicketChanged)
	n.dispatcher.Subscribe(events.EventTicketClosed, n.handleTicketChanged)
	n.dispatcher.Subscribe(events.EventTicketDeleted, n.handleTicketChanged)
}

// Run delivers queued webhooks until ctx is cancelled.
func (n *NotificationService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-n.queue:
			n.deliver(ctx, event)
		}
	}
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated",
		zap.String("ticket_id", event.TicketID),
		zap.String("ticket_number", event.TicketNumber),
		zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.enqueueWebhook(event)
	return nil
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketAssigned", zap.String("ticket_number", event.TicketNumber), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.enqueueWebhook(event)
	return nil
}

func (n *NotificationService) handleTicketEscalated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketEscalated", zap.String("ticket_number", event.TicketNumber), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.enqueueWebhook(event)
	return nil
}

func (n *NotificationService) handleTicketChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketChanged",
		zap.String("type", string(event.Type)),
		zap.String("ticket_number", event.TicketNumber))
	n.enqueueWebhook(event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("ticket_number", event.TicketNumber),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) enqueueWebhook(event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	select {
	case n.queue <- event:
	default:
		n.logger.Warn("notification queue full, dropping webhook",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
	}
}

func (n *NotificationService) deliver(ctx context.Context, event events.Event) {
	if err := n.send(ctx, n.cfg.WebhookURL, event); err != nil {
		n.logger.Warn("webhook delivery failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return
	}
	n.logger.Debug("webhook delivered",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))
}

// postWebhook sends event as JSON. The request timeout never outlives ctx.
func postWebhook(ctx context.Context, url string, event events.Event) error {
	timeout, err := webhookDeadline(ctx)
	if err != nil {
		return err
	}
	agent := fiber.Post(url)
	agent.JSON(event).Timeout(timeout)
	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if code >= fiber.StatusMultipleChoices {
		return fmt.Errorf("webhook responded with status %d", code)
	}
	return nil
}

func webhookDeadline(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	timeout := webhookTimeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, context.DeadlineExceeded
		}
		timeout = min(timeout, remaining)
	}
	return timeout, nil
}
