package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/events"
)

// Notifier delivers fire-and-forget messages. Implementations must
// swallow delivery failures; ticket processing never fails because a
// notification could not be sent.
type Notifier interface {
	NotifyUser(ctx context.Context, userID, title, message string)
	NotifyDepartment(ctx context.Context, departmentID, title, message string)
	NotifyManagement(ctx context.Context, title, message string)
}

// NotificationService emits notifications for domain events and
// implements Notifier via logging plus email/webhook stubs.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// NotifyUser delivers a message to a single user.
func (n *NotificationService) NotifyUser(ctx context.Context, userID, title, message string) {
	n.logger.Info("notify user",
		zap.String("user_id", userID),
		zap.String("title", title),
		zap.String("message", message))
	n.sendEmailStub(ctx, title)
}

// NotifyDepartment delivers a message to everyone in a department.
func (n *NotificationService) NotifyDepartment(ctx context.Context, departmentID, title, message string) {
	n.logger.Info("notify department",
		zap.String("department_id", departmentID),
		zap.String("title", title),
		zap.String("message", message))
	n.sendWebhookStub(ctx, title)
}

// NotifyManagement delivers a message to the management channel.
func (n *NotificationService) NotifyManagement(ctx context.Context, title, message string) {
	n.logger.Warn("notify management",
		zap.String("title", title),
		zap.String("message", message))
	n.sendEmailStub(ctx, title)
	n.sendWebhookStub(ctx, title)
}

// RegisterHandlers subscribes to lifecycle events for requester-facing
// updates.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventRequestCreated, n.handleRequestCreated)
	n.dispatcher.Subscribe(events.EventRequestStatusChanged, n.handleRequestStatusChanged)
	n.dispatcher.Subscribe(events.EventRequestAssigned, n.handleRequestAssigned)
}

func (n *NotificationService) handleRequestCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("RequestCreated", zap.String("request_id", event.RequestID), zap.Any("payload", event.Payload))
	n.sendEmailStub(ctx, string(event.Type))
	return nil
}

func (n *NotificationService) handleRequestStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("RequestStatusChanged", zap.String("request_id", event.RequestID), zap.Any("payload", event.Payload))
	n.sendWebhookStub(ctx, string(event.Type))
	return nil
}

func (n *NotificationService) handleRequestAssigned(ctx context.Context, event events.Event) error {
	n.logger.Info("RequestAssigned", zap.String("request_id", event.RequestID), zap.Any("payload", event.Payload))
	n.sendWebhookStub(ctx, string(event.Type))
	return nil
}

func (n *NotificationService) sendEmailStub(ctx context.Context, subject string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("subject", subject))
}

func (n *NotificationService) sendWebhookStub(ctx context.Context, subject string) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("subject", subject))
}
