package services

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Domain event names published after successful writes.
const (
	EventAccountRegistered  = "account.registered"
	EventAccountUpgraded    = "account.upgraded"
	EventAccountRoleChanged = "account.role_changed"
	EventAccountDeleted     = "account.deleted"
	EventProductCreated     = "product.created"
	EventProductDeleted     = "product.deleted"
	EventBrandDeleted       = "brand.deleted"
	EventPostCreated        = "post.created"
)

// EventPublisher delivers domain events to the message broker.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event string, data map[string]interface{}) error
}

// publishEvent sends an event if a publisher is configured. A broker failure
// is logged and never fails the request that produced the event.
func publishEvent(ctx context.Context, pub EventPublisher, log logrus.FieldLogger, event string, data map[string]interface{}) {
	if pub == nil {
		return
	}
	if err := pub.PublishEvent(ctx, event, data); err != nil {
		log.WithError(err).WithField("event", event).Warn("failed to publish event")
	}
}

func loggerOrDefault(log logrus.FieldLogger) logrus.FieldLogger {
	if log == nil {
		return logrus.StandardLogger()
	}
	return log
}
