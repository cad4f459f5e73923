package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/vendor-desk/internal/events"
)

// RegisterEventLog writes every domain event to the log as an audit trail.
func RegisterEventLog(dispatcher events.Dispatcher, logger *zap.Logger) {
	for _, eventType := range events.AllEventTypes {
		dispatcher.Subscribe(eventType, func(_ context.Context, event events.Event) error {
			logger.Info("domain event",
				zap.String("event_id", event.ID),
				zap.String("type", string(event.Type)),
				zap.String("subject", event.Subject),
				zap.String("actor", string(event.Actor.Type)),
				zap.Any("payload", event.Payload))
			return nil
		})
	}
}
