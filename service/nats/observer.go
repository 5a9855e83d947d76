package nats

import (
	"context"
	"log/slog"
	"time"

	"github.com/brojonat/solsage/service/view"
)

const publishTimeout = 5 * time.Second

// Observer returns a view.Observer that publishes every transition.
// address reports the connected wallet at the time of the transition.
// Publishing happens off the caller's goroutine; failures are logged and dropped.
func Observer(pub Publisher, address func() string, logger *slog.Logger) view.Observer {
	return func(e view.Event) {
		event := NewOperationEvent(e, address())
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			defer cancel()
			if err := pub.PublishOperation(ctx, event); err != nil {
				logger.Warn("failed to publish operation event",
					"view", event.View,
					"status", event.Status,
					"error", err,
				)
			}
		}()
	}
}
