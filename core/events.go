package f

import (
	"context"

	"github.com/gookit/event"
)

// FireEvent publishes on the in-process bus. Delivery is synchronous:
// every registered handler runs before FireEvent returns.
func FireEvent(ctx context.Context, topic string, data map[string]any) {
	event.MustFire(topic, data)
}

// OnEvent subscribes a handler to a topic. The context is captured for the
// lifetime of the subscription; once it is cancelled, deliveries are
// rejected with the cancellation cause.
func OnEvent(ctx context.Context, topic string, handler func(data map[string]any) error) {
	event.On(topic, event.ListenerFunc(func(e event.Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return handler(e.Data())
	}), event.Normal)
}
