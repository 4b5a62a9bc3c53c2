package notification

import (
	"context"

	"github.com/sakashimaa/food-order/internal/domain"
)

// Publisher delivers an envelope to whoever is subscribed to the channel at
// that moment. Nothing is stored or replayed.
type Publisher interface {
	Publish(ctx context.Context, ch domain.Channel, env domain.NotificationEnvelope) error
}

// Subscriber opens a subscription that is live once Subscribe returns.
type Subscriber interface {
	Subscribe(ctx context.Context, ch domain.Channel) (Subscription, error)
}

type Bus interface {
	Publisher
	Subscriber
}

type Subscription interface {
	// Messages is closed after Close.
	Messages() <-chan domain.NotificationEnvelope
	Close() error
}
