package domain

import "fmt"

// Channel identifies the pub/sub topic of a single recipient.
type Channel struct {
	Kind ActorKind
	ID   int64
}

func (c Channel) Name() string {
	return fmt.Sprintf("%s:%d:notifications", c.Kind, c.ID)
}

type NotificationPayload struct {
	OrderID int64  `json:"order_id"`
	Message string `json:"message"`
}

type NotificationEnvelope struct {
	Status       OrderStatus         `json:"status"`
	ReceiverRole ActorKind           `json:"receiver_role"`
	Payload      NotificationPayload `json:"payload"`
}

// NewStatusNotification builds the envelope the counterparty of a status
// change receives.
func NewStatusNotification(order *Order, receiver ActorKind) NotificationEnvelope {
	return NotificationEnvelope{
		Status:       order.Status,
		ReceiverRole: receiver,
		Payload: NotificationPayload{
			OrderID: order.ID,
			Message: notificationMessage(order, receiver),
		},
	}
}

func notificationMessage(order *Order, receiver ActorKind) string {
	switch order.Status {
	case StatusPending:
		return fmt.Sprintf("New order #%d received, total %s", order.ID, order.TotalPrice.StringFixed(2))
	case StatusPreparing:
		return fmt.Sprintf("Order #%d is being prepared", order.ID)
	case StatusReady:
		return fmt.Sprintf("Order #%d is ready", order.ID)
	case StatusDelivered:
		return fmt.Sprintf("Order #%d has been delivered", order.ID)
	case StatusCancelled:
		if receiver == ActorRestaurant {
			return fmt.Sprintf("Order #%d was cancelled by the customer", order.ID)
		}
		return fmt.Sprintf("Order #%d was cancelled by the restaurant", order.ID)
	default:
		return fmt.Sprintf("Order #%d status changed to %s", order.ID, order.Status)
	}
}
