package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Size string

const (
	SizeHalf Size = "half"
	SizeFull Size = "full"
)

func ParseSize(raw string) (Size, error) {
	switch Size(strings.ToLower(strings.TrimSpace(raw))) {
	case SizeHalf:
		return SizeHalf, nil
	case SizeFull:
		return SizeFull, nil
	}
	return "", fmt.Errorf("%w: unknown size %q", ErrInvalidRequest, raw)
}

type OrderItem struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"order_id"`
	CuisineID       int64           `json:"cuisine_id"`
	Quantity        int             `json:"quantity"`
	Size            Size            `json:"size"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.PriceAtPurchase.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	RestaurantID int64           `json:"restaurant_id"`
	Status       OrderStatus     `json:"status"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	CancelledBy  *ActorKind      `json:"cancelled_by,omitempty"`
	Items        []OrderItem     `json:"items"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func CalculateTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// OwnedBy reports whether the actor is the user who placed the order or the
// restaurant it was placed with.
func (o *Order) OwnedBy(a Actor) bool {
	switch a.Kind {
	case ActorUser:
		return o.UserID == a.ID
	case ActorRestaurant:
		return o.RestaurantID == a.ID
	}
	return false
}

// Counterparty is the channel of the side that did not make the change.
func (o *Order) Counterparty(by ActorKind) Channel {
	if by == ActorRestaurant {
		return Channel{Kind: ActorUser, ID: o.UserID}
	}
	return Channel{Kind: ActorRestaurant, ID: o.RestaurantID}
}
