package domain

import (
	"fmt"
	"strings"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "Pending"
	StatusPreparing OrderStatus = "Preparing"
	StatusReady     OrderStatus = "Ready"
	StatusDelivered OrderStatus = "Delivered"
	StatusCancelled OrderStatus = "Cancelled"
)

var AllStatuses = []OrderStatus{
	StatusPending,
	StatusPreparing,
	StatusReady,
	StatusDelivered,
	StatusCancelled,
}

// next is the single forward step a restaurant may take from each state.
var next = map[OrderStatus]OrderStatus{
	StatusPending:   StatusPreparing,
	StatusPreparing: StatusReady,
	StatusReady:     StatusDelivered,
}

var userCancellable = map[OrderStatus]bool{
	StatusPending:   true,
	StatusPreparing: true,
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func ParseOrderStatus(raw string) (OrderStatus, error) {
	raw = strings.TrimSpace(raw)
	for _, s := range AllStatuses {
		if strings.EqualFold(raw, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown order status %q", ErrInvalidRequest, raw)
}

type Transition struct {
	From        OrderStatus
	To          OrderStatus
	CancelledBy *ActorKind
}

// PlanTransition decides whether an actor of the given kind may move an order
// from current to requested. Ownership is checked by the caller.
func PlanTransition(current OrderStatus, by ActorKind, requested OrderStatus) (Transition, error) {
	if !requested.Valid() {
		return Transition{}, fmt.Errorf("%w: unknown order status %q", ErrInvalidRequest, requested)
	}
	if current.IsTerminal() {
		return Transition{}, fmt.Errorf("%w: order is already %s", ErrInvalidTransition, current)
	}

	t := Transition{From: current, To: requested}

	switch by {
	case ActorRestaurant:
		if requested == StatusCancelled {
			t.CancelledBy = &by
			return t, nil
		}
		if next[current] != requested {
			return Transition{}, fmt.Errorf("%w: cannot move order from %s to %s", ErrInvalidTransition, current, requested)
		}
		return t, nil

	case ActorUser:
		if requested != StatusCancelled {
			return Transition{}, fmt.Errorf("%w: only the restaurant can move an order to %s", ErrForbidden, requested)
		}
		if !userCancellable[current] {
			return Transition{}, fmt.Errorf("%w: order can no longer be cancelled once %s", ErrInvalidTransition, current)
		}
		t.CancelledBy = &by
		return t, nil
	}

	return Transition{}, fmt.Errorf("%w: unknown actor kind %q", ErrForbidden, by)
}
