package service

import (
	"fmt"

	"github.com/sakashimaa/food-order/internal/domain"
)

type Authorizer interface {
	CanPlaceOrder(actor domain.Actor) error
	CanChangeOrder(actor domain.Actor, order *domain.Order) error
	CanChangeRestaurant(actor domain.Actor) error
}

// RoleAuthorizer allows users to place orders, either owning party to change
// an order, and restaurants to change their own status.
type RoleAuthorizer struct{}

func (RoleAuthorizer) CanPlaceOrder(actor domain.Actor) error {
	if !actor.IsUser() {
		return fmt.Errorf("%w: only users can place orders", domain.ErrForbidden)
	}
	return nil
}

func (RoleAuthorizer) CanChangeOrder(actor domain.Actor, order *domain.Order) error {
	if !order.OwnedBy(actor) {
		return fmt.Errorf("%w: order %d does not belong to %s", domain.ErrForbidden, order.ID, actor)
	}
	return nil
}

func (RoleAuthorizer) CanChangeRestaurant(actor domain.Actor) error {
	if !actor.IsRestaurant() {
		return fmt.Errorf("%w: only restaurants can change their status", domain.ErrForbidden)
	}
	return nil
}
