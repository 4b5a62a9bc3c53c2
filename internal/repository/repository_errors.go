package repository

import (
	"fmt"

	"github.com/sakashimaa/food-order/internal/domain"
)

var (
	ErrOrderNotFound      = fmt.Errorf("order %w", domain.ErrNotFound)
	ErrRestaurantNotFound = fmt.Errorf("restaurant %w", domain.ErrNotFound)
	ErrStatusConflict     = fmt.Errorf("order status changed concurrently: %w", domain.ErrConflict)
)
