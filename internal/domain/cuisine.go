package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Cuisine struct {
	ID           int64
	RestaurantID int64
	Name         string
	PriceFull    decimal.Decimal
	PriceHalf    decimal.NullDecimal
}

// PriceFor returns the unit price of the size. A cuisine without a half
// portion is not priced at zero; the request is rejected instead.
func (c Cuisine) PriceFor(size Size) (decimal.Decimal, error) {
	switch size {
	case SizeFull:
		return c.PriceFull, nil
	case SizeHalf:
		if !c.PriceHalf.Valid {
			return decimal.Decimal{}, fmt.Errorf("%w: cuisine %d has no half price", ErrInvalidRequest, c.ID)
		}
		return c.PriceHalf.Decimal, nil
	}
	return decimal.Decimal{}, fmt.Errorf("%w: unknown size %q", ErrInvalidRequest, size)
}
