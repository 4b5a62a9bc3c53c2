package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error kinds. Every error returned by the core wraps exactly one of them.
var (
	ErrInvalidRequest            = errors.New("invalid request")
	ErrNotFound                  = errors.New("not found")
	ErrForbidden                 = errors.New("forbidden")
	ErrPriceMismatch             = errors.New("price mismatch")
	ErrInvalidTransition         = errors.New("invalid transition")
	ErrConflict                  = errors.New("conflict")
	ErrInfrastructureUnavailable = errors.New("infrastructure unavailable")
)

type PriceMismatchError struct {
	Client decimal.Decimal
	Server decimal.Decimal
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("declared total %s does not match computed total %s", e.Client.StringFixed(2), e.Server.StringFixed(2))
}

func (e *PriceMismatchError) Is(target error) bool {
	return target == ErrPriceMismatch
}

// Kind returns the sentinel err wraps, or nil for errors outside the taxonomy.
func Kind(err error) error {
	for _, kind := range []error{
		ErrInvalidRequest,
		ErrNotFound,
		ErrForbidden,
		ErrPriceMismatch,
		ErrInvalidTransition,
		ErrConflict,
		ErrInfrastructureUnavailable,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
