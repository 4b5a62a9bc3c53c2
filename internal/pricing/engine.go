package pricing

import (
	"context"
	"fmt"

	"github.com/sakashimaa/food-order/internal/domain"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MenuReader is the read-only view of the menu the engine prices against.
type MenuReader interface {
	GetCuisinesByIDs(ctx context.Context, ids []int64) (map[int64]domain.Cuisine, error)
}

// MaxQuantity caps a single line.
const MaxQuantity = 1000

// maxTotal is the largest amount a NUMERIC(12,2) column holds.
var maxTotal = decimal.RequireFromString("9999999999.99")

type RequestedItem struct {
	CuisineID int64
	Quantity  int
	Size      domain.Size
}

type Quote struct {
	Total decimal.Decimal
	Items []domain.OrderItem
}

// Tolerance bounds how far a declared total may drift from the computed one.
// The larger of the two bounds applies.
type Tolerance struct {
	Absolute decimal.Decimal
	Relative decimal.Decimal
}

func DefaultTolerance() Tolerance {
	return Tolerance{
		Absolute: decimal.RequireFromString("0.005"),
		Relative: decimal.RequireFromString("0.000001"),
	}
}

func (t Tolerance) Within(client, server decimal.Decimal) bool {
	diff := client.Sub(server).Abs()
	scale := decimal.Max(client.Abs(), server.Abs())
	bound := decimal.Max(t.Relative.Mul(scale), t.Absolute)
	return diff.LessThanOrEqual(bound)
}

type Engine struct {
	menu      MenuReader
	tolerance Tolerance
	tracer    trace.Tracer
}

func NewEngine(menu MenuReader, tolerance Tolerance) *Engine {
	return &Engine{
		menu:      menu,
		tolerance: tolerance,
		tracer:    otel.Tracer("pricing/engine"),
	}
}

// Compute prices the items against one menu snapshot of the restaurant.
func (e *Engine) Compute(ctx context.Context, restaurantID int64, items []RequestedItem) (Quote, error) {
	ctx, span := e.tracer.Start(ctx, "PricingEngine.Compute")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("restaurant_id", restaurantID),
		attribute.Int("items_count", len(items)),
	)

	if err := validate(items); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Quote{}, err
	}

	ids := make([]int64, 0, len(items))
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.CuisineID]; ok {
			continue
		}
		seen[item.CuisineID] = struct{}{}
		ids = append(ids, item.CuisineID)
	}

	menu, err := e.menu.GetCuisinesByIDs(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return Quote{}, fmt.Errorf("failed to read menu: %w", err)
	}

	quote := Quote{Total: decimal.Zero, Items: make([]domain.OrderItem, 0, len(items))}
	for _, item := range items {
		cuisine, ok := menu[item.CuisineID]
		if !ok || cuisine.RestaurantID != restaurantID {
			err := fmt.Errorf("%w: cuisine %d is not on the menu of restaurant %d", domain.ErrNotFound, item.CuisineID, restaurantID)
			span.SetStatus(codes.Error, err.Error())
			return Quote{}, err
		}

		unit, err := cuisine.PriceFor(item.Size)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return Quote{}, err
		}

		line := domain.OrderItem{
			CuisineID:       item.CuisineID,
			Quantity:        item.Quantity,
			Size:            item.Size,
			PriceAtPurchase: unit,
		}
		quote.Items = append(quote.Items, line)
		quote.Total = quote.Total.Add(line.LineTotal())
	}

	if quote.Total.GreaterThan(maxTotal) {
		err := fmt.Errorf("%w: order total %s exceeds the allowed maximum", domain.ErrInvalidRequest, quote.Total.StringFixed(2))
		span.SetStatus(codes.Error, err.Error())
		return Quote{}, err
	}

	return quote, nil
}

// CheckDeclared returns a *domain.PriceMismatchError when the client's total
// is outside tolerance of the computed one.
func (e *Engine) CheckDeclared(declared, computed decimal.Decimal) error {
	if e.tolerance.Within(declared, computed) {
		return nil
	}
	return &domain.PriceMismatchError{Client: declared, Server: computed}
}

func validate(items []RequestedItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: order has no items", domain.ErrInvalidRequest)
	}
	for i, item := range items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d: quantity must be positive", domain.ErrInvalidRequest, i)
		}
		if item.Quantity > MaxQuantity {
			return fmt.Errorf("%w: item %d: quantity exceeds %d", domain.ErrInvalidRequest, i, MaxQuantity)
		}
		if item.Size != domain.SizeHalf && item.Size != domain.SizeFull {
			return fmt.Errorf("%w: item %d: unknown size %q", domain.ErrInvalidRequest, i, item.Size)
		}
	}
	return nil
}
