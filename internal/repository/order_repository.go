package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/food-order/internal/domain"
	"github.com/sakashimaa/food-order/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	GetByID(ctx context.Context, orderID int64) (*domain.Order, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, order *domain.Order, tr domain.Transition) error
	ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error)
	ListByRestaurant(ctx context.Context, restaurantID int64) ([]*domain.Order, error)
}

type orderRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewOrderRepository(pool *pgxpool.Pool, logger *zap.Logger) OrderRepository {
	return &orderRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("order_repository"),
	}
}

const orderColumns = `id, user_id, restaurant_id, status, total_price, cancelled_by, created_at, updated_at`

func (r *orderRepo) CreateOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.CreateOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", order.UserID),
		attribute.Int64("restaurant_id", order.RestaurantID),
		attribute.Int("items_count", len(order.Items)),
	)

	queryOrder := `
		INSERT INTO orders (user_id, restaurant_id, status, total_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	if err := tx.QueryRow(
		ctx,
		queryOrder,
		order.UserID,
		order.RestaurantID,
		string(order.Status),
		order.TotalPrice,
	).Scan(
		&order.ID,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		span.RecordError(err)

		mylogger.Warn(
			ctx,
			r.logger,
			"Failed to insert order",
			zap.Error(err),
		)

		return fmt.Errorf("failed to insert order: %w", err)
	}

	queryItem := `
		INSERT INTO order_items (order_id, cuisine_id, quantity, size, price_at_purchase)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID

		if err := tx.QueryRow(
			ctx,
			queryItem,
			order.ID,
			item.CuisineID,
			item.Quantity,
			string(item.Size),
			item.PriceAtPurchase,
		).Scan(&item.ID); err != nil {
			span.RecordError(err)

			mylogger.Warn(
				ctx,
				r.logger,
				"Failed to insert order item",
				zap.Int64("cuisine_id", item.CuisineID),
				zap.Error(err),
			)

			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	span.SetAttributes(attribute.Int64("order_id", order.ID))

	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, orderID int64) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
	)

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		span.RecordError(err)
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if err := r.attachItems(ctx, []*domain.Order{order}); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return order, nil
}

// UpdateStatus applies tr only if the order is still in tr.From. Zero
// affected rows means another transition won the race.
func (r *orderRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, order *domain.Order, tr domain.Transition) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", order.ID),
		attribute.String("from", string(tr.From)),
		attribute.String("to", string(tr.To)),
	)

	var cancelledBy *string
	if tr.CancelledBy != nil {
		s := string(*tr.CancelledBy)
		cancelledBy = &s
	}

	query := `
		UPDATE orders
		SET status = $1, cancelled_by = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
		RETURNING updated_at
	`

	err := tx.QueryRow(
		ctx,
		query,
		string(tr.To),
		cancelledBy,
		order.ID,
		string(tr.From),
	).Scan(&order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			mylogger.Warn(
				ctx,
				r.logger,
				"Order status changed concurrently",
				zap.Int64("order_id", order.ID),
				zap.String("expected", string(tr.From)),
			)

			return ErrStatusConflict
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to update order status",
			zap.Error(err),
		)

		return fmt.Errorf("failed to update order status: %w", err)
	}

	order.Status = tr.To
	order.CancelledBy = tr.CancelledBy

	return nil
}

func (r *orderRepo) ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ListByUser")
	defer span.End()

	span.SetAttributes(attribute.Int64("user_id", userID))

	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	return r.list(ctx, span, query, userID)
}

func (r *orderRepo) ListByRestaurant(ctx context.Context, restaurantID int64) ([]*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ListByRestaurant")
	defer span.End()

	span.SetAttributes(attribute.Int64("restaurant_id", restaurantID))

	query := `SELECT ` + orderColumns + ` FROM orders WHERE restaurant_id = $1 ORDER BY created_at DESC, id DESC`

	return r.list(ctx, span, query, restaurantID)
}

func (r *orderRepo) list(ctx context.Context, span trace.Span, query string, arg int64) ([]*domain.Order, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("order rows error: %w", err)
	}

	if err := r.attachItems(ctx, orders); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return orders, nil
}

// attachItems loads the items of all orders with a single query.
func (r *orderRepo) attachItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[int64]*domain.Order, len(orders))
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		o.Items = make([]domain.OrderItem, 0)
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	query := `
		SELECT id, order_id, cuisine_id, quantity, size, price_at_purchase
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id ASC;
	`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item domain.OrderItem
			size string
		)
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.CuisineID,
			&item.Quantity,
			&size,
			&item.PriceAtPurchase,
		); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}

		item.Size = domain.Size(size)
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("order item rows error: %w", err)
	}

	return nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o           domain.Order
		status      string
		cancelledBy *string
	)

	if err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.RestaurantID,
		&status,
		&o.TotalPrice,
		&cancelledBy,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}

	o.Status = domain.OrderStatus(status)
	if cancelledBy != nil {
		kind := domain.ActorKind(*cancelledBy)
		o.CancelledBy = &kind
	}

	return &o, nil
}
