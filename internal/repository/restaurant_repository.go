package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/food-order/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type RestaurantRepository interface {
	GetStatus(ctx context.Context, restaurantID int64) (domain.RestaurantStatus, error)
	UpdateStatus(ctx context.Context, restaurantID int64, update domain.StatusUpdate) (domain.RestaurantStatus, error)
	List(ctx context.Context) ([]domain.Restaurant, error)
}

type restaurantRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

func NewRestaurantRepository(pool *pgxpool.Pool) RestaurantRepository {
	return &restaurantRepo{
		pool:   pool,
		tracer: otel.Tracer("restaurant_repository"),
	}
}

func (r *restaurantRepo) GetStatus(ctx context.Context, restaurantID int64) (domain.RestaurantStatus, error) {
	ctx, span := r.tracer.Start(ctx, "RestaurantRepository.GetStatus")
	defer span.End()

	span.SetAttributes(attribute.Int64("restaurant_id", restaurantID))

	query := `
		SELECT operating_status, kitchen_status, delivery_status
		FROM restaurants
		WHERE id = $1;
	`

	var s domain.RestaurantStatus
	if err := r.pool.QueryRow(ctx, query, restaurantID).Scan(
		&s.OperatingStatus,
		&s.KitchenStatus,
		&s.DeliveryStatus,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RestaurantStatus{}, ErrRestaurantNotFound
		}

		span.RecordError(err)
		return domain.RestaurantStatus{}, fmt.Errorf("failed to get restaurant status: %w", err)
	}

	return s, nil
}

// UpdateStatus overwrites only the non-nil fields and returns the full
// snapshot as stored.
func (r *restaurantRepo) UpdateStatus(ctx context.Context, restaurantID int64, update domain.StatusUpdate) (domain.RestaurantStatus, error) {
	ctx, span := r.tracer.Start(ctx, "RestaurantRepository.UpdateStatus")
	defer span.End()

	span.SetAttributes(attribute.Int64("restaurant_id", restaurantID))

	query := `
		UPDATE restaurants
		SET operating_status = COALESCE($1, operating_status),
			kitchen_status = COALESCE($2, kitchen_status),
			delivery_status = COALESCE($3, delivery_status),
			updated_at = NOW()
		WHERE id = $4
		RETURNING operating_status, kitchen_status, delivery_status
	`

	var s domain.RestaurantStatus
	if err := r.pool.QueryRow(
		ctx,
		query,
		update.OperatingStatus,
		update.KitchenStatus,
		update.DeliveryStatus,
		restaurantID,
	).Scan(
		&s.OperatingStatus,
		&s.KitchenStatus,
		&s.DeliveryStatus,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RestaurantStatus{}, ErrRestaurantNotFound
		}

		span.RecordError(err)
		return domain.RestaurantStatus{}, fmt.Errorf("failed to update restaurant status: %w", err)
	}

	return s, nil
}

// List returns restaurants ordered by id. Status fields come from the
// table; callers that serve them prefer the cache.
func (r *restaurantRepo) List(ctx context.Context) ([]domain.Restaurant, error) {
	ctx, span := r.tracer.Start(ctx, "RestaurantRepository.List")
	defer span.End()

	query := `
		SELECT id, name, location, operating_status, kitchen_status, delivery_status
		FROM restaurants
		ORDER BY id ASC;
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query restaurants: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Restaurant, 0)
	for rows.Next() {
		var rest domain.Restaurant
		if err := rows.Scan(
			&rest.ID,
			&rest.Name,
			&rest.Location,
			&rest.Status.OperatingStatus,
			&rest.Status.KitchenStatus,
			&rest.Status.DeliveryStatus,
		); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan restaurant: %w", err)
		}

		result = append(result, rest)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("restaurant rows error: %w", err)
	}

	span.SetAttributes(attribute.Int("restaurants_count", len(result)))

	return result, nil
}
