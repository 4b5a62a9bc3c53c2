package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/food-order/internal/domain"
	"github.com/sakashimaa/food-order/internal/pricing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type menuRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

func NewMenuRepository(pool *pgxpool.Pool) pricing.MenuReader {
	return &menuRepo{
		pool:   pool,
		tracer: otel.Tracer("menu_repository"),
	}
}

func (r *menuRepo) GetCuisinesByIDs(ctx context.Context, ids []int64) (map[int64]domain.Cuisine, error) {
	ctx, span := r.tracer.Start(ctx, "MenuRepository.GetCuisinesByIDs")
	defer span.End()

	span.SetAttributes(
		attribute.Int64Slice("cuisine_ids", ids),
	)

	query := `
		SELECT id, restaurant_id, cuisine_name, price_full, price_half
		FROM cuisines
		WHERE id = ANY($1);
	`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query cuisines: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]domain.Cuisine, len(ids))
	for rows.Next() {
		var c domain.Cuisine
		if err := rows.Scan(
			&c.ID,
			&c.RestaurantID,
			&c.Name,
			&c.PriceFull,
			&c.PriceHalf,
		); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan cuisine: %w", err)
		}

		result[c.ID] = c
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("cuisine rows error: %w", err)
	}

	return result, nil
}
