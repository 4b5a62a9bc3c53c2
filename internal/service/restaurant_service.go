package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sakashimaa/food-order/internal/cache"
	"github.com/sakashimaa/food-order/internal/domain"
	"github.com/sakashimaa/food-order/internal/repository"
	"github.com/sakashimaa/food-order/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type StatusWriteResult struct {
	Status      domain.RestaurantStatus
	CacheSynced bool
}

type RestaurantService interface {
	GetStatus(ctx context.Context, restaurantID int64) (domain.RestaurantStatus, error)
	UpdateStatus(ctx context.Context, actor domain.Actor, update domain.StatusUpdate) (StatusWriteResult, error)
	List(ctx context.Context) ([]domain.Restaurant, error)
}

type restaurantService struct {
	repo             repository.RestaurantRepository
	cache            *cache.StatusCache
	authorizer       Authorizer
	failOnCacheWrite bool
	logger           *zap.Logger
	tracer           trace.Tracer
}

// NewRestaurantService serves restaurant status through the cache. With
// failOnCacheWrite a status write that misses the cache is reported as an
// error even though it is already durable.
func NewRestaurantService(repo repository.RestaurantRepository, statusCache *cache.StatusCache, failOnCacheWrite bool, logger *zap.Logger) RestaurantService {
	return &restaurantService{
		repo:             repo,
		cache:            statusCache,
		authorizer:       RoleAuthorizer{},
		failOnCacheWrite: failOnCacheWrite,
		logger:           logger,
		tracer:           otel.Tracer("restaurant_service"),
	}
}

func (s *restaurantService) GetStatus(ctx context.Context, restaurantID int64) (domain.RestaurantStatus, error) {
	return s.cache.Read(ctx, restaurantID)
}

func (s *restaurantService) UpdateStatus(ctx context.Context, actor domain.Actor, update domain.StatusUpdate) (StatusWriteResult, error) {
	ctx, span := s.tracer.Start(ctx, "RestaurantService.UpdateStatus")
	defer span.End()

	span.SetAttributes(attribute.String("actor", actor.String()))

	if err := s.authorizer.CanChangeRestaurant(actor); err != nil {
		return StatusWriteResult{}, err
	}

	if update.Empty() {
		return StatusWriteResult{}, fmt.Errorf("%w: no status field to update", domain.ErrInvalidRequest)
	}

	st, err := s.cache.Write(ctx, actor.ID, update)

	var syncErr *cache.CacheSyncError
	switch {
	case err == nil:
		mylogger.Info(ctx, s.logger, "Restaurant status updated",
			zap.Int64("restaurant_id", actor.ID),
			zap.String("operating_status", st.OperatingStatus),
			zap.String("kitchen_status", st.KitchenStatus),
			zap.String("delivery_status", st.DeliveryStatus),
		)
		return StatusWriteResult{Status: st, CacheSynced: true}, nil

	case errors.As(err, &syncErr):
		if s.failOnCacheWrite {
			return StatusWriteResult{Status: st}, err
		}
		return StatusWriteResult{Status: st, CacheSynced: false}, nil
	}

	return StatusWriteResult{}, err
}

func (s *restaurantService) List(ctx context.Context) ([]domain.Restaurant, error) {
	ctx, span := s.tracer.Start(ctx, "RestaurantService.List")
	defer span.End()

	restaurants, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	s.cache.Resolve(ctx, restaurants)

	return restaurants, nil
}
