package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sakashimaa/food-order/internal/domain"
	"github.com/sakashimaa/food-order/internal/metrics"
	"github.com/sakashimaa/food-order/pkg/mylogger"
	"github.com/sakashimaa/food-order/pkg/utils"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const DefaultTTL = time.Hour

// StatusStore is the durable source of restaurant status.
type StatusStore interface {
	GetStatus(ctx context.Context, restaurantID int64) (domain.RestaurantStatus, error)
	UpdateStatus(ctx context.Context, restaurantID int64, update domain.StatusUpdate) (domain.RestaurantStatus, error)
}

// CacheSyncError reports a status write that is durable but did not reach
// the cache. The cached value, if any, expires with its TTL.
type CacheSyncError struct {
	RestaurantID int64
	Err          error
}

func (e *CacheSyncError) Error() string {
	return fmt.Sprintf("restaurant %d status saved but cache not updated: %v", e.RestaurantID, e.Err)
}

func (e *CacheSyncError) Unwrap() error { return e.Err }

func (e *CacheSyncError) Is(target error) bool {
	return target == domain.ErrInfrastructureUnavailable
}

func Key(restaurantID int64) string {
	return fmt.Sprintf("status:restaurant:%d", restaurantID)
}

type StatusCache struct {
	client  *redis.Client
	store   StatusStore
	ttl     time.Duration
	cb      *gobreaker.CircuitBreaker
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

func NewStatusCache(client *redis.Client, store StatusStore, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *StatusCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	st := utils.BreakerSettings("status-cache", logger)
	st.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, redis.Nil)
	}

	return &StatusCache{
		client:  client,
		store:   store,
		ttl:     ttl,
		cb:      gobreaker.NewCircuitBreaker(st),
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer("status_cache"),
	}
}

// Read serves the status from cache, falling back to the store on a miss, on
// an unparseable value or when Redis is unavailable.
func (c *StatusCache) Read(ctx context.Context, restaurantID int64) (domain.RestaurantStatus, error) {
	ctx, span := c.tracer.Start(ctx, "StatusCache.Read")
	defer span.End()

	span.SetAttributes(attribute.Int64("restaurant_id", restaurantID))

	key := Key(restaurantID)
	backendUp := true

	raw, err := utils.ExecuteWithBreaker(c.cb, func() (string, error) {
		return c.client.Get(ctx, key).Result()
	})
	switch {
	case err == nil:
		var s domain.RestaurantStatus
		if jsonErr := json.Unmarshal([]byte(raw), &s); jsonErr == nil {
			c.metrics.CacheRequests.WithLabelValues("hit").Inc()
			span.SetAttributes(attribute.String("cache.result", "hit"))
			return s, nil
		}

		mylogger.Warn(ctx, c.logger, "Unparseable cached restaurant status", zap.String("key", key))
		c.metrics.CacheRequests.WithLabelValues("miss").Inc()

		// Dropped before the store read so a later write-through is never undone.
		if _, err := utils.ExecuteWithBreaker(c.cb, func() (int64, error) {
			return c.client.Del(ctx, key).Result()
		}); err != nil {
			backendUp = false
		}

	case errors.Is(err, redis.Nil):
		c.metrics.CacheRequests.WithLabelValues("miss").Inc()

	default:
		backendUp = false
		c.metrics.CacheRequests.WithLabelValues("error").Inc()
		span.RecordError(err)
		mylogger.Warn(ctx, c.logger, "Status cache unavailable, reading from database",
			zap.Int64("restaurant_id", restaurantID),
			zap.Error(err),
		)
	}

	span.SetAttributes(attribute.String("cache.result", "miss"))

	s, err := c.store.GetStatus(ctx, restaurantID)
	if err != nil {
		return domain.RestaurantStatus{}, err
	}

	if backendUp {
		if err := c.populate(ctx, restaurantID, s); err != nil {
			mylogger.Warn(ctx, c.logger, "Failed to populate status cache",
				zap.Int64("restaurant_id", restaurantID),
				zap.Error(err),
			)
		}
	}

	return s, nil
}

// Write updates the store first and then overwrites the cache entry with the
// stored snapshot. A failed cache write returns the snapshot together with a
// *CacheSyncError.
func (c *StatusCache) Write(ctx context.Context, restaurantID int64, update domain.StatusUpdate) (domain.RestaurantStatus, error) {
	ctx, span := c.tracer.Start(ctx, "StatusCache.Write")
	defer span.End()

	span.SetAttributes(attribute.Int64("restaurant_id", restaurantID))

	s, err := c.store.UpdateStatus(ctx, restaurantID, update)
	if err != nil {
		return domain.RestaurantStatus{}, err
	}

	if err := c.set(ctx, restaurantID, s); err != nil {
		span.RecordError(err)
		c.metrics.CacheWriteFailures.Inc()

		mylogger.Error(ctx, c.logger, "Restaurant status saved but cache write failed",
			zap.Int64("restaurant_id", restaurantID),
			zap.Error(err),
		)

		return s, &CacheSyncError{RestaurantID: restaurantID, Err: err}
	}

	return s, nil
}

// Resolve replaces the status of every listed restaurant with its cached
// value. Restaurants missing from the cache keep the status they were loaded
// with, which is then cached unless a write-through got there first.
func (c *StatusCache) Resolve(ctx context.Context, restaurants []domain.Restaurant) {
	if len(restaurants) == 0 {
		return
	}

	ctx, span := c.tracer.Start(ctx, "StatusCache.Resolve")
	defer span.End()

	keys := make([]string, len(restaurants))
	for i, r := range restaurants {
		keys[i] = Key(r.ID)
	}

	values, err := utils.ExecuteWithBreaker(c.cb, func() ([]interface{}, error) {
		return c.client.MGet(ctx, keys...).Result()
	})
	if err != nil {
		c.metrics.CacheRequests.WithLabelValues("error").Add(float64(len(keys)))
		span.RecordError(err)
		mylogger.Warn(ctx, c.logger, "Status cache unavailable, listing database status", zap.Error(err))
		return
	}

	var missing []domain.Restaurant
	for i, v := range values {
		if raw, ok := v.(string); ok {
			var s domain.RestaurantStatus
			if json.Unmarshal([]byte(raw), &s) == nil {
				restaurants[i].Status = s
				c.metrics.CacheRequests.WithLabelValues("hit").Inc()
				continue
			}
		}
		c.metrics.CacheRequests.WithLabelValues("miss").Inc()
		missing = append(missing, restaurants[i])
	}

	if len(missing) == 0 {
		return
	}

	_, err = utils.ExecuteWithBreaker(c.cb, func() ([]redis.Cmder, error) {
		return c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, r := range missing {
				data, err := json.Marshal(r.Status)
				if err != nil {
					return err
				}
				pipe.SetNX(ctx, Key(r.ID), data, c.ttl)
			}
			return nil
		})
	})
	if err != nil {
		mylogger.Warn(ctx, c.logger, "Failed to populate status cache", zap.Error(err))
	}
}

func (c *StatusCache) set(ctx context.Context, restaurantID int64, s domain.RestaurantStatus) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal restaurant status: %w", err)
	}

	_, err = utils.ExecuteWithBreaker(c.cb, func() (string, error) {
		return c.client.Set(ctx, Key(restaurantID), data, c.ttl).Result()
	})
	return err
}

// populate caches a snapshot read on a miss. SETNX keeps a value written by a
// concurrent Write, which is never older than the snapshot.
func (c *StatusCache) populate(ctx context.Context, restaurantID int64, s domain.RestaurantStatus) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal restaurant status: %w", err)
	}

	_, err = utils.ExecuteWithBreaker(c.cb, func() (bool, error) {
		return c.client.SetNX(ctx, Key(restaurantID), data, c.ttl).Result()
	})
	return err
}
