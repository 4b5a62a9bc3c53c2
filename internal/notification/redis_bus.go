package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sakashimaa/food-order/internal/domain"
	"github.com/sakashimaa/food-order/pkg/mylogger"
	"github.com/sakashimaa/food-order/pkg/utils"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const subscriptionBuffer = 16

type redisBus struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
	tracer trace.Tracer
}

func NewRedisBus(client *redis.Client, logger *zap.Logger) Bus {
	return &redisBus{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(utils.BreakerSettings("notification-bus", logger)),
		logger: logger,
		tracer: otel.Tracer("notification_bus"),
	}
}

func (b *redisBus) Publish(ctx context.Context, ch domain.Channel, env domain.NotificationEnvelope) error {
	ctx, span := b.tracer.Start(ctx, "NotificationBus.Publish")
	defer span.End()

	span.SetAttributes(
		attribute.String("channel", ch.Name()),
		attribute.Int64("order_id", env.Payload.OrderID),
	)

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	receivers, err := utils.ExecuteWithBreaker(b.cb, func() (int64, error) {
		return b.client.Publish(ctx, ch.Name(), data).Result()
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: publish to %s: %w", domain.ErrInfrastructureUnavailable, ch.Name(), err)
	}

	span.SetAttributes(attribute.Int64("receivers", receivers))
	mylogger.Debug(ctx, b.logger, "Notification published",
		zap.String("channel", ch.Name()),
		zap.Int64("receivers", receivers),
	)

	return nil
}

func (b *redisBus) Subscribe(ctx context.Context, ch domain.Channel) (Subscription, error) {
	ps := b.client.Subscribe(ctx, ch.Name())

	// Wait for the confirmation so a publish issued after Subscribe returns
	// is delivered to this subscriber.
	if _, err := utils.ExecuteWithBreaker(b.cb, func() (interface{}, error) {
		return ps.Receive(ctx)
	}); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("%w: subscribe to %s: %w", domain.ErrInfrastructureUnavailable, ch.Name(), err)
	}

	sub := &redisSubscription{
		ps:   ps,
		out:  make(chan domain.NotificationEnvelope, subscriptionBuffer),
		done: make(chan struct{}),
	}
	go sub.pump(b.logger, ch.Name())

	return sub, nil
}

type redisSubscription struct {
	ps        *redis.PubSub
	out       chan domain.NotificationEnvelope
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func (s *redisSubscription) Messages() <-chan domain.NotificationEnvelope {
	return s.out
}

func (s *redisSubscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.ps.Close()
	})
	return s.closeErr
}

func (s *redisSubscription) pump(logger *zap.Logger, channel string) {
	defer close(s.out)

	in := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-in:
			if !ok {
				return
			}

			var env domain.NotificationEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logger.Warn("Dropping malformed notification",
					zap.String("channel", channel),
					zap.Error(err),
				)
				continue
			}

			select {
			case s.out <- env:
			case <-s.done:
				return
			}
		}
	}
}
