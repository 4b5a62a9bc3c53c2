package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sakashimaa/food-order/internal/domain"
	"github.com/sakashimaa/food-order/internal/metrics"
	"github.com/sakashimaa/food-order/pkg/mylogger"
	"go.uber.org/zap"
)

const DefaultHeartbeatInterval = 15 * time.Second

// Sink is one connected client. Any error is taken as the peer having gone
// away.
type Sink interface {
	Send(env domain.NotificationEnvelope) error
	Heartbeat() error
}

type Stream struct {
	bus       Subscriber
	heartbeat time.Duration
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewStream(bus Subscriber, heartbeat time.Duration, logger *zap.Logger, m *metrics.Metrics) *Stream {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}

	return &Stream{
		bus:       bus,
		heartbeat: heartbeat,
		logger:    logger,
		metrics:   m,
	}
}

// Run forwards every envelope published to the actor's channel into sink
// until ctx is done or the sink fails. The first heartbeat is sent as soon
// as the subscription is live. Run returns nil on disconnect.
func (s *Stream) Run(ctx context.Context, actor domain.Actor, sink Sink) error {
	connID := uuid.NewString()
	ch := actor.Channel()

	sub, err := s.bus.Subscribe(ctx, ch)
	if err != nil {
		return err
	}
	defer func() {
		if err := sub.Close(); err != nil {
			mylogger.Warn(ctx, s.logger, "Failed to close subscription",
				zap.String("conn_id", connID),
				zap.Error(err),
			)
		}
	}()

	s.metrics.ActiveStreams.Inc()
	defer s.metrics.ActiveStreams.Dec()

	mylogger.Info(ctx, s.logger, "Notification stream opened",
		zap.String("conn_id", connID),
		zap.String("channel", ch.Name()),
	)
	defer mylogger.Info(ctx, s.logger, "Notification stream closed",
		zap.String("conn_id", connID),
		zap.String("channel", ch.Name()),
	)

	if err := sink.Heartbeat(); err != nil {
		return nil
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	messages := sub.Messages()
	for {
		select {
		case <-ctx.Done():
			return nil

		case env, ok := <-messages:
			if !ok {
				return fmt.Errorf("%w: subscription to %s closed", domain.ErrInfrastructureUnavailable, ch.Name())
			}
			if err := sink.Send(env); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := sink.Heartbeat(); err != nil {
				return nil
			}
		}
	}
}
