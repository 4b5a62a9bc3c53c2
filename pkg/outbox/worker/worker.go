package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/food-order/pkg/kafka"
	"github.com/sakashimaa/food-order/pkg/mylogger"
	"github.com/sakashimaa/food-order/pkg/outbox/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OutboxRepository interface {
	SaveOutboxEvent(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent) error
	GetUnpublishedEvents(ctx context.Context, tx pgx.Tx, batchSize int) ([]*domain.OutboxEvent, error)
	MarkEventPublished(ctx context.Context, tx pgx.Tx, eventID int64) error
	MarkEventFailed(ctx context.Context, tx pgx.Tx, eventID int64, errMsg string) error
}

type MessageProducer interface {
	ProduceMessage(ctx context.Context, msg kafka.Message) error
}

// OutboxProcessor relays committed outbox rows to the broker. Rows are locked
// with SKIP LOCKED, so several replicas can run it side by side.
type OutboxProcessor struct {
	pool      *pgxpool.Pool
	repo      OutboxRepository
	producer  MessageProducer
	logger    *zap.Logger
	batchSize int
	interval  time.Duration
	tracer    trace.Tracer
}

func NewOutboxProcessor(
	pool *pgxpool.Pool,
	repo OutboxRepository,
	producer MessageProducer,
	logger *zap.Logger,
) *OutboxProcessor {
	return &OutboxProcessor{
		pool:      pool,
		repo:      repo,
		producer:  producer,
		logger:    logger,
		batchSize: 50,
		interval:  500 * time.Millisecond,
		tracer:    otel.Tracer("outbox/worker"),
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	mylogger.Info(ctx, p.logger, "Starting outbox processor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mylogger.Info(context.WithoutCancel(ctx), p.logger, "Outbox processor stopping")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				mylogger.Error(ctx, p.logger, "Error processing outbox batch", zap.Error(err))
			}
		}
	}
}

// ProcessBatch relays one batch and returns how many events were published.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := p.tracer.Start(ctx, "OutboxProcessor.ProcessBatch")
	defer span.End()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		err := tx.Rollback(cleanupCtx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Error(
				cleanupCtx,
				p.logger,
				"Outbox worker failed to rollback transaction",
				zap.Error(err),
			)
		}
	}()

	events, err := p.repo.GetUnpublishedEvents(ctx, tx, p.batchSize)
	if err != nil {
		return 0, err
	}

	if len(events) == 0 {
		return 0, nil
	}

	span.SetAttributes(attribute.Int("outbox.batch", len(events)))

	published := 0
	for _, event := range events {
		err := p.producer.ProduceMessage(ctx, kafka.Message{
			Topic: event.Topic,
			Key:   event.AggregateID,
			Value: event.Payload,
			Headers: map[string]string{
				"event_id":   strconv.FormatInt(event.ID, 10),
				"event_type": event.EventType,
			},
		})
		if err != nil {
			mylogger.Warn(
				ctx,
				p.logger,
				"Outbox worker produce message failed",
				zap.Int64("id", event.ID),
				zap.Error(err),
			)

			if dbErr := p.repo.MarkEventFailed(ctx, tx, event.ID, err.Error()); dbErr != nil {
				return published, dbErr
			}
			continue
		}

		if err := p.repo.MarkEventPublished(ctx, tx, event.ID); err != nil {
			return published, err
		}
		published++

		mylogger.Debug(
			ctx,
			p.logger,
			"Outbox event published",
			zap.Int64("id", event.ID),
			zap.String("event_type", event.EventType),
		)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("error committing outbox batch: %w", err)
	}

	return published, nil
}
