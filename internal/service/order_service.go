package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/food-order/internal/domain"
	"github.com/sakashimaa/food-order/internal/metrics"
	"github.com/sakashimaa/food-order/internal/notification"
	"github.com/sakashimaa/food-order/internal/pricing"
	"github.com/sakashimaa/food-order/internal/repository"
	"github.com/sakashimaa/food-order/pkg/mylogger"
	outboxDomain "github.com/sakashimaa/food-order/pkg/outbox/domain"
	"github.com/sakashimaa/food-order/pkg/outbox/worker"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"

	publishTimeout = 3 * time.Second
)

type CreateOrderInput struct {
	RestaurantID  int64
	Items         []pricing.RequestedItem
	DeclaredTotal decimal.Decimal
}

type OrderService interface {
	CreateOrder(ctx context.Context, actor domain.Actor, in CreateOrderInput) (*domain.Order, error)
	UpdateStatus(ctx context.Context, actor domain.Actor, orderID int64, newStatus domain.OrderStatus) (*domain.Order, error)
	CancelByUser(ctx context.Context, actor domain.Actor, orderID int64) (*domain.Order, error)
	GetOrder(ctx context.Context, actor domain.Actor, orderID int64) (*domain.Order, error)
	ListOrders(ctx context.Context, actor domain.Actor) ([]*domain.Order, error)
}

type OrderServiceDeps struct {
	Pool       *pgxpool.Pool
	OrderRepo  repository.OrderRepository
	OutboxRepo worker.OutboxRepository
	Pricing    *pricing.Engine
	Publisher  notification.Publisher
	Authorizer Authorizer
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
	Topic      string
}

type orderService struct {
	pool       *pgxpool.Pool
	orderRepo  repository.OrderRepository
	outboxRepo worker.OutboxRepository
	pricing    *pricing.Engine
	publisher  notification.Publisher
	authorizer Authorizer
	metrics    *metrics.Metrics
	logger     *zap.Logger
	topic      string
	tracer     trace.Tracer
}

func NewOrderService(deps OrderServiceDeps) OrderService {
	authorizer := deps.Authorizer
	if authorizer == nil {
		authorizer = RoleAuthorizer{}
	}

	return &orderService{
		pool:       deps.Pool,
		orderRepo:  deps.OrderRepo,
		outboxRepo: deps.OutboxRepo,
		pricing:    deps.Pricing,
		publisher:  deps.Publisher,
		authorizer: authorizer,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		topic:      deps.Topic,
		tracer:     otel.Tracer("order_service"),
	}
}

func (s *orderService) CreateOrder(ctx context.Context, actor domain.Actor, in CreateOrderInput) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	span.SetAttributes(
		attribute.String("actor", actor.String()),
		attribute.Int64("restaurant_id", in.RestaurantID),
	)

	if err := s.authorizer.CanPlaceOrder(actor); err != nil {
		return nil, err
	}

	quote, err := s.pricing.Compute(ctx, in.RestaurantID, in.Items)
	if err != nil {
		return nil, err
	}

	if err := s.pricing.CheckDeclared(in.DeclaredTotal, quote.Total); err != nil {
		mylogger.Info(
			ctx,
			s.logger,
			"Declared total rejected",
			zap.String("client", in.DeclaredTotal.String()),
			zap.String("server", quote.Total.String()),
		)

		return nil, err
	}

	order := &domain.Order{
		UserID:       actor.ID,
		RestaurantID: in.RestaurantID,
		Status:       domain.StatusPending,
		TotalPrice:   quote.Total,
		Items:        quote.Items,
	}

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		return s.emitEvent(ctx, tx, order, EventOrderCreated, map[string]any{
			"order_id":      order.ID,
			"user_id":       order.UserID,
			"restaurant_id": order.RestaurantID,
			"total_price":   order.TotalPrice,
			"items":         order.Items,
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.OrdersCreated.Inc()
	span.SetAttributes(attribute.Int64("order_id", order.ID))

	mylogger.Info(
		ctx,
		s.logger,
		"Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.Int64("restaurant_id", order.RestaurantID),
		zap.String("total_price", order.TotalPrice.StringFixed(2)),
	)

	s.notify(ctx, order, domain.ActorUser)

	return order, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, actor domain.Actor, orderID int64, newStatus domain.OrderStatus) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("actor", actor.String()),
		attribute.Int64("order_id", orderID),
		attribute.String("new_status", string(newStatus)),
	)

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizer.CanChangeOrder(actor, order); err != nil {
		return nil, err
	}

	tr, err := domain.PlanTransition(order.Status, actor.Kind, newStatus)
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.orderRepo.UpdateStatus(ctx, tx, order, tr); err != nil {
			return err
		}

		payload := map[string]any{
			"order_id": order.ID,
			"from":     tr.From,
			"to":       tr.To,
			"by":       actor.Kind,
		}
		if tr.CancelledBy != nil {
			payload["cancelled_by"] = *tr.CancelledBy
		}

		return s.emitEvent(ctx, tx, order, EventOrderStatusChanged, payload)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.StatusTransitions.WithLabelValues(string(tr.To)).Inc()

	mylogger.Info(
		ctx,
		s.logger,
		"Order status changed",
		zap.Int64("order_id", order.ID),
		zap.String("from", string(tr.From)),
		zap.String("to", string(tr.To)),
		zap.String("by", string(actor.Kind)),
	)

	s.notify(ctx, order, actor.Kind)

	return order, nil
}

func (s *orderService) CancelByUser(ctx context.Context, actor domain.Actor, orderID int64) (*domain.Order, error) {
	if !actor.IsUser() {
		return nil, fmt.Errorf("%w: only the customer can use this cancellation", domain.ErrForbidden)
	}
	return s.UpdateStatus(ctx, actor, orderID, domain.StatusCancelled)
}

// GetOrder hides orders of other parties behind NotFound.
func (s *orderService) GetOrder(ctx context.Context, actor domain.Actor, orderID int64) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.OwnedBy(actor) {
		return nil, repository.ErrOrderNotFound
	}

	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, actor domain.Actor) ([]*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListOrders")
	defer span.End()

	span.SetAttributes(attribute.String("actor", actor.String()))

	switch actor.Kind {
	case domain.ActorUser:
		return s.orderRepo.ListByUser(ctx, actor.ID)
	case domain.ActorRestaurant:
		return s.orderRepo.ListByRestaurant(ctx, actor.ID)
	}

	return nil, fmt.Errorf("%w: unknown actor kind %q", domain.ErrForbidden, actor.Kind)
}

func (s *orderService) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to begin transaction",
			zap.Error(err),
		)

		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		shutdownCtx := context.WithoutCancel(ctx)
		if err := tx.Rollback(shutdownCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(shutdownCtx, s.logger, "Failed to rollback transaction", zap.Error(err))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (s *orderService) emitEvent(ctx context.Context, tx pgx.Tx, order *domain.Order, eventType string, payload any) error {
	wrapper := map[string]any{
		"event":   eventType,
		"payload": payload,
	}

	wrapperBytes, err := json.Marshal(wrapper)
	if err != nil {
		return fmt.Errorf("failed to marshal wrapper: %w", err)
	}

	outboxEvent := &outboxDomain.OutboxEvent{
		AggregateType: "order",
		AggregateID:   strconv.FormatInt(order.ID, 10),
		EventType:     eventType,
		Payload:       wrapperBytes,
		Topic:         s.topic,
	}

	if err := s.outboxRepo.SaveOutboxEvent(ctx, tx, outboxEvent); err != nil {
		return fmt.Errorf("failed to emit event: %w", err)
	}

	return nil
}

// notify tells the counterparty of by about the order's current status. It
// runs after commit, so a failure is only logged and counted.
func (s *orderService) notify(ctx context.Context, order *domain.Order, by domain.ActorKind) {
	ch := order.Counterparty(by)
	env := domain.NewStatusNotification(order, ch.Kind)

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(pubCtx, ch, env); err != nil {
		s.metrics.NotificationsPublished.WithLabelValues("failed").Inc()

		mylogger.Error(
			pubCtx,
			s.logger,
			"Failed to publish order notification",
			zap.Int64("order_id", order.ID),
			zap.String("channel", ch.Name()),
			zap.Error(err),
		)

		return
	}

	s.metrics.NotificationsPublished.WithLabelValues("ok").Inc()
}
