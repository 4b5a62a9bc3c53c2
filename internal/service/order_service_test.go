package service_test

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sakashimaa/food-order/internal/domain"
	"github.com/sakashimaa/food-order/internal/pricing"
	"github.com/sakashimaa/food-order/internal/service"
	"github.com/shopspring/decimal"
)

func (s *IntegrationTestSuite) TestCreateOrder_Success() {
	order := s.createOrder()

	s.Require().NotZero(order.ID)
	s.Require().Equal(domain.StatusPending, order.Status)
	s.Require().True(decimal.NewFromInt(300).Equal(order.TotalPrice))
	s.Require().Len(order.Items, 2)

	var total decimal.Decimal
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `SELECT total_price FROM orders WHERE id = $1`, order.ID).Scan(&total))
	s.Require().True(decimal.NewFromInt(300).Equal(total))

	var sum decimal.Decimal
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `
		SELECT SUM(price_at_purchase * quantity) FROM order_items WHERE order_id = $1
	`, order.ID).Scan(&sum))
	s.Require().True(total.Equal(sum))

	s.Require().Equal(1, s.countRows(`
		SELECT COUNT(*) FROM outbox WHERE aggregate_id = $1 AND event_type = 'OrderCreated'
	`, strconv.FormatInt(order.ID, 10)))

	sent := s.Publisher.Sent()
	s.Require().Len(sent, 1)
	s.Require().Equal(domain.Channel{Kind: domain.ActorRestaurant, ID: testRestaurantID}, sent[0].Channel)
	s.Require().Equal(domain.StatusPending, sent[0].Envelope.Status)
	s.Require().Equal(domain.ActorRestaurant, sent[0].Envelope.ReceiverRole)
	s.Require().Equal(order.ID, sent[0].Envelope.Payload.OrderID)
	s.Require().Equal(1.0, testutil.ToFloat64(s.Metrics.OrdersCreated))
}

func (s *IntegrationTestSuite) TestCreateOrder_PriceMismatch() {
	_, err := s.OrderService.CreateOrder(s.Ctx, domain.NewUser(testUserID), service.CreateOrderInput{
		RestaurantID: testRestaurantID,
		Items: []pricing.RequestedItem{
			{CuisineID: cuisineA, Quantity: 1, Size: domain.SizeFull},
			{CuisineID: cuisineB, Quantity: 2, Size: domain.SizeHalf},
		},
		DeclaredTotal: decimal.NewFromInt(250),
	})
	s.Require().ErrorIs(err, domain.ErrPriceMismatch)

	var mismatch *domain.PriceMismatchError
	s.Require().True(errors.As(err, &mismatch))
	s.Require().True(decimal.NewFromInt(250).Equal(mismatch.Client))
	s.Require().True(decimal.NewFromInt(300).Equal(mismatch.Server))

	s.Require().Zero(s.countRows(`SELECT COUNT(*) FROM orders`))
	s.Require().Zero(s.countRows(`SELECT COUNT(*) FROM outbox`))
	s.Require().Empty(s.Publisher.Sent())
}

func (s *IntegrationTestSuite) TestCreateOrder_Rejections() {
	user := domain.NewUser(testUserID)

	_, err := s.OrderService.CreateOrder(s.Ctx, domain.NewRestaurant(testRestaurantID), service.CreateOrderInput{
		RestaurantID:  testRestaurantID,
		Items:         []pricing.RequestedItem{{CuisineID: cuisineA, Quantity: 1, Size: domain.SizeFull}},
		DeclaredTotal: decimal.NewFromInt(200),
	})
	s.Require().ErrorIs(err, domain.ErrForbidden)

	_, err = s.OrderService.CreateOrder(s.Ctx, user, service.CreateOrderInput{
		RestaurantID:  testRestaurantID,
		Items:         []pricing.RequestedItem{{CuisineID: 102, Quantity: 1, Size: domain.SizeFull}},
		DeclaredTotal: decimal.NewFromInt(150),
	})
	s.Require().ErrorIs(err, domain.ErrNotFound)

	_, err = s.OrderService.CreateOrder(s.Ctx, user, service.CreateOrderInput{
		RestaurantID:  otherRestaurant,
		Items:         []pricing.RequestedItem{{CuisineID: 102, Quantity: 1, Size: domain.SizeHalf}},
		DeclaredTotal: decimal.NewFromInt(75),
	})
	s.Require().ErrorIs(err, domain.ErrInvalidRequest)

	s.Require().Zero(s.countRows(`SELECT COUNT(*) FROM orders`))
}

func (s *IntegrationTestSuite) TestCreateOrder_PublishFailureKeepsOrder() {
	s.Publisher.err = domain.ErrInfrastructureUnavailable

	order := s.createOrder()

	s.Require().Equal(1, s.countRows(`SELECT COUNT(*) FROM orders WHERE id = $1`, order.ID))
	s.Require().Equal(1.0, testutil.ToFloat64(s.Metrics.NotificationsPublished.WithLabelValues("failed")))
}

func (s *IntegrationTestSuite) TestRestaurantPrepares_ThenUserCancels() {
	order := s.createOrder()
	restaurant := domain.NewRestaurant(testRestaurantID)
	user := domain.NewUser(testUserID)

	updated, err := s.OrderService.UpdateStatus(s.Ctx, restaurant, order.ID, domain.StatusPreparing)
	s.Require().NoError(err)
	s.Require().Equal(domain.StatusPreparing, updated.Status)

	cancelled, err := s.OrderService.CancelByUser(s.Ctx, user, order.ID)
	s.Require().NoError(err)
	s.Require().Equal(domain.StatusCancelled, cancelled.Status)
	s.Require().NotNil(cancelled.CancelledBy)
	s.Require().Equal(domain.ActorUser, *cancelled.CancelledBy)

	var status, cancelledBy string
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, `
		SELECT status, cancelled_by FROM orders WHERE id = $1
	`, order.ID).Scan(&status, &cancelledBy))
	s.Require().Equal("Cancelled", status)
	s.Require().Equal("user", cancelledBy)

	sent := s.Publisher.Sent()
	s.Require().Len(sent, 3)
	s.Require().Equal(domain.Channel{Kind: domain.ActorUser, ID: testUserID}, sent[1].Channel)
	s.Require().Equal(domain.StatusPreparing, sent[1].Envelope.Status)
	s.Require().Equal(domain.Channel{Kind: domain.ActorRestaurant, ID: testRestaurantID}, sent[2].Channel)
	s.Require().Equal(domain.StatusCancelled, sent[2].Envelope.Status)
}

func (s *IntegrationTestSuite) TestUserCannotCancelReadyOrder() {
	order := s.createOrder()
	restaurant := domain.NewRestaurant(testRestaurantID)

	for _, next := range []domain.OrderStatus{domain.StatusPreparing, domain.StatusReady} {
		_, err := s.OrderService.UpdateStatus(s.Ctx, restaurant, order.ID, next)
		s.Require().NoError(err)
	}

	_, err := s.OrderService.CancelByUser(s.Ctx, domain.NewUser(testUserID), order.ID)
	s.Require().ErrorIs(err, domain.ErrInvalidTransition)

	got, err := s.OrderService.GetOrder(s.Ctx, domain.NewUser(testUserID), order.ID)
	s.Require().NoError(err)
	s.Require().Equal(domain.StatusReady, got.Status)
	s.Require().Nil(got.CancelledBy)
	s.Require().Len(s.Publisher.Sent(), 3)
}

func (s *IntegrationTestSuite) TestUpdateStatus_Rejections() {
	order := s.createOrder()

	_, err := s.OrderService.UpdateStatus(s.Ctx, domain.NewRestaurant(otherRestaurant), order.ID, domain.StatusPreparing)
	s.Require().ErrorIs(err, domain.ErrForbidden)

	_, err = s.OrderService.UpdateStatus(s.Ctx, domain.NewRestaurant(testRestaurantID), order.ID, domain.StatusReady)
	s.Require().ErrorIs(err, domain.ErrInvalidTransition)

	_, err = s.OrderService.UpdateStatus(s.Ctx, domain.NewUser(testUserID), order.ID, domain.StatusPreparing)
	s.Require().ErrorIs(err, domain.ErrForbidden)

	_, err = s.OrderService.UpdateStatus(s.Ctx, domain.NewRestaurant(testRestaurantID), 9999, domain.StatusPreparing)
	s.Require().ErrorIs(err, domain.ErrNotFound)

	_, err = s.OrderService.CancelByUser(s.Ctx, domain.NewRestaurant(testRestaurantID), order.ID)
	s.Require().ErrorIs(err, domain.ErrForbidden)

	s.Require().Len(s.Publisher.Sent(), 1)
}

func (s *IntegrationTestSuite) TestConcurrentTransitions_OneWins() {
	order := s.createOrder()
	restaurant := domain.NewRestaurant(testRestaurantID)
	user := domain.NewUser(testUserID)

	errs := make(chan error, 2)
	go func() {
		_, err := s.OrderService.UpdateStatus(s.Ctx, restaurant, order.ID, domain.StatusPreparing)
		errs <- err
	}()
	go func() {
		_, err := s.OrderService.CancelByUser(s.Ctx, user, order.ID)
		errs <- err
	}()

	var failures []error
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			failures = append(failures, err)
		}
	}

	// Either both succeed in sequence (prepare then cancel) or the loser sees
	// a conflict or a transition that is no longer valid.
	for _, err := range failures {
		s.Require().True(
			errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrInvalidTransition),
			"unexpected error: %v", err,
		)
	}

	got, err := s.OrderService.GetOrder(s.Ctx, user, order.ID)
	s.Require().NoError(err)
	s.Require().Contains([]domain.OrderStatus{domain.StatusPreparing, domain.StatusCancelled}, got.Status)
	s.Require().Len(s.Publisher.Sent(), 1+2-len(failures))
}

func (s *IntegrationTestSuite) TestSubscriberReceivesCounterpartyNotification() {
	order := s.createOrder()

	sub, err := s.Bus.Subscribe(s.Ctx, domain.NewUser(testUserID).Channel())
	s.Require().NoError(err)
	defer sub.Close()

	_, err = s.OrderService.UpdateStatus(s.Ctx, domain.NewRestaurant(testRestaurantID), order.ID, domain.StatusPreparing)
	s.Require().NoError(err)

	select {
	case env := <-sub.Messages():
		s.Require().Equal(domain.StatusPreparing, env.Status)
		s.Require().Equal(domain.ActorUser, env.ReceiverRole)
		s.Require().Equal(order.ID, env.Payload.OrderID)
	case <-time.After(2 * time.Second):
		s.FailNow("user did not receive the status notification")
	}
}

func (s *IntegrationTestSuite) TestListOrders_PerActor() {
	first := s.createOrder()
	second := s.createOrder()

	mine, err := s.OrderService.ListOrders(s.Ctx, domain.NewUser(testUserID))
	s.Require().NoError(err)
	s.Require().Len(mine, 2)
	s.Require().Equal(second.ID, mine[0].ID)
	s.Require().Equal(first.ID, mine[1].ID)
	s.Require().Len(mine[0].Items, 2)

	incoming, err := s.OrderService.ListOrders(s.Ctx, domain.NewRestaurant(testRestaurantID))
	s.Require().NoError(err)
	s.Require().Len(incoming, 2)

	none, err := s.OrderService.ListOrders(s.Ctx, domain.NewRestaurant(otherRestaurant))
	s.Require().NoError(err)
	s.Require().Empty(none)

	_, err = s.OrderService.GetOrder(s.Ctx, domain.NewRestaurant(otherRestaurant), first.ID)
	s.Require().ErrorIs(err, domain.ErrNotFound)
}

func (s *IntegrationTestSuite) TestOutboxRelay() {
	order := s.createOrder()
	_, err := s.OrderService.UpdateStatus(s.Ctx, domain.NewRestaurant(testRestaurantID), order.ID, domain.StatusPreparing)
	s.Require().NoError(err)

	published, err := s.Outbox.ProcessBatch(s.Ctx)
	s.Require().NoError(err)
	s.Require().Equal(2, published)

	s.Require().Len(s.Producer.messages, 2)
	s.Require().Equal(topic, s.Producer.messages[0].Topic)
	s.Require().Equal(strconv.FormatInt(order.ID, 10), s.Producer.messages[0].Key)
	s.Require().Equal("OrderCreated", s.Producer.messages[0].Headers["event_type"])
	s.Require().Equal("OrderStatusChanged", s.Producer.messages[1].Headers["event_type"])
	s.Require().Contains(string(s.Producer.messages[1].Value), `"to":"Preparing"`)

	s.Require().Zero(s.countRows(`SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`))

	published, err = s.Outbox.ProcessBatch(s.Ctx)
	s.Require().NoError(err)
	s.Require().Zero(published)
}
