package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type transitionCase struct {
	from OrderStatus
	by   ActorKind
	to   OrderStatus
}

func allowedTransitions() map[transitionCase]ActorKind {
	return map[transitionCase]ActorKind{
		{StatusPending, ActorRestaurant, StatusPreparing}:   "",
		{StatusPreparing, ActorRestaurant, StatusReady}:     "",
		{StatusReady, ActorRestaurant, StatusDelivered}:     "",
		{StatusPending, ActorRestaurant, StatusCancelled}:   ActorRestaurant,
		{StatusPreparing, ActorRestaurant, StatusCancelled}: ActorRestaurant,
		{StatusReady, ActorRestaurant, StatusCancelled}:     ActorRestaurant,
		{StatusPending, ActorUser, StatusCancelled}:         ActorUser,
		{StatusPreparing, ActorUser, StatusCancelled}:       ActorUser,
	}
}

func TestPlanTransition_EveryTriple(t *testing.T) {
	allowed := allowedTransitions()

	for _, from := range AllStatuses {
		for _, by := range []ActorKind{ActorUser, ActorRestaurant} {
			for _, to := range AllStatuses {
				tc := transitionCase{from, by, to}
				t.Run(string(from)+"/"+string(by)+"/"+string(to), func(t *testing.T) {
					tr, err := PlanTransition(from, by, to)

					cancelledBy, ok := allowed[tc]
					if !ok {
						require.Error(t, err)
						kind := Kind(err)
						require.True(t, kind == ErrInvalidTransition || kind == ErrForbidden, "unexpected kind: %v", err)
						return
					}

					require.NoError(t, err)
					require.Equal(t, from, tr.From)
					require.Equal(t, to, tr.To)
					if cancelledBy == "" {
						require.Nil(t, tr.CancelledBy)
					} else {
						require.NotNil(t, tr.CancelledBy)
						require.Equal(t, cancelledBy, *tr.CancelledBy)
					}
				})
			}
		}
	}
}

func TestPlanTransition_ErrorKinds(t *testing.T) {
	_, err := PlanTransition(StatusPending, ActorUser, StatusPreparing)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = PlanTransition(StatusReady, ActorUser, StatusCancelled)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = PlanTransition(StatusPending, ActorRestaurant, StatusReady)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = PlanTransition(StatusPreparing, ActorRestaurant, StatusPreparing)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = PlanTransition(StatusCancelled, ActorRestaurant, StatusCancelled)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = PlanTransition(StatusPending, ActorRestaurant, OrderStatus("Eaten"))
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestParseOrderStatus(t *testing.T) {
	s, err := ParseOrderStatus(" preparing ")
	require.NoError(t, err)
	require.Equal(t, StatusPreparing, s)

	_, err = ParseOrderStatus("shipped")
	require.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestChannelName(t *testing.T) {
	require.Equal(t, "restaurant:7:notifications", NewRestaurant(7).Channel().Name())
	require.Equal(t, "user:42:notifications", NewUser(42).Channel().Name())
}

func TestOrder_Counterparty(t *testing.T) {
	o := &Order{ID: 1, UserID: 42, RestaurantID: 7}

	require.Equal(t, Channel{Kind: ActorUser, ID: 42}, o.Counterparty(ActorRestaurant))
	require.Equal(t, Channel{Kind: ActorRestaurant, ID: 7}, o.Counterparty(ActorUser))
	require.True(t, o.OwnedBy(NewUser(42)))
	require.True(t, o.OwnedBy(NewRestaurant(7)))
	require.False(t, o.OwnedBy(NewUser(7)))
	require.False(t, o.OwnedBy(NewRestaurant(42)))
}

func TestPriceMismatchError_Is(t *testing.T) {
	var err error = &PriceMismatchError{}
	require.ErrorIs(t, err, ErrPriceMismatch)
	require.Equal(t, ErrPriceMismatch, Kind(err))
}
