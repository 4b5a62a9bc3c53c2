package service_test

import (
	"github.com/sakashimaa/food-order/internal/cache"
	"github.com/sakashimaa/food-order/internal/domain"
)

func (s *IntegrationTestSuite) TestRestaurantStatus_Defaults() {
	st, err := s.RestaurantService.GetStatus(s.Ctx, testRestaurantID)
	s.Require().NoError(err)
	s.Require().Equal(domain.RestaurantStatus{
		OperatingStatus: domain.DefaultOperatingStatus,
		KitchenStatus:   domain.DefaultKitchenStatus,
		DeliveryStatus:  domain.DefaultDeliveryStatus,
	}, st)
}

func (s *IntegrationTestSuite) TestRestaurantStatus_WriteThenRead() {
	_, err := s.RestaurantService.GetStatus(s.Ctx, testRestaurantID)
	s.Require().NoError(err)

	busy := "Busy"
	res, err := s.RestaurantService.UpdateStatus(s.Ctx, domain.NewRestaurant(testRestaurantID), domain.StatusUpdate{KitchenStatus: &busy})
	s.Require().NoError(err)
	s.Require().True(res.CacheSynced)
	s.Require().Equal("Busy", res.Status.KitchenStatus)
	s.Require().Equal("Open", res.Status.OperatingStatus)

	st, err := s.RestaurantService.GetStatus(s.Ctx, testRestaurantID)
	s.Require().NoError(err)
	s.Require().Equal("Busy", st.KitchenStatus)

	s.Require().NoError(s.Redis.Del(s.Ctx, cache.Key(testRestaurantID)).Err())

	st, err = s.RestaurantService.GetStatus(s.Ctx, testRestaurantID)
	s.Require().NoError(err)
	s.Require().Equal("Busy", st.KitchenStatus)
}

func (s *IntegrationTestSuite) TestRestaurantStatus_Rejections() {
	busy := "Busy"

	_, err := s.RestaurantService.UpdateStatus(s.Ctx, domain.NewUser(testUserID), domain.StatusUpdate{KitchenStatus: &busy})
	s.Require().ErrorIs(err, domain.ErrForbidden)

	_, err = s.RestaurantService.UpdateStatus(s.Ctx, domain.NewRestaurant(testRestaurantID), domain.StatusUpdate{})
	s.Require().ErrorIs(err, domain.ErrInvalidRequest)

	_, err = s.RestaurantService.UpdateStatus(s.Ctx, domain.NewRestaurant(999), domain.StatusUpdate{KitchenStatus: &busy})
	s.Require().ErrorIs(err, domain.ErrNotFound)

	_, err = s.RestaurantService.GetStatus(s.Ctx, 999)
	s.Require().ErrorIs(err, domain.ErrNotFound)
}

func (s *IntegrationTestSuite) TestListRestaurants_UsesCachedStatus() {
	closed := "Closed"
	_, err := s.RestaurantService.UpdateStatus(s.Ctx, domain.NewRestaurant(otherRestaurant), domain.StatusUpdate{OperatingStatus: &closed})
	s.Require().NoError(err)

	list, err := s.RestaurantService.List(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Require().Equal(testRestaurantID, list[0].ID)
	s.Require().Equal("Open", list[0].Status.OperatingStatus)
	s.Require().Equal("Closed", list[1].Status.OperatingStatus)

	n, err := s.Redis.Exists(s.Ctx, cache.Key(testRestaurantID), cache.Key(otherRestaurant)).Result()
	s.Require().NoError(err)
	s.Require().Equal(int64(2), n)
}
