package service_test

import (
	"github.com/sakashimaa/go-storefront/internal/domain"
)

func (s *IntegrationTestSuite) TestFindByID_CachesProductReads() {
	productID := s.seedProduct("Canvas Sneaker", 5000, 10)

	product, err := s.Catalog.FindByID(s.Ctx, productID)
	s.Require().NoError(err)
	s.Equal(int64(5000), product.Price)

	// A raw catalog edit is invisible until the cache entry expires or is
	// invalidated.
	_, err = s.DbPool.Exec(s.Ctx, "UPDATE products SET price = 9000 WHERE id = $1", productID)
	s.Require().NoError(err)

	product, err = s.Catalog.FindByID(s.Ctx, productID)
	s.Require().NoError(err)
	s.Equal(int64(5000), product.Price)
}

func (s *IntegrationTestSuite) TestFindByID_NotFound() {
	_, err := s.Catalog.FindByID(s.Ctx, 424242)
	s.Require().Error(err)
	s.Equal(domain.KindNotFound, domain.KindOf(err))
}

func (s *IntegrationTestSuite) TestPlaceOrder_InvalidatesProductCache() {
	productID := s.seedProduct("Canvas Sneaker", 5000, 10)

	product, err := s.Catalog.FindByID(s.Ctx, productID)
	s.Require().NoError(err)
	s.Equal(int32(10), product.StockCount)

	_, err = s.CartService.AddItem(s.Ctx, 1, productID, 2, "")
	s.Require().NoError(err)

	_, err = s.CheckoutService.PlaceOrder(s.Ctx, 1, s.placeInput())
	s.Require().NoError(err)

	// The committed decrement evicted the entry, so the next read is fresh.
	product, err = s.Catalog.FindByID(s.Ctx, productID)
	s.Require().NoError(err)
	s.Equal(int32(8), product.StockCount)
}
