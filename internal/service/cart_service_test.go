package service_test

import (
	"github.com/sakashimaa/go-storefront/internal/domain"
)

func (s *IntegrationTestSuite) TestAddItem_NewLine() {
	productID := s.seedProduct("Canvas Sneaker", 5000, 10)

	view, err := s.CartService.AddItem(s.Ctx, 1, productID, 2, "")
	s.Require().NoError(err)

	s.Require().Len(view.Items, 1)
	s.Equal(int32(2), view.Items[0].Quantity)
	s.Equal(int64(5000), view.Items[0].UnitPrice)
	s.Equal(int64(10000), view.Summary.TotalPrice)
	s.False(view.IsEmpty)
}

func (s *IntegrationTestSuite) TestAddItem_MergesSameLine() {
	productID := s.seedProduct("Canvas Sneaker", 5000, 10)

	_, err := s.CartService.AddItem(s.Ctx, 1, productID, 2, "42")
	s.Require().NoError(err)

	view, err := s.CartService.AddItem(s.Ctx, 1, productID, 3, "42")
	s.Require().NoError(err)

	s.Require().Len(view.Items, 1, "same (product, size) merges into one line")
	s.Equal(int32(5), view.Items[0].Quantity)
}

func (s *IntegrationTestSuite) TestAddItem_DistinctSizesAreDistinctLines() {
	productID := s.seedProduct("Canvas Sneaker", 5000, 10)

	_, err := s.CartService.AddItem(s.Ctx, 1, productID, 1, "41")
	s.Require().NoError(err)

	view, err := s.CartService.AddItem(s.Ctx, 1, productID, 1, "42")
	s.Require().NoError(err)

	s.Len(view.Items, 2)
}

func (s *IntegrationTestSuite) TestAddItem_ClampsAtMaxQuantity() {
	productID := s.seedProduct("Wool Sock", 1000, 500)

	_, err := s.CartService.AddItem(s.Ctx, 1, productID, 97, "")
	s.Require().NoError(err)

	view, err := s.CartService.AddItem(s.Ctx, 1, productID, 10, "")
	s.Require().NoError(err)

	s.Require().Len(view.Items, 1)
	s.Equal(domain.MaxLineQuantity, view.Items[0].Quantity)
}

func (s *IntegrationTestSuite) TestAddItem_ValidatesMergedQuantity() {
	productID := s.seedProduct("Canvas Sneaker", 5000, 4)

	_, err := s.CartService.AddItem(s.Ctx, 1, productID, 3, "")
	s.Require().NoError(err)

	// 3 already held, stock is 4: adding 2 means the line would hold 5.
	_, err = s.CartService.AddItem(s.Ctx, 1, productID, 2, "")
	s.Require().Error(err)
	s.Equal(domain.KindInsufficientStock, domain.KindOf(err))

	view, err := s.CartService.GetCart(s.Ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(view.Items, 1)
	s.Equal(int32(3), view.Items[0].Quantity, "failed add writes nothing")
}

func (s *IntegrationTestSuite) TestAddItem_ProductNotFound() {
	_, err := s.CartService.AddItem(s.Ctx, 1, 424242, 1, "")
	s.Require().Error(err)
	s.Equal(domain.KindNotFound, domain.KindOf(err))
}

func (s *IntegrationTestSuite) TestAddItem_OutOfStock() {
	productID := s.seedProduct("Canvas Sneaker", 5000, 0)

	_, err := s.CartService.AddItem(s.Ctx, 1, productID, 1, "")
	s.Require().Error(err)
	s.Equal(domain.KindOutOfStock, domain.KindOf(err))
}

func (s *IntegrationTestSuite) TestAddItem_VariantPriceResolved() {
	productID := s.seedProduct("Canvas Sneaker", 5000, 10)
	s.seedVariant(productID, "46", 6500)

	view, err := s.CartService.AddItem(s.Ctx, 1, productID, 2, "46")
	s.Require().NoError(err)

	s.Require().Len(view.Items, 1)
	s.Equal(int64(6500), view.Items[0].UnitPrice)
	s.Equal(int64(13000), view.Summary.TotalPrice)
}

func (s *IntegrationTestSuite) TestSetQuantity() {
	productID := s.seedProduct("Canvas Sneaker", 5000, 10)

	view, err := s.CartService.AddItem(s.Ctx, 1, productID, 2, "")
	s.Require().NoError(err)
	lineID := view.Items[0].LineID

	view, err = s.CartService.SetQuantity(s.Ctx, 1, lineID, 7)
	s.Require().NoError(err)
	s.Equal(int32(7), view.Items[0].Quantity)
}

func (s *IntegrationTestSuite) TestSetQuantity_ZeroRemovesLine() {
	productID := s.seedProduct("Canvas Sneaker", 5000, 10)

	view, err := s.CartService.AddItem(s.Ctx, 1, productID, 2, "")
	s.Require().NoError(err)
	lineID := view.Items[0].LineID

	view, err = s.CartService.SetQuantity(s.Ctx, 1, lineID, 0)
	s.Require().NoError(err)
	s.True(view.IsEmpty)
}

func (s *IntegrationTestSuite) TestSetQuantity_RejectsOverStock() {
	productID := s.seedProduct("Canvas Sneaker", 5000, 4)

	view, err := s.CartService.AddItem(s.Ctx, 1, productID, 2, "")
	s.Require().NoError(err)
	lineID := view.Items[0].LineID

	_, err = s.CartService.SetQuantity(s.Ctx, 1, lineID, 5)
	s.Require().Error(err)
	s.Equal(domain.KindInsufficientStock, domain.KindOf(err))
}

func (s *IntegrationTestSuite) TestRemoveItem_Idempotent() {
	productID := s.seedProduct("Canvas Sneaker", 5000, 10)

	view, err := s.CartService.AddItem(s.Ctx, 1, productID, 2, "")
	s.Require().NoError(err)
	lineID := view.Items[0].LineID

	view, err = s.CartService.RemoveItem(s.Ctx, 1, lineID)
	s.Require().NoError(err)
	s.True(view.IsEmpty)

	// Removing an already-removed line is a no-op, not an error.
	view, err = s.CartService.RemoveItem(s.Ctx, 1, lineID)
	s.Require().NoError(err)
	s.True(view.IsEmpty)
}

func (s *IntegrationTestSuite) TestRemoveItem_ScopedToOwner() {
	productID := s.seedProduct("Canvas Sneaker", 5000, 10)

	view, err := s.CartService.AddItem(s.Ctx, 1, productID, 2, "")
	s.Require().NoError(err)
	lineID := view.Items[0].LineID

	// Another user cannot touch the line.
	_, err = s.CartService.RemoveItem(s.Ctx, 2, lineID)
	s.Require().NoError(err)

	s.Equal(1, s.cartLineCount(1))
}

func (s *IntegrationTestSuite) TestClear() {
	productA := s.seedProduct("Canvas Sneaker", 5000, 10)
	productB := s.seedProduct("Wool Sock", 1000, 10)

	_, err := s.CartService.AddItem(s.Ctx, 1, productA, 1, "")
	s.Require().NoError(err)
	_, err = s.CartService.AddItem(s.Ctx, 1, productB, 2, "")
	s.Require().NoError(err)

	view, err := s.CartService.Clear(s.Ctx, 1)
	s.Require().NoError(err)
	s.True(view.IsEmpty)
	s.Equal(0, s.cartLineCount(1))
}

func (s *IntegrationTestSuite) TestSummary_ReflectsCurrentPrices() {
	productID := s.seedProduct("Canvas Sneaker", 5000, 10)

	_, err := s.CartService.AddItem(s.Ctx, 1, productID, 2, "")
	s.Require().NoError(err)

	summary, err := s.CartService.Summary(s.Ctx, 1)
	s.Require().NoError(err)
	s.Equal(int64(10000), summary.TotalPrice)

	// Catalog price edits show up on the next read, nothing is frozen.
	_, err = s.DbPool.Exec(s.Ctx, "UPDATE products SET price = 7000 WHERE id = $1", productID)
	s.Require().NoError(err)

	summary, err = s.CartService.Summary(s.Ctx, 1)
	s.Require().NoError(err)
	s.Equal(int64(14000), summary.TotalPrice)
	s.Equal(int32(2), summary.TotalQuantity)
	s.Equal(1, summary.ItemCount)
}
