package service_test

import (
	"fmt"
	"regexp"
	"time"

	"github.com/sakashimaa/go-storefront/internal/domain"
	"github.com/sakashimaa/go-storefront/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func (s *IntegrationTestSuite) TestPlaceOrder_Success() {
	sneaker := s.seedProduct("Canvas Sneaker", 5000, 10)
	s.seedVariant(sneaker, "42", 6000)
	sock := s.seedProduct("Wool Sock", 2000, 20)

	_, err := s.CartService.AddItem(s.Ctx, 1, sneaker, 2, "42")
	s.Require().NoError(err)
	_, err = s.CartService.AddItem(s.Ctx, 1, sock, 4, "")
	s.Require().NoError(err)

	order, err := s.CheckoutService.PlaceOrder(s.Ctx, 1, s.placeInput())
	s.Require().NoError(err)

	s.Regexp(regexp.MustCompile(`^ORD-\d{14}-[0-9A-F]{8}$`), order.OrderNumber)
	s.Equal(domain.OrderStatusPending, order.Status)
	s.Equal(int64(20000), order.Subtotal)
	s.Equal(int64(3000), order.Tax)
	s.Equal(int64(5000), order.Shipping)
	s.Equal(int64(28000), order.Total)
	s.Len(order.Items, 2)

	s.Equal(int32(8), s.stockCount(sneaker))
	s.Equal(int32(16), s.stockCount(sock))
	s.Equal(0, s.cartLineCount(1), "cart is cleared on commit")
	s.Equal(1, s.orderCount(1))
}

func (s *IntegrationTestSuite) TestPlaceOrder_WritesOutboxAndPublishes() {
	productID := s.seedProduct("Canvas Sneaker", 5000, 10)

	_, err := s.CartService.AddItem(s.Ctx, 1, productID, 1, "")
	s.Require().NoError(err)

	order, err := s.CheckoutService.PlaceOrder(s.Ctx, 1, s.placeInput())
	s.Require().NoError(err)

	var outboxID int64
	err = s.DbPool.QueryRow(
		s.Ctx,
		"SELECT id FROM outbox WHERE aggregate_id = $1",
		fmt.Sprintf("%d", order.ID),
	).Scan(&outboxID)
	s.Require().NoError(err, "outbox row is written in the same transaction")

	s.Require().Eventually(func() bool {
		var publishedAt *time.Time
		err := s.DbPool.QueryRow(
			s.Ctx,
			"SELECT published_at FROM outbox WHERE id = $1",
			outboxID,
		).Scan(&publishedAt)

		return err == nil && publishedAt != nil
	}, 5*time.Second, 100*time.Millisecond)
}

func (s *IntegrationTestSuite) TestPlaceOrder_EmptyCart() {
	_, err := s.CheckoutService.PlaceOrder(s.Ctx, 1, s.placeInput())
	s.Require().Error(err)
	s.Equal(domain.KindEmptyCart, domain.KindOf(err))

	s.Equal(0, s.orderCount(1), "no order row on an aborted placement")

	var outboxCount int
	s.Require().NoError(s.DbPool.QueryRow(s.Ctx, "SELECT COUNT(*) FROM outbox").Scan(&outboxCount))
	s.Equal(0, outboxCount)
}

func (s *IntegrationTestSuite) TestPlaceOrder_InsufficientStockAbortsCleanly() {
	sneaker := s.seedProduct("Canvas Sneaker", 5000, 10)
	sock := s.seedProduct("Wool Sock", 2000, 1)

	_, err := s.CartService.AddItem(s.Ctx, 1, sneaker, 2, "")
	s.Require().NoError(err)
	_, err = s.CartService.AddItem(s.Ctx, 1, sock, 1, "")
	s.Require().NoError(err)

	// Stock drains between add-to-cart and checkout.
	_, err = s.DbPool.Exec(s.Ctx, "UPDATE products SET stock_count = 0, in_stock = FALSE WHERE id = $1", sock)
	s.Require().NoError(err)

	_, err = s.CheckoutService.PlaceOrder(s.Ctx, 1, s.placeInput())
	s.Require().Error(err)
	s.Equal(domain.KindOutOfStock, domain.KindOf(err))

	s.Equal(0, s.orderCount(1))
	s.Equal(int32(10), s.stockCount(sneaker), "no partial decrement survives the abort")
	s.Equal(2, s.cartLineCount(1), "cart is untouched on an aborted placement")
}

func (s *IntegrationTestSuite) TestPlaceOrder_MultipleVariantLinesDecrementOnce() {
	sneaker := s.seedProduct("Canvas Sneaker", 5000, 10)
	s.seedVariant(sneaker, "41", 5000)
	s.seedVariant(sneaker, "42", 5000)

	_, err := s.CartService.AddItem(s.Ctx, 1, sneaker, 2, "41")
	s.Require().NoError(err)
	_, err = s.CartService.AddItem(s.Ctx, 1, sneaker, 3, "42")
	s.Require().NoError(err)

	_, err = s.CheckoutService.PlaceOrder(s.Ctx, 1, s.placeInput())
	s.Require().NoError(err)

	s.Equal(int32(5), s.stockCount(sneaker), "both variant lines drain the shared count")
}

func (s *IntegrationTestSuite) TestPlaceOrder_SnapshotSurvivesCatalogEdits() {
	productID := s.seedProduct("Canvas Sneaker", 5000, 10)

	_, err := s.CartService.AddItem(s.Ctx, 1, productID, 2, "")
	s.Require().NoError(err)

	placed, err := s.CheckoutService.PlaceOrder(s.Ctx, 1, s.placeInput())
	s.Require().NoError(err)

	_, err = s.DbPool.Exec(s.Ctx, "UPDATE products SET price = 9999, name = 'Renamed' WHERE id = $1", productID)
	s.Require().NoError(err)

	order, err := s.CheckoutService.GetOrder(s.Ctx, 1, placed.ID)
	s.Require().NoError(err)

	s.Require().Len(order.Items, 1)
	s.Equal("Canvas Sneaker", order.Items[0].Name)
	s.Equal(int64(5000), order.Items[0].Price)
	s.Equal(int64(10000), order.Subtotal)
}

func (s *IntegrationTestSuite) TestPlaceOrder_ConcurrentLastUnit() {
	productID := s.seedProduct("Canvas Sneaker", 5000, 1)

	_, err := s.CartService.AddItem(s.Ctx, 1, productID, 1, "")
	s.Require().NoError(err)
	_, err = s.CartService.AddItem(s.Ctx, 2, productID, 1, "")
	s.Require().NoError(err)

	results := make([]error, 2)

	var g errgroup.Group
	for i, userID := range []int64{1, 2} {
		i, userID := i, userID
		g.Go(func() error {
			_, results[i] = s.CheckoutService.PlaceOrder(s.Ctx, userID, s.placeInput())
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	var committed, aborted int
	for _, err := range results {
		if err == nil {
			committed++
			continue
		}

		aborted++
		// The loser fails at validation or at the conditional decrement,
		// depending on whether the winner committed first.
		s.Contains(
			[]domain.ErrorKind{domain.KindInsufficientStock, domain.KindOutOfStock},
			domain.KindOf(err),
		)
	}

	s.Equal(1, committed, "exactly one placement wins the last unit")
	s.Equal(1, aborted)
	s.Equal(int32(0), s.stockCount(productID))

	// The loser keeps their cart, the winner's is gone.
	s.Equal(1, s.cartLineCount(1)+s.cartLineCount(2))
}

func (s *IntegrationTestSuite) TestCreateOrder_NumberCollisionKeepsTransactionUsable() {
	repo := repository.NewOrderRepository(s.DbPool, zap.NewNop())

	taken := domain.NewOrderNumber(time.Now())
	_, err := s.DbPool.Exec(
		s.Ctx,
		`INSERT INTO orders (order_number, user_id, status, subtotal, tax, shipping, total, shipping_address)
		 VALUES ($1, 1, 'pending', 0, 0, 0, 0, '{}'::jsonb)`,
		taken,
	)
	s.Require().NoError(err)

	tx, err := s.DbPool.Begin(s.Ctx)
	s.Require().NoError(err)
	defer func() { _ = tx.Rollback(s.Ctx) }()

	order := &domain.Order{
		OrderNumber: taken,
		UserID:      2,
		Status:      domain.OrderStatusPending,
		Subtotal:    5000,
		Total:       5000,
		ShippingAddress: domain.Address{
			Name: "Test User", Line1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US",
		},
		Items: []domain.OrderLine{
			{ProductID: 1, Name: "Canvas Sneaker", Price: 5000, Quantity: 1, Subtotal: 5000},
		},
	}

	err = repo.CreateOrder(s.Ctx, tx, order)
	s.Require().ErrorIs(err, repository.ErrDuplicateOrderNumber)

	// The duplicate aborted only its savepoint. The same transaction must
	// carry a retry with a fresh number.
	order.OrderNumber = domain.NewOrderNumber(time.Now())
	s.Require().NoError(repo.CreateOrder(s.Ctx, tx, order))
	s.Require().NoError(tx.Commit(s.Ctx))

	var count int
	err = s.DbPool.QueryRow(
		s.Ctx,
		"SELECT COUNT(*) FROM orders WHERE order_number = $1",
		order.OrderNumber,
	).Scan(&count)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *IntegrationTestSuite) TestPlaceOrder_RaceLoserSeesRemainingStock() {
	productID := s.seedProduct("Canvas Sneaker", 5000, 3)

	_, err := s.CartService.AddItem(s.Ctx, 1, productID, 2, "")
	s.Require().NoError(err)
	_, err = s.CartService.AddItem(s.Ctx, 2, productID, 2, "")
	s.Require().NoError(err)

	results := make([]error, 2)

	var g errgroup.Group
	for i, userID := range []int64{1, 2} {
		i, userID := i, userID
		g.Go(func() error {
			_, results[i] = s.CheckoutService.PlaceOrder(s.Ctx, userID, s.placeInput())
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	var loser error
	var committed int
	for _, err := range results {
		if err == nil {
			committed++
			continue
		}

		loser = err
	}

	s.Require().Equal(1, committed)
	s.Require().Error(loser)
	s.Equal(domain.KindInsufficientStock, domain.KindOf(loser))

	// One unit is left after the winning commit and the message says so.
	s.Equal(int32(1), s.stockCount(productID))
	s.Contains(loser.Error(), "available 1")
}

func (s *IntegrationTestSuite) TestGetOrder_OtherUsersOrderIsNotFound() {
	productID := s.seedProduct("Canvas Sneaker", 5000, 10)

	_, err := s.CartService.AddItem(s.Ctx, 1, productID, 1, "")
	s.Require().NoError(err)

	placed, err := s.CheckoutService.PlaceOrder(s.Ctx, 1, s.placeInput())
	s.Require().NoError(err)

	_, err = s.CheckoutService.GetOrder(s.Ctx, 2, placed.ID)
	s.Require().Error(err)
	s.Equal(domain.KindNotFound, domain.KindOf(err))
}

func (s *IntegrationTestSuite) TestListOrders_Paginates() {
	productID := s.seedProduct("Wool Sock", 2000, 100)

	for i := 0; i < 3; i++ {
		_, err := s.CartService.AddItem(s.Ctx, 1, productID, 1, "")
		s.Require().NoError(err)

		_, err = s.CheckoutService.PlaceOrder(s.Ctx, 1, s.placeInput())
		s.Require().NoError(err)
	}

	orders, total, err := s.CheckoutService.ListOrders(s.Ctx, 1, 2, 0)
	s.Require().NoError(err)
	s.Equal(int64(3), total)
	s.Len(orders, 2)

	orders, total, err = s.CheckoutService.ListOrders(s.Ctx, 1, 2, 2)
	s.Require().NoError(err)
	s.Equal(int64(3), total)
	s.Len(orders, 1)
}
