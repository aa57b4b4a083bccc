package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/go-storefront/internal/domain"
	"github.com/sakashimaa/go-storefront/internal/repository"
	"github.com/sakashimaa/go-storefront/pkg/mylogger"
	outboxDomain "github.com/sakashimaa/go-storefront/pkg/outbox/domain"
	"github.com/sakashimaa/go-storefront/pkg/outbox/worker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// orderNumberAttempts bounds retries on an order-number collision before the
// whole placement fails.
const orderNumberAttempts = 3

// ProductCache lets checkout drop stale catalog reads after a committed
// stock change. A nil cache is fine.
type ProductCache interface {
	Invalidate(ctx context.Context, productIDs ...int64)
}

type CheckoutService interface {
	PlaceOrder(ctx context.Context, userID int64, input *domain.PlaceOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error)
	ListOrders(ctx context.Context, userID, limit, offset int64) ([]domain.Order, int64, error)
}

type checkoutService struct {
	pool        *pgxpool.Pool
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	orderRepo   repository.OrderRepository
	outboxRepo  worker.OutboxRepository
	cache       ProductCache
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewCheckoutService(
	pool *pgxpool.Pool,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	outboxRepo worker.OutboxRepository,
	cache ProductCache,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutService{
		pool:        pool,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		orderRepo:   orderRepo,
		outboxRepo:  outboxRepo,
		cache:       cache,
		logger:      logger,
		tracer:      otel.Tracer("checkout_service"),
	}
}

// PlaceOrder runs VALIDATE, COMPILE, PERSIST, DECREMENT and CLEAR_CART
// inside one transaction. Any failure before commit leaves no observable
// effect: no order row, no stock change, cart untouched.
func (s *checkoutService) PlaceOrder(ctx context.Context, userID int64, input *domain.PlaceOrderInput) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "CheckoutService.PlaceOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
	)

	order, err := s.placeOrderTx(ctx, userID, input)
	if err != nil {
		checkoutAbortsTotal.WithLabelValues(string(domain.KindOf(err))).Inc()
		span.RecordError(err)

		return nil, err
	}

	ordersPlacedTotal.Inc()

	if s.cache != nil {
		productIDs := make([]int64, 0, len(order.Items))
		for _, item := range order.Items {
			productIDs = append(productIDs, item.ProductID)
		}

		s.cache.Invalidate(context.WithoutCancel(ctx), productIDs...)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Order placed",
		zap.Int64("user_id", userID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("total", order.Total),
	)

	return order, nil
}

func (s *checkoutService) placeOrderTx(ctx context.Context, userID int64, input *domain.PlaceOrderInput) (*domain.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to begin transaction",
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// A client disconnect mid-request must still roll back cleanly.
		cleanupCtx := context.WithoutCancel(ctx)

		err := tx.Rollback(cleanupCtx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(
				cleanupCtx,
				s.logger,
				"Error rolling back transaction",
				zap.Error(err),
			)
		}
	}()

	// VALIDATE: re-read the cart and re-check every line against the stock
	// visible inside this transaction, not anything cached earlier.
	lines, err := s.cartRepo.ListForCheckout(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if len(lines) == 0 {
		return nil, domain.NewError(domain.KindEmptyCart, "cart is empty")
	}

	for _, line := range lines {
		if err := line.CheckAvailability(); err != nil {
			mylogger.Warn(
				ctx,
				s.logger,
				"Checkout validation failed",
				zap.Int64("product_id", line.ProductID),
				zap.String("product_name", line.Name),
			)

			return nil, err
		}
	}

	// COMPILE: pure transform, storage untouched.
	order, err := domain.CompileOrder(userID, lines, input, time.Now())
	if err != nil {
		return nil, err
	}

	// PERSIST: the order number carries a random suffix, so a collision is
	// freak-rare; regenerate a bounded number of times rather than failing
	// the whole placement on the first one.
	for attempt := 1; ; attempt++ {
		err = s.orderRepo.CreateOrder(ctx, tx, order)
		if err == nil {
			break
		}

		if errors.Is(err, repository.ErrDuplicateOrderNumber) && attempt < orderNumberAttempts {
			order.OrderNumber = domain.NewOrderNumber(time.Now())
			continue
		}

		return nil, err
	}

	// DECREMENT: one conditional write per distinct product, in stable order
	// so concurrent commits cannot deadlock on each other.
	sums := domain.SumQuantitiesByProduct(lines)
	productIDs := make([]int64, 0, len(sums))
	for productID := range sums {
		productIDs = append(productIDs, productID)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	for _, productID := range productIDs {
		if err := s.productRepo.DecrementStock(ctx, tx, productID, sums[productID]); err != nil {
			if errors.Is(err, repository.ErrInsufficientStock) {
				name := productName(lines, productID)

				// Re-read what is actually left so the error does not
				// misstate availability.
				available, readErr := s.productRepo.GetStockCount(ctx, tx, productID)
				if readErr != nil {
					available = 0
				}

				mylogger.Warn(
					ctx,
					s.logger,
					"Stock decrement lost the race",
					zap.Int64("product_id", productID),
					zap.String("product_name", name),
					zap.Int32("available", available),
				)

				return nil, domain.InsufficientStockError(productID, name, sums[productID], available)
			}

			return nil, err
		}
	}

	// CLEAR_CART: lines are deleted in full, and only, on a commit.
	if err := s.cartRepo.ClearTx(ctx, tx, userID); err != nil {
		return nil, err
	}

	if err := s.emitOrderPlaced(ctx, tx, order); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to commit transaction",
			zap.Error(err),
		)

		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return order, nil
}

func (s *checkoutService) emitOrderPlaced(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	items := make([]domain.OrderPlacedItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, domain.OrderPlacedItem{
			ProductID: item.ProductID,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}

	event := domain.OrderPlacedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Total:       order.Total,
		Items:       items,
		PlacedAt:    time.Now().UTC(),
	}

	envelope := map[string]any{
		"event":   "OrderPlaced",
		"payload": event,
	}

	payloadBytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	outboxEvent := &outboxDomain.OutboxEvent{
		AggregateType: "Order",
		AggregateID:   fmt.Sprintf("%d", order.ID),
		EventType:     "OrderPlaced",
		Payload:       payloadBytes,
		Topic:         "order_events",
	}

	if err := s.outboxRepo.SaveOutboxEvent(ctx, tx, outboxEvent); err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to save outbox event",
			zap.Error(err),
		)

		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	return nil
}

func (s *checkoutService) GetOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, domain.NewError(domain.KindNotFound, "order not found")
		}

		return nil, err
	}

	return order, nil
}

func (s *checkoutService) ListOrders(ctx context.Context, userID, limit, offset int64) ([]domain.Order, int64, error) {
	return s.orderRepo.ListByUser(ctx, userID, limit, offset)
}

func productName(lines []domain.CheckoutLine, productID int64) string {
	for _, line := range lines {
		if line.ProductID == productID {
			return line.Name
		}
	}

	return ""
}
