package service

import (
	"context"
	"errors"

	"github.com/sakashimaa/go-storefront/internal/domain"
	"github.com/sakashimaa/go-storefront/internal/repository"
	"github.com/sakashimaa/go-storefront/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CartService interface {
	GetCart(ctx context.Context, userID int64) (*domain.CartView, error)
	AddItem(ctx context.Context, userID, productID int64, quantity int32, size string) (*domain.CartView, error)
	SetQuantity(ctx context.Context, userID, lineID int64, quantity int32) (*domain.CartView, error)
	RemoveItem(ctx context.Context, userID, lineID int64) (*domain.CartView, error)
	Clear(ctx context.Context, userID int64) (*domain.CartView, error)
	Summary(ctx context.Context, userID int64) (domain.CartSummary, error)
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewCartService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	logger *zap.Logger,
) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		logger:      logger,
		tracer:      otel.Tracer("cart_service"),
	}
}

func (s *cartService) GetCart(ctx context.Context, userID int64) (*domain.CartView, error) {
	items, err := s.cartRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return domain.NewCartView(items), nil
}

// AddItem validates against the quantity the line would hold after the
// merge, then upserts. Nothing is written when validation fails.
func (s *cartService) AddItem(ctx context.Context, userID, productID int64, quantity int32, size string) (*domain.CartView, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.AddItem")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("product_id", productID),
		attribute.Int("quantity", int(quantity)),
	)

	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, domain.NewError(domain.KindNotFound, "product not found")
		}

		return nil, err
	}

	existing, err := s.cartRepo.GetQuantity(ctx, userID, productID, size)
	if err != nil {
		return nil, err
	}

	merged := domain.ClampQuantity(existing + quantity)
	if err := product.CheckAvailability(merged); err != nil {
		mylogger.Warn(
			ctx,
			s.logger,
			"Add to cart rejected by stock check",
			zap.Int64("product_id", productID),
			zap.Int32("requested", merged),
			zap.Int32("available", product.StockCount),
		)

		return nil, err
	}

	if _, err := s.cartRepo.UpsertLine(ctx, userID, productID, size, quantity); err != nil {
		return nil, err
	}

	return s.GetCart(ctx, userID)
}

// SetQuantity replaces a line's absolute quantity; zero removes the line.
func (s *cartService) SetQuantity(ctx context.Context, userID, lineID int64, quantity int32) (*domain.CartView, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.SetQuantity")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("line_id", lineID),
		attribute.Int("quantity", int(quantity)),
	)

	if quantity == 0 {
		return s.RemoveItem(ctx, userID, lineID)
	}

	line, err := s.cartRepo.GetLine(ctx, userID, lineID)
	if err != nil {
		if errors.Is(err, repository.ErrCartLineNotFound) {
			return nil, domain.NewError(domain.KindNotFound, "cart line not found")
		}

		return nil, err
	}

	product, err := s.productRepo.GetByID(ctx, line.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, domain.NewError(domain.KindNotFound, "product not found")
		}

		return nil, err
	}

	if err := product.CheckAvailability(quantity); err != nil {
		return nil, err
	}

	if err := s.cartRepo.UpdateQuantity(ctx, userID, lineID, quantity); err != nil {
		if errors.Is(err, repository.ErrCartLineNotFound) {
			return nil, domain.NewError(domain.KindNotFound, "cart line not found")
		}

		return nil, err
	}

	return s.GetCart(ctx, userID)
}

func (s *cartService) RemoveItem(ctx context.Context, userID, lineID int64) (*domain.CartView, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.RemoveItem")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("line_id", lineID),
	)

	if err := s.cartRepo.DeleteLine(ctx, userID, lineID); err != nil {
		return nil, err
	}

	return s.GetCart(ctx, userID)
}

func (s *cartService) Clear(ctx context.Context, userID int64) (*domain.CartView, error) {
	ctx, span := s.tracer.Start(ctx, "CartService.Clear")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
	)

	if err := s.cartRepo.Clear(ctx, userID); err != nil {
		return nil, err
	}

	return s.GetCart(ctx, userID)
}

func (s *cartService) Summary(ctx context.Context, userID int64) (domain.CartSummary, error) {
	items, err := s.cartRepo.ListByUser(ctx, userID)
	if err != nil {
		return domain.CartSummary{}, err
	}

	return domain.Summarize(items), nil
}
