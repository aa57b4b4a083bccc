package handler

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/go-storefront/internal/domain"
	"github.com/sakashimaa/go-storefront/internal/service"
	"github.com/sakashimaa/go-storefront/internal/shipping"
	"github.com/sakashimaa/go-storefront/pkg/mylogger"
	"go.uber.org/zap"

	"github.com/sakashimaa/go-storefront/pkg/utils"
)

type OrderHandler struct {
	checkout service.CheckoutService
	rates    shipping.RateSource
	validate *validator.Validate
	logger   *zap.Logger
}

func NewOrderHandler(checkout service.CheckoutService, rates shipping.RateSource, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		checkout: checkout,
		rates:    rates,
		validate: validator.New(),
		logger:   logger,
	}
}

type AddressInput struct {
	Name       string `json:"name" validate:"required,max=128"`
	Line1      string `json:"line1" validate:"required,max=256"`
	Line2      string `json:"line2" validate:"omitempty,max=256"`
	City       string `json:"city" validate:"required,max=128"`
	Region     string `json:"region" validate:"omitempty,max=128"`
	PostalCode string `json:"postal_code" validate:"required,max=32"`
	Country    string `json:"country" validate:"required,max=64"`
	Phone      string `json:"phone" validate:"omitempty,max=32"`
}

func (a AddressInput) toDomain() domain.Address {
	return domain.Address{
		Name:       a.Name,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		Region:     a.Region,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}

type PlaceOrderRequest struct {
	ShippingAddress AddressInput  `json:"shipping_address" validate:"required"`
	BillingAddress  *AddressInput `json:"billing_address" validate:"omitempty"`
	PaymentMethod   string        `json:"payment_method" validate:"omitempty,max=64"`
	CustomerNotes   string        `json:"customer_notes" validate:"omitempty,max=1024"`
	ShippingCost    *int64        `json:"shipping_cost" validate:"omitempty,gte=0"`
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	uid, ok := userID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "userId parsing error"})
	}

	req := new(PlaceOrderRequest)
	if err := c.BodyParser(req); err != nil {
		h.logger.Warn(
			"failed to parse body in place order",
			zap.Error(err),
		)

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"errors": utils.FormatValidationError(err),
		})
	}

	input := &domain.PlaceOrderInput{
		ShippingAddress: req.ShippingAddress.toDomain(),
		PaymentMethod:   req.PaymentMethod,
		CustomerNotes:   req.CustomerNotes,
	}

	if req.BillingAddress != nil {
		billing := req.BillingAddress.toDomain()
		input.BillingAddress = &billing
	}

	if req.ShippingCost != nil {
		input.ShippingCost = *req.ShippingCost
	} else {
		cost, err := h.rates.Quote(c.UserContext(), input.ShippingAddress)
		if err != nil {
			mylogger.Error(
				c.UserContext(),
				h.logger,
				"shipping quote failed",
				zap.Int64("user_id", uid),
				zap.Error(err),
			)

			return respondError(c, err)
		}

		input.ShippingCost = cost
	}

	order, err := h.checkout.PlaceOrder(c.UserContext(), uid, input)
	if err != nil {
		mylogger.Warn(
			c.UserContext(),
			h.logger,
			"place order failed",
			zap.Int64("user_id", uid),
			zap.Error(err),
		)

		return respondError(c, err)
	}

	mylogger.Info(
		c.UserContext(),
		h.logger,
		"✅ Order placed",
		zap.Int64("user_id", uid),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("total", order.Total),
	)

	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *OrderHandler) List(c *fiber.Ctx) error {
	uid, ok := userID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "userId parsing error"})
	}

	limit, err := strconv.ParseInt(c.Query("limit", "20"), 10, 64)
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}

	offset, err := strconv.ParseInt(c.Query("offset", "0"), 10, 64)
	if err != nil || offset < 0 {
		offset = 0
	}

	orders, total, err := h.checkout.ListOrders(c.UserContext(), uid, limit, offset)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"orders": orders,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *OrderHandler) GetByID(c *fiber.Ctx) error {
	uid, ok := userID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "userId parsing error"})
	}

	orderID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Id is invalid",
		})
	}

	order, err := h.checkout.GetOrder(c.UserContext(), uid, orderID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(order)
}
