package handler

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/go-storefront/internal/service"
	"github.com/sakashimaa/go-storefront/pkg/mylogger"
	"github.com/sakashimaa/go-storefront/pkg/utils"
	"go.uber.org/zap"
)

type CartHandler struct {
	carts    service.CartService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewCartHandler(carts service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:    carts,
		validate: validator.New(),
		logger:   logger,
	}
}

type AddItemInput struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Quantity  int32  `json:"quantity" validate:"omitempty,gte=1,lte=99"`
	Size      string `json:"size" validate:"omitempty,max=32"`
}

type UpdateItemInput struct {
	Quantity int32 `json:"quantity" validate:"gte=0,lte=99"`
}

func userID(c *fiber.Ctx) (int64, bool) {
	id, ok := c.Locals("userId").(int64)
	return id, ok && id != 0
}

func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	uid, ok := userID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "userId parsing error"})
	}

	view, err := h.carts.GetCart(c.UserContext(), uid)
	if err != nil {
		mylogger.Warn(
			c.UserContext(),
			h.logger,
			"get cart failed",
			zap.Int64("user_id", uid),
			zap.Error(err),
		)

		return respondError(c, err)
	}

	return c.JSON(view)
}

func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	uid, ok := userID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "userId parsing error"})
	}

	input := new(AddItemInput)
	if err := c.BodyParser(input); err != nil {
		h.logger.Warn(
			"failed to parse body in add item",
			zap.Error(err),
		)

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	if input.Quantity == 0 {
		input.Quantity = 1
	}

	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"errors": utils.FormatValidationError(err),
		})
	}

	view, err := h.carts.AddItem(c.UserContext(), uid, input.ProductID, input.Quantity, input.Size)
	if err != nil {
		mylogger.Warn(
			c.UserContext(),
			h.logger,
			"add item failed",
			zap.Int64("user_id", uid),
			zap.Int64("product_id", input.ProductID),
			zap.Error(err),
		)

		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(view)
}

func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	uid, ok := userID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "userId parsing error"})
	}

	lineID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Id is invalid",
		})
	}

	input := new(UpdateItemInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"errors": utils.FormatValidationError(err),
		})
	}

	view, err := h.carts.SetQuantity(c.UserContext(), uid, lineID, input.Quantity)
	if err != nil {
		mylogger.Warn(
			c.UserContext(),
			h.logger,
			"update item failed",
			zap.Int64("user_id", uid),
			zap.Int64("line_id", lineID),
			zap.Error(err),
		)

		return respondError(c, err)
	}

	return c.JSON(view)
}

func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	uid, ok := userID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "userId parsing error"})
	}

	lineID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Id is invalid",
		})
	}

	view, err := h.carts.RemoveItem(c.UserContext(), uid, lineID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(view)
}

func (h *CartHandler) ClearCart(c *fiber.Ctx) error {
	uid, ok := userID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "userId parsing error"})
	}

	view, err := h.carts.Clear(c.UserContext(), uid)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(view)
}

func (h *CartHandler) Summary(c *fiber.Ctx) error {
	uid, ok := userID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "userId parsing error"})
	}

	summary, err := h.carts.Summary(c.UserContext(), uid)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(summary)
}
