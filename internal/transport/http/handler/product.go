package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/go-storefront/internal/service"
	"go.uber.org/zap"
)

type ProductHandler struct {
	catalog service.CatalogService
	logger  *zap.Logger
}

func NewProductHandler(catalog service.CatalogService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		logger:  logger,
	}
}

func (h *ProductHandler) FindByID(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Id is invalid",
		})
	}

	product, err := h.catalog.FindByID(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(product)
}
