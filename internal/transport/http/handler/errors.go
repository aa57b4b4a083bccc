package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/go-storefront/internal/domain"
)

func statusFromKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindUnauthorized:
		return fiber.StatusUnauthorized
	case domain.KindInvalidInput:
		return fiber.StatusBadRequest
	case domain.KindNotFound:
		return fiber.StatusNotFound
	case domain.KindOutOfStock, domain.KindInsufficientStock, domain.KindEmptyCart:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError maps a failure onto a status code by its kind, never by
// message text, and names the offending product when there is one.
func respondError(c *fiber.Ctx, err error) error {
	kind := domain.KindOf(err)

	body := fiber.Map{
		"error": err.Error(),
		"code":  string(kind),
	}

	if kind == domain.KindStorage {
		body["error"] = "internal error"
	}

	var de *domain.Error
	if errors.As(err, &de) && de.ProductID != 0 {
		body["product_id"] = de.ProductID
		body["product_name"] = de.ProductName
	}

	return c.Status(statusFromKind(kind)).JSON(body)
}
