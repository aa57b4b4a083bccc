package handler

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/go-storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFromKind(t *testing.T) {
	cases := []struct {
		kind domain.ErrorKind
		want int
	}{
		{domain.KindUnauthorized, fiber.StatusUnauthorized},
		{domain.KindInvalidInput, fiber.StatusBadRequest},
		{domain.KindNotFound, fiber.StatusNotFound},
		{domain.KindOutOfStock, fiber.StatusConflict},
		{domain.KindInsufficientStock, fiber.StatusConflict},
		{domain.KindEmptyCart, fiber.StatusConflict},
		{domain.KindStorage, fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			assert.Equal(t, tc.want, statusFromKind(tc.kind))
		})
	}
}

func respondWith(t *testing.T, err error) (int, map[string]any) {
	t.Helper()

	app := fiber.New()
	app.Get("/t", func(c *fiber.Ctx) error {
		return respondError(c, err)
	})

	resp, reqErr := app.Test(httptest.NewRequest("GET", "/t", nil))
	require.NoError(t, reqErr)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	return resp.StatusCode, body
}

func TestRespondError_StockViolationNamesProduct(t *testing.T) {
	err := domain.InsufficientStockError(10, "Canvas Sneaker", 3, 1)

	status, body := respondWith(t, err)

	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "insufficient_stock", body["code"])
	assert.Equal(t, float64(10), body["product_id"])
	assert.Equal(t, "Canvas Sneaker", body["product_name"])
	assert.Contains(t, body["error"], "requested 3")
}

func TestRespondError_MasksStorageFailures(t *testing.T) {
	status, body := respondWith(t, errors.New("pq: connection refused"))

	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "internal error", body["error"])
	assert.Equal(t, "storage_failure", body["code"])
	assert.NotContains(t, body, "product_id")
}

func TestRespondError_NotFound(t *testing.T) {
	status, body := respondWith(t, domain.NewError(domain.KindNotFound, "product not found"))

	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "product not found", body["error"])
}
