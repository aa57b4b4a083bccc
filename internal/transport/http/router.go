package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/go-storefront/internal/transport/http/handler"
	"github.com/sakashimaa/go-storefront/internal/transport/http/middleware"
)

type Handlers struct {
	Cart    *handler.CartHandler
	Order   *handler.OrderHandler
	Product *handler.ProductHandler
}

func RegisterRoutes(app *fiber.App, h *Handlers) {
	api := app.Group("/api", middleware.NewAuthMiddleware())

	cart := api.Group("/cart")
	cart.Get("", h.Cart.GetCart)
	cart.Get("/summary", h.Cart.Summary)
	cart.Post("/items", h.Cart.AddItem)
	cart.Put("/items/:id", h.Cart.UpdateItem)
	cart.Delete("/items/:id", h.Cart.RemoveItem)
	cart.Delete("", h.Cart.ClearCart)

	order := api.Group("/orders")
	order.Post("", h.Order.Create)
	order.Get("", h.Order.List)
	order.Get("/:id", h.Order.GetByID)

	product := api.Group("/products")
	product.Get("/:id", h.Product.FindByID)
}
