package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// TaxRatePercent is a policy constant, not per-call configuration.
const TaxRatePercent = 15

type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Order is created exactly once per commit and its lines never change
// afterwards, even if the catalog does.
type Order struct {
	ID              int64       `db:"id" json:"id"`
	OrderNumber     string      `db:"order_number" json:"order_number"`
	UserID          int64       `db:"user_id" json:"user_id"`
	Status          OrderStatus `db:"status" json:"status"`
	Subtotal        int64       `db:"subtotal" json:"subtotal"`
	Tax             int64       `db:"tax" json:"tax"`
	Shipping        int64       `db:"shipping" json:"shipping"`
	Total           int64       `db:"total" json:"total"`
	ShippingAddress Address     `db:"shipping_address" json:"shipping_address"`
	BillingAddress  *Address    `db:"billing_address" json:"billing_address,omitempty"`
	PaymentMethod   string      `db:"payment_method" json:"payment_method,omitempty"`
	CustomerNotes   string      `db:"customer_notes" json:"customer_notes,omitempty"`
	Items           []OrderLine `db:"-" json:"items"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// OrderLine freezes product name/sku/image and unit price at commit time.
type OrderLine struct {
	ID        int64  `db:"id" json:"id"`
	OrderID   int64  `db:"order_id" json:"order_id"`
	ProductID int64  `db:"product_id" json:"product_id"`
	Name      string `db:"name" json:"name"`
	SKU       string `db:"sku" json:"sku"`
	ImageUrl  string `db:"image_url" json:"image_url"`
	Size      string `db:"size" json:"size,omitempty"`
	Price     int64  `db:"price" json:"price"`
	Quantity  int32  `db:"quantity" json:"quantity"`
	Subtotal  int64  `db:"subtotal" json:"subtotal"`
}

// CheckoutLine is a cart line joined with the product row as read inside
// the commit transaction. The coordinator validates and compiles from these
// and nothing else.
type CheckoutLine struct {
	LineID       int64
	ProductID    int64
	Name         string
	SKU          string
	ImageUrl     string
	Size         string
	Quantity     int32
	BasePrice    int64
	VariantPrice *int64
	InStock      bool
	StockCount   int32
}

// UnitPrice resolves the effective price the same way Product.PriceFor does.
func (l CheckoutLine) UnitPrice() int64 {
	if l.VariantPrice != nil {
		return *l.VariantPrice
	}

	return l.BasePrice
}

func (l CheckoutLine) CheckAvailability() error {
	return CheckAvailability(l.ProductID, l.Name, l.InStock, l.StockCount, l.Quantity)
}

// Tax applies the fixed rate with half-up rounding on cents.
func Tax(subtotal int64) int64 {
	return (subtotal*TaxRatePercent + 50) / 100
}

// NewOrderNumber builds a globally-unique order number from a time component
// and a random suffix. Uniqueness is ultimately enforced by the store; the
// coordinator regenerates on a collision.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102150405"), suffix)
}

// PlaceOrderInput is the validated order-placement payload. ShippingCost has
// already been resolved (request-supplied or quoted) by the time it gets here.
type PlaceOrderInput struct {
	ShippingAddress Address
	BillingAddress  *Address
	PaymentMethod   string
	CustomerNotes   string
	ShippingCost    int64
}

// CompileOrder is a pure transform from validated checkout lines to an
// order-shaped value with frozen snapshots. It touches no storage.
func CompileOrder(userID int64, lines []CheckoutLine, input *PlaceOrderInput, now time.Time) (*Order, error) {
	if len(lines) == 0 {
		return nil, NewError(KindEmptyCart, "cart is empty")
	}

	order := &Order{
		OrderNumber:     NewOrderNumber(now),
		UserID:          userID,
		Status:          OrderStatusPending,
		Shipping:        input.ShippingCost,
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  input.BillingAddress,
		PaymentMethod:   input.PaymentMethod,
		CustomerNotes:   input.CustomerNotes,
		Items:           make([]OrderLine, 0, len(lines)),
	}

	for _, line := range lines {
		price := line.UnitPrice()
		lineSubtotal := price * int64(line.Quantity)

		order.Items = append(order.Items, OrderLine{
			ProductID: line.ProductID,
			Name:      line.Name,
			SKU:       line.SKU,
			ImageUrl:  line.ImageUrl,
			Size:      line.Size,
			Price:     price,
			Quantity:  line.Quantity,
			Subtotal:  lineSubtotal,
		})

		order.Subtotal += lineSubtotal
	}

	order.Tax = Tax(order.Subtotal)
	order.Total = order.Subtotal + order.Tax + order.Shipping

	return order, nil
}

// SumQuantitiesByProduct folds all lines referencing the same product into
// one decrement amount, so two variants of one product never race each other
// inside a single commit.
func SumQuantitiesByProduct(lines []CheckoutLine) map[int64]int32 {
	sums := make(map[int64]int32, len(lines))
	for _, line := range lines {
		sums[line.ProductID] += line.Quantity
	}

	return sums
}
