package domain

import "time"

// MaxLineQuantity caps every cart line; merges clamp at this value instead
// of erroring.
const MaxLineQuantity int32 = 99

// CartLine is one (user, product, size) row. Uniqueness over that tuple is
// enforced by the store; adds to an existing tuple merge quantities.
type CartLine struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Size      string    `db:"size" json:"size,omitempty"`
	Quantity  int32     `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CartItem is a cart line joined with live catalog data for display.
// UnitPrice is already variant-resolved.
type CartItem struct {
	LineID     int64     `json:"line_id"`
	ProductID  int64     `json:"product_id"`
	Name       string    `json:"name"`
	ImageUrl   string    `json:"image_url"`
	Size       string    `json:"size,omitempty"`
	Quantity   int32     `json:"quantity"`
	UnitPrice  int64     `json:"unit_price"`
	InStock    bool      `json:"in_stock"`
	StockCount int32     `json:"stock_count"`
	AddedAt    time.Time `json:"added_at"`
}

func (i CartItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

type CartSummary struct {
	ItemCount     int   `json:"item_count"`
	TotalQuantity int32 `json:"total_quantity"`
	TotalPrice    int64 `json:"total_price"`
}

type CartView struct {
	Items   []CartItem  `json:"items"`
	Summary CartSummary `json:"summary"`
	IsEmpty bool        `json:"is_empty"`
}

// Summarize recomputes display aggregates from current state every time.
// Totals may legitimately differ between views if catalog prices changed.
func Summarize(items []CartItem) CartSummary {
	summary := CartSummary{ItemCount: len(items)}

	for _, item := range items {
		summary.TotalQuantity += item.Quantity
		summary.TotalPrice += item.LineTotal()
	}

	return summary
}

func NewCartView(items []CartItem) *CartView {
	return &CartView{
		Items:   items,
		Summary: Summarize(items),
		IsEmpty: len(items) == 0,
	}
}

// ClampQuantity bounds a merged quantity into [1, MaxLineQuantity].
func ClampQuantity(quantity int32) int32 {
	if quantity > MaxLineQuantity {
		return MaxLineQuantity
	}

	if quantity < 1 {
		return 1
	}

	return quantity
}
