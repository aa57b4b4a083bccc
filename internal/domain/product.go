package domain

import "time"

// Product is the catalog entity. The storefront core only mutates
// stock_count/in_stock; everything else is read-only catalog data.
// Monetary values are integer cents.
type Product struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	SKU         string    `db:"sku" json:"sku"`
	Description string    `db:"description" json:"description"`
	Price       int64     `db:"price" json:"price"`
	StockCount  int32     `db:"stock_count" json:"stock_count"`
	InStock     bool      `db:"in_stock" json:"in_stock"`
	ImageUrl    string    `db:"image_url" json:"image_url"`
	Category    string    `db:"category" json:"category"`
	Variants    []Variant `db:"-" json:"variants,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Variant is a per-size price override for a product.
type Variant struct {
	ID        int64  `db:"id" json:"id"`
	ProductID int64  `db:"product_id" json:"product_id"`
	Size      string `db:"size" json:"size"`
	Price     int64  `db:"price" json:"price"`
}

// PriceFor resolves the effective unit price for a size: the variant
// override if one exists, the base price otherwise.
func (p *Product) PriceFor(size string) int64 {
	if size != "" {
		for _, v := range p.Variants {
			if v.Size == size {
				return v.Price
			}
		}
	}

	return p.Price
}

// CheckAvailability validates a requested quantity against the product row
// as currently read. It never mutates anything; the commit transaction
// re-checks and the conditional decrement is the final arbiter.
func (p *Product) CheckAvailability(requested int32) error {
	return CheckAvailability(p.ID, p.Name, p.InStock, p.StockCount, requested)
}

func CheckAvailability(productID int64, name string, inStock bool, stockCount, requested int32) error {
	if !inStock {
		return OutOfStockError(productID, name)
	}

	if stockCount < requested {
		return InsufficientStockError(productID, name, requested, stockCount)
	}

	return nil
}
