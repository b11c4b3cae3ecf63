package cart

import (
	"github.com/google/uuid"

	product "github.com/brightcart/storefront-backend/internal/products"
)

// LineDTO is one cart line with live pricing applied.
type LineDTO struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	UnitPrice      string    `json:"unit_price"`
	UnitPriceCents int       `json:"unit_price_cents"`
	OriginalPrice  *string   `json:"original_price,omitempty"`
	OnSale         bool      `json:"on_sale"`
	LineTotal      string    `json:"line_total"`
	LineTotalCents int       `json:"line_total_cents"`
}

// CartDTO is the cart payload returned to clients. Prices are resolved live
// at read time, never from the cart rows.
type CartDTO struct {
	CartID        uuid.UUID `json:"cart_id"`
	Lines         []LineDTO `json:"lines"`
	Subtotal      string    `json:"subtotal"`
	SubtotalCents int       `json:"subtotal_cents"`
}

func formatCents(cents int) string {
	return product.FormatCents(cents)
}
