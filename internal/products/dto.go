package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brightcart/storefront-backend/internal/pricing"
	"github.com/brightcart/storefront-backend/pkg/db/models"
)

// ProductDTO represents the catalog payload returned to clients. Prices are
// formatted as decimal strings in major units alongside the raw cent values.
type ProductDTO struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Description    *string   `json:"description,omitempty"`
	Price          string    `json:"price"`
	PriceCents     int       `json:"price_cents"`
	OriginalPrice  *string   `json:"original_price,omitempty"`
	OnSale         bool      `json:"on_sale"`
	StockQuantity  int       `json:"stock_quantity"`
	AllowBackorder bool      `json:"allow_backorder"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ProductPage is one page of catalog results plus the cursor for the next.
type ProductPage struct {
	Products   []ProductDTO `json:"products"`
	NextCursor *string      `json:"next_cursor,omitempty"`
}

// FormatCents renders integer cents as a major-unit decimal string.
func FormatCents(cents int) string {
	return decimal.NewFromInt(int64(cents)).Div(decimal.NewFromInt(100)).StringFixed(2)
}

func toDTO(p *models.Product, quote pricing.Quote) ProductDTO {
	dto := ProductDTO{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Price:          FormatCents(quote.ActivePriceCents),
		PriceCents:     quote.ActivePriceCents,
		OnSale:         quote.OnSale,
		StockQuantity:  p.StockQuantity,
		AllowBackorder: p.AllowBackorder,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if quote.OriginalPriceCents != nil {
		original := FormatCents(*quote.OriginalPriceCents)
		dto.OriginalPrice = &original
	}
	return dto
}
