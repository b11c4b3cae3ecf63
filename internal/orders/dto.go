package orders

import (
	"time"

	"github.com/google/uuid"

	product "github.com/brightcart/storefront-backend/internal/products"
	"github.com/brightcart/storefront-backend/pkg/db/models"
)

// OrderItemDTO is one purchased line as it was priced at purchase time.
type OrderItemDTO struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	UnitPrice      string    `json:"unit_price"`
	UnitPriceCents int       `json:"unit_price_cents"`
	LineTotal      string    `json:"line_total"`
	LineTotalCents int       `json:"line_total_cents"`
}

// OrderDTO is the order payload returned to clients.
type OrderDTO struct {
	ID         uuid.UUID      `json:"id"`
	Status     string         `json:"status"`
	Total      string         `json:"total"`
	TotalCents int            `json:"total_cents"`
	Items      []OrderItemDTO `json:"items"`
	CreatedAt  time.Time      `json:"created_at"`
}

// OrderPage is one page of orders plus the cursor for the next.
type OrderPage struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor *string    `json:"next_cursor,omitempty"`
}

func toOrderDTO(o *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:         o.ID,
		Status:     o.Status.String(),
		Total:      product.FormatCents(o.TotalCents),
		TotalCents: o.TotalCents,
		Items:      make([]OrderItemDTO, 0, len(o.Items)),
		CreatedAt:  o.CreatedAt,
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPrice:      product.FormatCents(item.UnitPriceCents),
			UnitPriceCents: item.UnitPriceCents,
			LineTotal:      product.FormatCents(item.LineTotalCents),
			LineTotalCents: item.LineTotalCents,
		})
	}
	return dto
}
