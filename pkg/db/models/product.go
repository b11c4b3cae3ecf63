package models

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a catalog listing. Pricing is stored in integer cents;
// the sale window fields are open-ended when null.
type Product struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string     `gorm:"column:name;not null"`
	Description    *string    `gorm:"column:description"`
	PriceCents     int        `gorm:"column:price_cents;not null"`
	SalePriceCents *int       `gorm:"column:sale_price_cents"`
	SaleStartsAt   *time.Time `gorm:"column:sale_starts_at"`
	SaleEndsAt     *time.Time `gorm:"column:sale_ends_at"`
	StockQuantity  int        `gorm:"column:stock_quantity;not null;default:0"`
	AllowBackorder bool       `gorm:"column:allow_backorder;not null;default:false"`
	IsActive       bool       `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
