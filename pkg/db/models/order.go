package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/brightcart/storefront-backend/pkg/enums"
)

// Order is the immutable record produced by fulfillment. Only Status may
// change after creation. ProviderSessionID carries a unique index so a
// duplicate webhook delivery surfaces as a detectable conflict instead of a
// second order.
type Order struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status            enums.OrderStatus `gorm:"column:status;not null;default:'pending'"`
	TotalCents        int               `gorm:"column:total_cents;not null"`
	ProviderSessionID *string           `gorm:"column:provider_session_id;uniqueIndex:idx_orders_provider_session_id"`
	Items             []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
