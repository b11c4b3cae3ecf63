package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/brightcart/storefront-backend/pkg/types"
)

// CheckoutSession correlates a provider-hosted payment session with the user
// and cart it was created for, and freezes the per-line unit amounts that were
// quoted to the provider. Read-only after creation; consumed by fulfillment.
type CheckoutSession struct {
	ID                  uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SessionID           string            `gorm:"column:session_id;not null;uniqueIndex:idx_checkout_sessions_session_id"`
	UserID              uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	CartID              uuid.UUID         `gorm:"column:cart_id;type:uuid;not null"`
	AmountSubtotalCents int               `gorm:"column:amount_subtotal_cents;not null"`
	QuotedLines         types.QuotedLines `gorm:"column:quoted_lines;type:jsonb;serializer:json"`
	CreatedAt           time.Time         `gorm:"column:created_at;autoCreateTime"`
}
