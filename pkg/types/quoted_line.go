package types

import "github.com/google/uuid"

// QuotedLine freezes the unit amount quoted to the payment provider for a
// single cart line at checkout-session creation time.
type QuotedLine struct {
	ProductID       uuid.UUID `json:"product_id"`
	Name            string    `json:"name"`
	UnitAmountCents int       `json:"unit_amount_cents"`
	Quantity        int       `json:"quantity"`
}

// QuotedLines is stored as a jsonb snapshot on the checkout session.
type QuotedLines []QuotedLine

// ByProduct indexes the snapshot by product id for fulfillment lookups.
func (q QuotedLines) ByProduct() map[uuid.UUID]QuotedLine {
	out := make(map[uuid.UUID]QuotedLine, len(q))
	for _, line := range q {
		out[line.ProductID] = line
	}
	return out
}
