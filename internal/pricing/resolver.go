package pricing

import (
	"time"

	"github.com/google/uuid"

	"github.com/brightcart/storefront-backend/pkg/db/models"
)

// Quote is the effective price of one product at a point in time.
// OriginalPriceCents is set only while a sale is active, so callers can
// render the crossed-out base price.
type Quote struct {
	ProductID          uuid.UUID
	ActivePriceCents   int
	OriginalPriceCents *int
	OnSale             bool
}

// Resolve computes the effective price for a single product at the given
// instant. A sale applies when a sale price is set and the instant falls
// inside the window; open-ended bounds are treated as always satisfied.
// Pure function, safe from any goroutine.
func Resolve(product *models.Product, now time.Time) Quote {
	quote := Quote{
		ProductID:        product.ID,
		ActivePriceCents: product.PriceCents,
	}
	if !saleActive(product, now) {
		return quote
	}

	original := product.PriceCents
	quote.ActivePriceCents = *product.SalePriceCents
	quote.OriginalPriceCents = &original
	quote.OnSale = true
	return quote
}

// ResolveAll resolves prices for a batch of products in one pass. The result
// is keyed by product id; a missing key means the product was not in the
// input and callers treat it as not found.
func ResolveAll(products []models.Product, now time.Time) map[uuid.UUID]Quote {
	quotes := make(map[uuid.UUID]Quote, len(products))
	for i := range products {
		quotes[products[i].ID] = Resolve(&products[i], now)
	}
	return quotes
}

func saleActive(product *models.Product, now time.Time) bool {
	if product.SalePriceCents == nil {
		return false
	}
	if product.SaleStartsAt != nil && product.SaleStartsAt.After(now) {
		return false
	}
	if product.SaleEndsAt != nil && product.SaleEndsAt.Before(now) {
		return false
	}
	return true
}
