package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brightcart/storefront-backend/internal/cart"
	"github.com/brightcart/storefront-backend/internal/pricing"
	product "github.com/brightcart/storefront-backend/internal/products"
	"github.com/brightcart/storefront-backend/pkg/db/models"
	pkgerrors "github.com/brightcart/storefront-backend/pkg/errors"
	"github.com/brightcart/storefront-backend/pkg/payments"
	"github.com/brightcart/storefront-backend/pkg/types"
)

// MetadataUserID and MetadataCartID are the metadata keys the provider echoes
// back on its completion webhook.
const (
	MetadataUserID = "user_id"
	MetadataCartID = "cart_id"
)

type paymentProvider interface {
	CreateCheckoutSession(ctx context.Context, req payments.SessionRequest) (*payments.Session, error)
}

// SessionDTO is returned to the caller so the client can redirect to the
// provider's hosted payment page.
type SessionDTO struct {
	SessionID      string `json:"session_id"`
	RedirectURL    string `json:"redirect_url"`
	AmountSubtotal string `json:"amount_subtotal"`
	SubtotalCents  int    `json:"subtotal_cents"`
}

// Service turns a cart into a hosted payment session. It never mutates the
// cart or stock; a failed or abandoned session leaves everything untouched.
type Service interface {
	Start(ctx context.Context, userID uuid.UUID) (*SessionDTO, error)
}

type service struct {
	carts    cart.Repository
	products *product.Repository
	sessions SessionRepository
	provider paymentProvider
	now      func() time.Time
}

// NewService builds a checkout service backed by the provided stack.
func NewService(carts cart.Repository, products *product.Repository, sessions SessionRepository, provider paymentProvider) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session repository required")
	}
	if provider == nil {
		return nil, fmt.Errorf("payment provider required")
	}
	return &service{
		carts:    carts,
		products: products,
		sessions: sessions,
		provider: provider,
		now:      time.Now,
	}, nil
}

// Start validates the cart, quotes every line at its live price, creates the
// provider session and freezes the quoted unit amounts alongside it.
func (s *service) Start(ctx context.Context, userID uuid.UUID) (*SessionDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	cartRow, err := s.carts.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	items, err := s.carts.FindItems(ctx, cartRow.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	rows, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	byID := make(map[uuid.UUID]*models.Product, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}

	quotes := pricing.ResolveAll(rows, s.now())

	quotedLines := make(types.QuotedLines, 0, len(items))
	providerLines := make([]payments.SessionLine, 0, len(items))
	subtotal := 0
	for _, item := range items {
		prod, ok := byID[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "a cart product is no longer available")
		}
		if !prod.AllowBackorder && item.Quantity > prod.StockQuantity {
			msg := fmt.Sprintf("insufficient stock for %q: only %d left", prod.Name, prod.StockQuantity)
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, msg).WithDetails(map[string]any{
				"product_id":     prod.ID,
				"stock_quantity": prod.StockQuantity,
				"requested":      item.Quantity,
			})
		}

		quote := quotes[prod.ID]
		subtotal += quote.ActivePriceCents * item.Quantity
		quotedLines = append(quotedLines, types.QuotedLine{
			ProductID:       prod.ID,
			Name:            prod.Name,
			UnitAmountCents: quote.ActivePriceCents,
			Quantity:        item.Quantity,
		})
		providerLines = append(providerLines, payments.SessionLine{
			Name:            prod.Name,
			UnitAmountCents: quote.ActivePriceCents,
			Quantity:        item.Quantity,
		})
	}

	created, err := s.provider.CreateCheckoutSession(ctx, payments.SessionRequest{
		Lines: providerLines,
		Metadata: map[string]string{
			MetadataUserID: userID.String(),
			MetadataCartID: cartRow.ID.String(),
		},
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create provider session")
	}

	snapshot := &models.CheckoutSession{
		ID:                  uuid.New(),
		SessionID:           created.SessionID,
		UserID:              userID,
		CartID:              cartRow.ID,
		AmountSubtotalCents: subtotal,
		QuotedLines:         quotedLines,
	}
	if err := s.sessions.Create(ctx, snapshot); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist checkout session")
	}

	return &SessionDTO{
		SessionID:      created.SessionID,
		RedirectURL:    created.RedirectURL,
		AmountSubtotal: product.FormatCents(subtotal),
		SubtotalCents:  subtotal,
	}, nil
}
