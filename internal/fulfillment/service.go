package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brightcart/storefront-backend/internal/cart"
	"github.com/brightcart/storefront-backend/internal/checkout"
	"github.com/brightcart/storefront-backend/internal/orders"
	product "github.com/brightcart/storefront-backend/internal/products"
	"github.com/brightcart/storefront-backend/pkg/db"
	"github.com/brightcart/storefront-backend/pkg/db/models"
	"github.com/brightcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/brightcart/storefront-backend/pkg/errors"
	"github.com/brightcart/storefront-backend/pkg/logger"
	"github.com/brightcart/storefront-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CompletedSession carries the verified fields of a payment-completed event.
type CompletedSession struct {
	SessionID        string
	UserID           uuid.UUID
	CartID           uuid.UUID
	AmountTotalCents int
}

// Service converts a completed payment session into exactly one order.
type Service interface {
	HandleSessionCompleted(ctx context.Context, event CompletedSession) error
}

type service struct {
	tx       txRunner
	carts    cart.Repository
	products *product.Repository
	sessions checkout.SessionRepository
	orders   orders.Repository
	logg     *logger.Logger
	metrics  *metrics.CheckoutMetrics
	now      func() time.Time
}

// NewService builds a fulfillment service backed by the provided stack.
func NewService(
	tx txRunner,
	carts cart.Repository,
	products *product.Repository,
	sessions checkout.SessionRepository,
	ordersRepo orders.Repository,
	logg *logger.Logger,
	m *metrics.CheckoutMetrics,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{
		tx:       tx,
		carts:    carts,
		products: products,
		sessions: sessions,
		orders:   ordersRepo,
		logg:     logg,
		metrics:  m,
		now:      time.Now,
	}, nil
}

// HandleSessionCompleted creates the order, copies the quoted prices into
// order items, decrements stock and clears the cart, all in one transaction.
// A duplicate delivery finds either an existing order for the session or an
// already-emptied cart and commits a no-op. The whole transaction is retried
// once on a write conflict before the failure is surfaced for redelivery.
func (s *service) HandleSessionCompleted(ctx context.Context, event CompletedSession) error {
	if event.SessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if event.UserID == uuid.Nil || event.CartID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event metadata is missing user or cart id")
	}

	ctx = s.withEventFields(ctx, event)
	start := s.now()

	err := s.fulfill(ctx, event)
	if err != nil && retryableConflict(err) {
		s.warn(ctx, "fulfillment hit a write conflict, retrying once")
		err = s.fulfill(ctx, event)
	}
	if err != nil {
		s.metrics.IncOrderFulfilled("error")
		if typed := pkgerrors.As(err); typed != nil {
			return typed
		}
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "fulfill session")
	}

	s.metrics.ObserveFulfillment("checkout.session.completed", s.now().Sub(start))
	return nil
}

func (s *service) fulfill(ctx context.Context, event CompletedSession) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		cartsRepo := s.carts.WithTx(tx)
		productsRepo := s.products.WithTx(tx)

		exists, err := ordersRepo.ExistsByProviderSessionID(ctx, event.SessionID)
		if err != nil {
			return fmt.Errorf("check existing order: %w", err)
		}
		if exists {
			s.info(ctx, "session already fulfilled, acknowledging duplicate delivery")
			s.metrics.IncOrderFulfilled("duplicate")
			return nil
		}

		items, err := cartsRepo.FindItems(ctx, event.CartID)
		if err != nil {
			return fmt.Errorf("load cart items: %w", err)
		}
		if len(items) == 0 {
			s.info(ctx, "cart already empty, acknowledging duplicate delivery")
			s.metrics.IncOrderFulfilled("duplicate")
			return nil
		}

		ids := make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ProductID)
		}
		rows, err := productsRepo.FindByIDsForUpdate(ctx, ids)
		if err != nil {
			return fmt.Errorf("lock products: %w", err)
		}
		byID := make(map[uuid.UUID]*models.Product, len(rows))
		for i := range rows {
			byID[rows[i].ID] = &rows[i]
		}

		quoted := s.loadQuotedLines(ctx, event.SessionID)

		order := &models.Order{
			ID:                uuid.New(),
			UserID:            event.UserID,
			Status:            enums.OrderStatusPaid,
			ProviderSessionID: &event.SessionID,
		}
		computedTotal := 0
		for _, item := range items {
			prod, ok := byID[item.ProductID]
			if !ok {
				return fmt.Errorf("cart references missing product %s", item.ProductID)
			}

			unitPrice, frozen := quoted[item.ProductID]
			if !frozen {
				unitPrice = prod.PriceCents
				s.warn(ctx, fmt.Sprintf("no quoted price for product %s, falling back to base price", prod.ID))
			}

			lineTotal := unitPrice * item.Quantity
			computedTotal += lineTotal
			order.Items = append(order.Items, models.OrderItem{
				ID:             uuid.New(),
				ProductID:      prod.ID,
				Name:           prod.Name,
				Quantity:       item.Quantity,
				UnitPriceCents: unitPrice,
				LineTotalCents: lineTotal,
			})
		}

		order.TotalCents = event.AmountTotalCents
		if order.TotalCents <= 0 {
			order.TotalCents = computedTotal
		}

		if err := ordersRepo.Create(ctx, order); err != nil {
			if db.IsUniqueViolation(err) {
				return conflictError{cause: err}
			}
			return fmt.Errorf("insert order: %w", err)
		}

		for _, item := range items {
			prod := byID[item.ProductID]
			clamped, err := productsRepo.DecrementStock(ctx, prod.ID, item.Quantity, prod.AllowBackorder)
			if err != nil {
				return fmt.Errorf("decrement stock for %s: %w", prod.ID, err)
			}
			if clamped {
				s.warn(ctx, fmt.Sprintf(
					"stock for product %s clamped at zero (requested %d, had %d), checkout/fulfillment race",
					prod.ID, item.Quantity, prod.StockQuantity,
				))
			}
		}

		if err := cartsRepo.DeleteItems(ctx, event.CartID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		s.info(ctx, fmt.Sprintf("order %s created for session", order.ID))
		s.metrics.IncOrderFulfilled("success")
		return nil
	})
}

// loadQuotedLines returns the unit amounts frozen at session creation, keyed
// by product id. A missing snapshot is tolerated; callers fall back to the
// product's base price.
func (s *service) loadQuotedLines(ctx context.Context, sessionID string) map[uuid.UUID]int {
	snapshot, err := s.sessions.FindBySessionID(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.warn(ctx, fmt.Sprintf("loading checkout session snapshot failed: %v", err))
		} else {
			s.warn(ctx, "no checkout session snapshot for session, using base prices")
		}
		return map[uuid.UUID]int{}
	}
	out := make(map[uuid.UUID]int, len(snapshot.QuotedLines))
	for id, line := range snapshot.QuotedLines.ByProduct() {
		out[id] = line.UnitAmountCents
	}
	return out
}

type conflictError struct {
	cause error
}

func (e conflictError) Error() string {
	return fmt.Sprintf("duplicate order for session: %v", e.cause)
}

func (e conflictError) Unwrap() error {
	return e.cause
}

func retryableConflict(err error) bool {
	var conflict conflictError
	return errors.As(err, &conflict)
}

func (s *service) withEventFields(ctx context.Context, event CompletedSession) context.Context {
	if s.logg == nil {
		return ctx
	}
	ctx = s.logg.WithProviderSessionID(ctx, event.SessionID)
	ctx = s.logg.WithUserID(ctx, event.UserID.String())
	return s.logg.WithCartID(ctx, event.CartID.String())
}

func (s *service) info(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}

func (s *service) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}
