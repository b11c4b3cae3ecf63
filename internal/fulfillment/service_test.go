package fulfillment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/brightcart/storefront-backend/internal/cart"
	"github.com/brightcart/storefront-backend/internal/checkout"
	"github.com/brightcart/storefront-backend/internal/orders"
	product "github.com/brightcart/storefront-backend/internal/products"
	"github.com/brightcart/storefront-backend/pkg/db/models"
	"github.com/brightcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/brightcart/storefront-backend/pkg/errors"
	"github.com/brightcart/storefront-backend/pkg/types"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func setupFulfillmentTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:fulfillment_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{`
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  price_cents INTEGER NOT NULL,
  sale_price_cents INTEGER,
  sale_starts_at DATETIME,
  sale_ends_at DATETIME,
  stock_quantity INTEGER NOT NULL DEFAULT 0,
  allow_backorder INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (cart_id, product_id)
);`, `
CREATE TABLE IF NOT EXISTS checkout_sessions (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL UNIQUE,
  user_id TEXT NOT NULL,
  cart_id TEXT NOT NULL,
  amount_subtotal_cents INTEGER NOT NULL,
  quoted_lines TEXT,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  total_cents INTEGER NOT NULL,
  provider_session_id TEXT UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  line_total_cents INTEGER NOT NULL,
  created_at DATETIME
);`}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type fixture struct {
	db      *gorm.DB
	svc     Service
	userID  uuid.UUID
	cartID  uuid.UUID
	product *models.Product
}

func newFulfillmentService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(
		gormTxRunner{db: db},
		cart.NewRepository(db),
		product.NewRepository(db),
		checkout.NewSessionRepository(db),
		orders.NewRepository(db),
		nil,
		nil,
	)
	require.NoError(t, err)
	return svc
}

// seedPaidCart creates a product, a cart holding qty units of it and a
// checkout session snapshot frozen at quotedUnitCents.
func seedPaidCart(t *testing.T, db *gorm.DB, sessionID string, priceCents, quotedUnitCents, stock, qty int) fixture {
	t.Helper()

	prod := &models.Product{
		ID:            uuid.New(),
		Name:          "Fulfilled Product " + uuid.NewString()[:8],
		PriceCents:    priceCents,
		StockQuantity: stock,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, db.Create(prod).Error)

	userID := uuid.New()
	cartRow := &models.Cart{ID: uuid.New(), UserID: userID}
	require.NoError(t, db.Create(cartRow).Error)
	require.NoError(t, db.Create(&models.CartItem{
		ID:        uuid.New(),
		CartID:    cartRow.ID,
		ProductID: prod.ID,
		Quantity:  qty,
	}).Error)

	require.NoError(t, db.Create(&models.CheckoutSession{
		ID:                  uuid.New(),
		SessionID:           sessionID,
		UserID:              userID,
		CartID:              cartRow.ID,
		AmountSubtotalCents: quotedUnitCents * qty,
		QuotedLines: types.QuotedLines{{
			ProductID:       prod.ID,
			Name:            prod.Name,
			UnitAmountCents: quotedUnitCents,
			Quantity:        qty,
		}},
	}).Error)

	return fixture{db: db, userID: userID, cartID: cartRow.ID, product: prod}
}

func TestHandleSessionCompletedCreatesOrder(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	svc := newFulfillmentService(t, db)
	ctx := context.Background()

	sessionID := "cs_test_" + uuid.NewString()
	fx := seedPaidCart(t, db, sessionID, 2500, 2500, 10, 2)

	err := svc.HandleSessionCompleted(ctx, CompletedSession{
		SessionID:        sessionID,
		UserID:           fx.userID,
		CartID:           fx.cartID,
		AmountTotalCents: 5000,
	})
	require.NoError(t, err)

	var order models.Order
	require.NoError(t, db.Preload("Items").First(&order, "provider_session_id = ?", sessionID).Error)
	require.Equal(t, enums.OrderStatusPaid, order.Status)
	require.Equal(t, 5000, order.TotalCents)
	require.Equal(t, fx.userID, order.UserID)
	require.Len(t, order.Items, 1)
	require.Equal(t, fx.product.ID, order.Items[0].ProductID)
	require.Equal(t, 2, order.Items[0].Quantity)
	require.Equal(t, 2500, order.Items[0].UnitPriceCents)
	require.Equal(t, 5000, order.Items[0].LineTotalCents)

	var after models.Product
	require.NoError(t, db.First(&after, "id = ?", fx.product.ID).Error)
	require.Equal(t, 8, after.StockQuantity)

	var remaining int64
	require.NoError(t, db.Model(&models.CartItem{}).Where("cart_id = ?", fx.cartID).Count(&remaining).Error)
	require.Zero(t, remaining)
}

func TestHandleSessionCompletedBackorderDrivesStockNegative(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	svc := newFulfillmentService(t, db)
	ctx := context.Background()

	sessionID := "cs_test_" + uuid.NewString()
	fx := seedPaidCart(t, db, sessionID, 1000, 1000, 1, 3)
	require.NoError(t, db.Model(&models.Product{}).
		Where("id = ?", fx.product.ID).
		UpdateColumn("allow_backorder", true).Error)

	err := svc.HandleSessionCompleted(ctx, CompletedSession{
		SessionID:        sessionID,
		UserID:           fx.userID,
		CartID:           fx.cartID,
		AmountTotalCents: 3000,
	})
	require.NoError(t, err)

	var order models.Order
	require.NoError(t, db.First(&order, "provider_session_id = ?", sessionID).Error)
	require.Equal(t, enums.OrderStatusPaid, order.Status)

	var after models.Product
	require.NoError(t, db.First(&after, "id = ?", fx.product.ID).Error)
	require.Equal(t, -2, after.StockQuantity)
}

func TestHandleSessionCompletedIsIdempotent(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	svc := newFulfillmentService(t, db)
	ctx := context.Background()

	sessionID := "cs_test_" + uuid.NewString()
	fx := seedPaidCart(t, db, sessionID, 1000, 1000, 5, 3)

	event := CompletedSession{
		SessionID:        sessionID,
		UserID:           fx.userID,
		CartID:           fx.cartID,
		AmountTotalCents: 3000,
	}
	require.NoError(t, svc.HandleSessionCompleted(ctx, event))
	require.NoError(t, svc.HandleSessionCompleted(ctx, event))

	var orderCount int64
	require.NoError(t, db.Model(&models.Order{}).Where("provider_session_id = ?", sessionID).Count(&orderCount).Error)
	require.EqualValues(t, 1, orderCount)

	// stock decremented exactly once
	var after models.Product
	require.NoError(t, db.First(&after, "id = ?", fx.product.ID).Error)
	require.Equal(t, 2, after.StockQuantity)
}

func TestHandleSessionCompletedUsesFrozenPrice(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	svc := newFulfillmentService(t, db)
	ctx := context.Background()

	// sale ended between session creation and webhook delivery; the quoted
	// amount was 700 while the base price is 1000
	sessionID := "cs_test_" + uuid.NewString()
	fx := seedPaidCart(t, db, sessionID, 1000, 700, 5, 2)

	err := svc.HandleSessionCompleted(ctx, CompletedSession{
		SessionID:        sessionID,
		UserID:           fx.userID,
		CartID:           fx.cartID,
		AmountTotalCents: 1400,
	})
	require.NoError(t, err)

	var order models.Order
	require.NoError(t, db.Preload("Items").First(&order, "provider_session_id = ?", sessionID).Error)
	require.Equal(t, 700, order.Items[0].UnitPriceCents)
	require.Equal(t, 1400, order.Items[0].LineTotalCents)
	require.Equal(t, 1400, order.TotalCents)
}

func TestHandleSessionCompletedBasePriceFallback(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	svc := newFulfillmentService(t, db)
	ctx := context.Background()

	// cart and product exist but no session snapshot was persisted
	prod := &models.Product{
		ID:            uuid.New(),
		Name:          "Unsnapshotted",
		PriceCents:    1200,
		StockQuantity: 4,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, db.Create(prod).Error)
	userID := uuid.New()
	cartRow := &models.Cart{ID: uuid.New(), UserID: userID}
	require.NoError(t, db.Create(cartRow).Error)
	require.NoError(t, db.Create(&models.CartItem{
		ID: uuid.New(), CartID: cartRow.ID, ProductID: prod.ID, Quantity: 1,
	}).Error)

	sessionID := "cs_test_" + uuid.NewString()
	err := svc.HandleSessionCompleted(ctx, CompletedSession{
		SessionID: sessionID,
		UserID:    userID,
		CartID:    cartRow.ID,
	})
	require.NoError(t, err)

	var order models.Order
	require.NoError(t, db.Preload("Items").First(&order, "provider_session_id = ?", sessionID).Error)
	require.Equal(t, 1200, order.Items[0].UnitPriceCents)
	require.Equal(t, 1200, order.TotalCents)
}

func TestHandleSessionCompletedClampsStock(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	svc := newFulfillmentService(t, db)
	ctx := context.Background()

	// stock fell below the paid quantity after checkout validation
	sessionID := "cs_test_" + uuid.NewString()
	fx := seedPaidCart(t, db, sessionID, 1000, 1000, 1, 3)

	err := svc.HandleSessionCompleted(ctx, CompletedSession{
		SessionID:        sessionID,
		UserID:           fx.userID,
		CartID:           fx.cartID,
		AmountTotalCents: 3000,
	})
	require.NoError(t, err)

	// payment was captured, so the order stands and stock clamps at zero
	var orderCount int64
	require.NoError(t, db.Model(&models.Order{}).Where("provider_session_id = ?", sessionID).Count(&orderCount).Error)
	require.EqualValues(t, 1, orderCount)

	var after models.Product
	require.NoError(t, db.First(&after, "id = ?", fx.product.ID).Error)
	require.Equal(t, 0, after.StockQuantity)
}

func TestHandleSessionCompletedValidation(t *testing.T) {
	db := setupFulfillmentTestDB(t)
	svc := newFulfillmentService(t, db)
	ctx := context.Background()

	err := svc.HandleSessionCompleted(ctx, CompletedSession{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())

	err = svc.HandleSessionCompleted(ctx, CompletedSession{SessionID: "cs_x"})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
