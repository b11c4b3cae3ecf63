package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/brightcart/storefront-backend/pkg/db/models"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// serialTxRunner executes transactions one at a time. sqlite has no row
// locks, so this stands in for the FOR UPDATE lock postgres takes on the
// product row when concurrent mutations collide.
type serialTxRunner struct {
	mu sync.Mutex
	db *gorm.DB
}

func (r *serialTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.WithContext(ctx).Transaction(fn)
}

func setupCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

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
);`}
	for _, stmt := range ddl {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create tables: %v", err)
		}
	}
	return db
}

type seedProductOpts struct {
	priceCents     int
	salePriceCents *int
	saleStartsAt   *time.Time
	saleEndsAt     *time.Time
	stock          int
	allowBackorder bool
	inactive       bool
}

func mustSeedProduct(t *testing.T, db *gorm.DB, opts seedProductOpts) *models.Product {
	t.Helper()

	if opts.priceCents == 0 {
		opts.priceCents = 1000
	}
	p := &models.Product{
		ID:             uuid.New(),
		Name:           "Cart Product " + uuid.NewString()[:8],
		PriceCents:     opts.priceCents,
		SalePriceCents: opts.salePriceCents,
		SaleStartsAt:   opts.saleStartsAt,
		SaleEndsAt:     opts.saleEndsAt,
		StockQuantity:  opts.stock,
		AllowBackorder: opts.allowBackorder,
		IsActive:       !opts.inactive,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if opts.inactive {
		// gorm skips zero-value fields with a default tag on insert, so the
		// is_active=false seed must be written explicitly.
		if err := db.Model(p).Update("is_active", false).Error; err != nil {
			t.Fatalf("seed inactive product: %v", err)
		}
	}
	return p
}
