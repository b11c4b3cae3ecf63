package product

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/brightcart/storefront-backend/pkg/db/models"
)

func setupCatalogTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	// mirrors the products migration, including its CHECK constraints, so
	// repository tests run against the same rules the shipped schema enforces
	ddl := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  price_cents INTEGER NOT NULL CHECK (price_cents >= 0),
  sale_price_cents INTEGER CHECK (sale_price_cents >= 0),
  sale_starts_at DATETIME,
  sale_ends_at DATETIME,
  stock_quantity INTEGER NOT NULL DEFAULT 0,
  allow_backorder INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (id)
);`
	if err := db.Exec(ddl).Error; err != nil {
		t.Fatalf("create products table: %v", err)
	}
	return db
}

type testProductOpts struct {
	priceCents     int
	salePriceCents *int
	saleStartsAt   *time.Time
	saleEndsAt     *time.Time
	stock          int
	allowBackorder bool
	inactive       bool
	createdAt      time.Time
}

func mustCreateTestProduct(t *testing.T, db *gorm.DB, opts testProductOpts) *models.Product {
	t.Helper()

	if opts.priceCents == 0 {
		opts.priceCents = 1000
	}
	if opts.createdAt.IsZero() {
		opts.createdAt = time.Now().UTC()
	}
	p := &models.Product{
		ID:             uuid.New(),
		Name:           "Test Product " + uuid.NewString()[:8],
		PriceCents:     opts.priceCents,
		SalePriceCents: opts.salePriceCents,
		SaleStartsAt:   opts.saleStartsAt,
		SaleEndsAt:     opts.saleEndsAt,
		StockQuantity:  opts.stock,
		AllowBackorder: opts.allowBackorder,
		IsActive:       !opts.inactive,
		CreatedAt:      opts.createdAt,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	if opts.inactive {
		// gorm skips zero-value fields with a default tag on insert, so the
		// is_active=false seed must be written explicitly.
		if err := db.Model(p).Update("is_active", false).Error; err != nil {
			t.Fatalf("mark product inactive: %v", err)
		}
	}
	return p
}
