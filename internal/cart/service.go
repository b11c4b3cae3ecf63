package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brightcart/storefront-backend/internal/pricing"
	product "github.com/brightcart/storefront-backend/internal/products"
	"github.com/brightcart/storefront-backend/pkg/db"
	"github.com/brightcart/storefront-backend/pkg/db/models"
	pkgerrors "github.com/brightcart/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes stock-aware cart operations. Every mutation validates
// against catalog stock inside the same transaction that performs the write.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*LineDTO, error)
	UpdateItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*LineDTO, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) error
}

type service struct {
	repo     Repository
	products *product.Repository
	tx       txRunner
	now      func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, products *product.Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:     repo,
		products: products,
		tx:       tx,
		now:      time.Now,
	}, nil
}

// GetCart returns the user's cart with live pricing, creating an empty cart
// on first access.
func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	cart, err := s.getOrCreateCart(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.FindItems(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
	}

	dto := &CartDTO{CartID: cart.ID, Lines: []LineDTO{}}
	if len(items) == 0 {
		dto.Subtotal = formatCents(0)
		return dto, nil
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	rows, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}

	byID := make(map[uuid.UUID]*models.Product, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}
	quotes := pricing.ResolveAll(rows, s.now())

	subtotal := 0
	for _, item := range items {
		prod, ok := byID[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "a cart product is no longer available")
		}
		line := buildLine(prod, quotes[prod.ID], item.Quantity)
		subtotal += line.LineTotalCents
		dto.Lines = append(dto.Lines, line)
	}
	dto.SubtotalCents = subtotal
	dto.Subtotal = formatCents(subtotal)
	return dto, nil
}

// AddItem adds quantity units of the product to the user's cart, merging into
// an existing line when one is present. Stock is checked against the combined
// quantity inside the same transaction as the write.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*LineDTO, error) {
	if err := validateLineInput(userID, productID, quantity); err != nil {
		return nil, err
	}

	var line *LineDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.getOrCreateCart(ctx, repo, userID)
		if err != nil {
			return err
		}

		prod, err := s.lockProduct(ctx, tx, productID)
		if err != nil {
			return err
		}

		current := 0
		var existing *models.CartItem
		existing, err = repo.FindItem(ctx, cart.ID, productID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}
		if existing != nil {
			current = existing.Quantity
		}

		requested := current + quantity
		if err := checkStock(prod, current, requested); err != nil {
			return err
		}

		if existing == nil {
			existing = &models.CartItem{
				ID:        uuid.New(),
				CartID:    cart.ID,
				ProductID: productID,
				Quantity:  quantity,
			}
			if err := repo.CreateItem(ctx, existing); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert cart line")
			}
		} else {
			existing.Quantity = requested
			if err := repo.UpdateItemQuantity(ctx, existing.ID, requested); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
			}
		}

		built := buildLine(prod, pricing.Resolve(prod, s.now()), existing.Quantity)
		line = &built
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// UpdateItem sets the line to an absolute quantity. Quantities below one are
// rejected; callers remove lines through RemoveItem instead.
func (s *service) UpdateItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*LineDTO, error) {
	if err := validateLineInput(userID, productID, quantity); err != nil {
		return nil, err
	}

	var line *LineDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.FindByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		prod, err := s.lockProduct(ctx, tx, productID)
		if err != nil {
			return err
		}

		item, err := repo.FindItem(ctx, cart.ID, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}

		if err := checkStock(prod, item.Quantity, quantity); err != nil {
			return err
		}

		if err := repo.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
		}

		built := buildLine(prod, pricing.Resolve(prod, s.now()), quantity)
		line = &built
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// RemoveItem deletes the line if present. Removing an absent line, or from a
// user without a cart yet, is a no-op success.
func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	if userID == uuid.Nil || productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id and product id are required")
	}

	cart, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	if _, err := s.repo.DeleteItem(ctx, cart.ID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
	}
	return nil
}

// getOrCreateCart resolves the user's cart, creating one on first access.
// Concurrent first access is handled by the unique user_id constraint: the
// loser of the insert race re-reads the winner's row.
func (s *service) getOrCreateCart(ctx context.Context, repo Repository, userID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.FindByUserID(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	fresh := &models.Cart{ID: uuid.New(), UserID: userID}
	createErr := repo.Create(ctx, fresh)
	if createErr == nil {
		return fresh, nil
	}
	if db.IsUniqueViolation(createErr) {
		cart, err = repo.FindByUserID(ctx, userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart after insert race")
		}
		return cart, nil
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create cart")
}

func (s *service) lockProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.Product, error) {
	rows, err := s.products.WithTx(tx).FindByIDsForUpdate(ctx, []uuid.UUID{productID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if len(rows) == 0 || !rows[0].IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return &rows[0], nil
}

func checkStock(prod *models.Product, inCart, requested int) error {
	if prod.AllowBackorder {
		return nil
	}
	if requested <= prod.StockQuantity {
		return nil
	}
	remaining := prod.StockQuantity - inCart
	if remaining < 0 {
		remaining = 0
	}
	msg := fmt.Sprintf("only %d left in stock, you already have %d in your cart", remaining, inCart)
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, msg).WithDetails(map[string]any{
		"product_id":     prod.ID,
		"stock_quantity": prod.StockQuantity,
		"in_cart":        inCart,
		"requested":      requested,
	})
}

func validateLineInput(userID, productID uuid.UUID, quantity int) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a positive integer")
	}
	return nil
}

func buildLine(prod *models.Product, quote pricing.Quote, quantity int) LineDTO {
	line := LineDTO{
		ProductID:      prod.ID,
		Name:           prod.Name,
		Quantity:       quantity,
		UnitPrice:      formatCents(quote.ActivePriceCents),
		UnitPriceCents: quote.ActivePriceCents,
		OnSale:         quote.OnSale,
		LineTotalCents: quote.ActivePriceCents * quantity,
	}
	line.LineTotal = formatCents(line.LineTotalCents)
	if quote.OriginalPriceCents != nil {
		original := formatCents(*quote.OriginalPriceCents)
		line.OriginalPrice = &original
	}
	return line
}
