package checkout

import (
	"context"

	"gorm.io/gorm"

	"github.com/brightcart/storefront-backend/pkg/db/models"
)

// SessionRepository persists checkout session snapshots.
type SessionRepository interface {
	WithTx(tx *gorm.DB) SessionRepository
	Create(ctx context.Context, session *models.CheckoutSession) error
	FindBySessionID(ctx context.Context, sessionID string) (*models.CheckoutSession, error)
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository builds a session repository bound to the provided DB.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) WithTx(tx *gorm.DB) SessionRepository {
	if tx == nil {
		return r
	}
	return &sessionRepository{db: tx}
}

func (r *sessionRepository) Create(ctx context.Context, session *models.CheckoutSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) FindBySessionID(ctx context.Context, sessionID string) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}
