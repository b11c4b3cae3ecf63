package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/brightcart/storefront-backend/internal/checkout"
	"github.com/brightcart/storefront-backend/internal/fulfillment"
	pkgerrors "github.com/brightcart/storefront-backend/pkg/errors"
)

// Service routes verified Stripe events to the fulfillment handler. Event
// types the storefront does not care about are acknowledged and dropped.
type Service struct {
	fulfillment fulfillment.Service
}

func NewService(fulfillmentSvc fulfillment.Service) (*Service, error) {
	if fulfillmentSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service required")
	}
	return &Service{fulfillment: fulfillmentSvc}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		completed, err := completedSessionFrom(&session)
		if err != nil {
			return err
		}
		return s.fulfillment.HandleSessionCompleted(ctx, *completed)
	default:
		return nil
	}
}

func completedSessionFrom(session *stripe.CheckoutSession) (*fulfillment.CompletedSession, error) {
	if session.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id missing from event")
	}

	userID, err := uuid.Parse(session.Metadata[checkout.MetadataUserID])
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id missing from session metadata")
	}
	cartID, err := uuid.Parse(session.Metadata[checkout.MetadataCartID])
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id missing from session metadata")
	}

	return &fulfillment.CompletedSession{
		SessionID:        session.ID,
		UserID:           userID,
		CartID:           cartID,
		AmountTotalCents: int(session.AmountTotal),
	}, nil
}
