package controllers

import (
	"net/http"

	"github.com/brightcart/storefront-backend/api/responses"
	checkoutsvc "github.com/brightcart/storefront-backend/internal/checkout"
	pkgerrors "github.com/brightcart/storefront-backend/pkg/errors"
	"github.com/brightcart/storefront-backend/pkg/logger"
	"github.com/brightcart/storefront-backend/pkg/metrics"
)

// Checkout creates a hosted payment session for the caller's cart and
// returns the redirect URL.
func Checkout(svc checkoutsvc.Service, m *metrics.CheckoutMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Start(r.Context(), userID)
		if err != nil {
			m.IncSessionCreated(outcomeFor(err))
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		m.IncSessionCreated("created")
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

func outcomeFor(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "error"
	}
	switch typed.Code() {
	case pkgerrors.CodeEmptyCart:
		return "empty_cart"
	case pkgerrors.CodeInsufficientStock:
		return "insufficient_stock"
	case pkgerrors.CodeDependency:
		return "provider_error"
	default:
		return "error"
	}
}
