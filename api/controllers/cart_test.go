package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/brightcart/storefront-backend/api/middleware"
	cartsvc "github.com/brightcart/storefront-backend/internal/cart"
	pkgerrors "github.com/brightcart/storefront-backend/pkg/errors"
)

type stubCartService struct {
	addCalls []struct {
		userID    uuid.UUID
		productID uuid.UUID
		quantity  int
	}
	addErr error
}

func (s *stubCartService) GetCart(ctx context.Context, userID uuid.UUID) (*cartsvc.CartDTO, error) {
	return &cartsvc.CartDTO{CartID: uuid.New(), Lines: []cartsvc.LineDTO{}, Subtotal: "0.00"}, nil
}

func (s *stubCartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cartsvc.LineDTO, error) {
	s.addCalls = append(s.addCalls, struct {
		userID    uuid.UUID
		productID uuid.UUID
		quantity  int
	}{userID, productID, quantity})
	if s.addErr != nil {
		return nil, s.addErr
	}
	return &cartsvc.LineDTO{ProductID: productID, Quantity: quantity}, nil
}

func (s *stubCartService) UpdateItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cartsvc.LineDTO, error) {
	return &cartsvc.LineDTO{ProductID: productID, Quantity: quantity}, nil
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	return nil
}

func authenticatedRequest(method, path, body string, userID uuid.UUID) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	return req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
}

func TestCartAddItemDecodesAndDelegates(t *testing.T) {
	svc := &stubCartService{}
	userID := uuid.New()
	productID := uuid.New()

	req := authenticatedRequest(http.MethodPost, "/api/v1/cart/items",
		`{"product_id":"`+productID.String()+`","quantity":3}`, userID)
	rec := httptest.NewRecorder()
	CartAddItem(svc, nil)(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, svc.addCalls, 1)
	require.Equal(t, userID, svc.addCalls[0].userID)
	require.Equal(t, productID, svc.addCalls[0].productID)
	require.Equal(t, 3, svc.addCalls[0].quantity)
}

func TestCartAddItemRejectsBadBodies(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"product_id":`},
		{name: "unknown field", body: `{"product_id":"` + uuid.NewString() + `","quantity":1,"color":"red"}`},
		{name: "zero quantity", body: `{"product_id":"` + uuid.NewString() + `","quantity":0}`},
		{name: "missing product", body: `{"quantity":2}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubCartService{}
			req := authenticatedRequest(http.MethodPost, "/api/v1/cart/items", tc.body, uuid.New())
			rec := httptest.NewRecorder()
			CartAddItem(svc, nil)(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Empty(t, svc.addCalls)
		})
	}
}

func TestCartAddItemSurfacesStockConflict(t *testing.T) {
	svc := &stubCartService{
		addErr: pkgerrors.New(pkgerrors.CodeInsufficientStock, "only 3 left in stock, you already have 2 in your cart"),
	}

	req := authenticatedRequest(http.MethodPost, "/api/v1/cart/items",
		`{"product_id":"`+uuid.NewString()+`","quantity":5}`, uuid.New())
	rec := httptest.NewRecorder()
	CartAddItem(svc, nil)(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "only 3 left in stock")
}

func TestCartAddItemRequiresUserContext(t *testing.T) {
	svc := &stubCartService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"product_id":"`+uuid.NewString()+`","quantity":1}`))
	rec := httptest.NewRecorder()
	CartAddItem(svc, nil)(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, svc.addCalls)
}

func TestCartRemoveItemIsIdempotentAtTheAPI(t *testing.T) {
	svc := &stubCartService{}
	productID := uuid.New()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("productId", productID.String())

	req := authenticatedRequest(http.MethodDelete, "/api/v1/cart/items/"+productID.String(), "", uuid.New())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	CartRemoveItem(svc, nil)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
