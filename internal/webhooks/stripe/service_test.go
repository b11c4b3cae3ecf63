package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/brightcart/storefront-backend/internal/checkout"
	"github.com/brightcart/storefront-backend/internal/fulfillment"
	pkgerrors "github.com/brightcart/storefront-backend/pkg/errors"
)

type fakeFulfillment struct {
	calls  []fulfillment.CompletedSession
	result error
}

func (f *fakeFulfillment) HandleSessionCompleted(ctx context.Context, event fulfillment.CompletedSession) error {
	f.calls = append(f.calls, event)
	return f.result
}

func buildSessionEvent(t *testing.T, eventType stripe.EventType, session *stripe.CheckoutSession) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(session)
	require.NoError(t, err)
	return &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleEventDispatchesCompletedSession(t *testing.T) {
	fake := &fakeFulfillment{}
	svc, err := NewService(fake)
	require.NoError(t, err)

	userID := uuid.New()
	cartID := uuid.New()
	event := buildSessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, &stripe.CheckoutSession{
		ID:          "cs_test_123",
		AmountTotal: 5000,
		Metadata: map[string]string{
			checkout.MetadataUserID: userID.String(),
			checkout.MetadataCartID: cartID.String(),
		},
	})

	require.NoError(t, svc.HandleEvent(context.Background(), event))
	require.Len(t, fake.calls, 1)
	require.Equal(t, "cs_test_123", fake.calls[0].SessionID)
	require.Equal(t, userID, fake.calls[0].UserID)
	require.Equal(t, cartID, fake.calls[0].CartID)
	require.Equal(t, 5000, fake.calls[0].AmountTotalCents)
}

func TestHandleEventIgnoresOtherTypes(t *testing.T) {
	fake := &fakeFulfillment{}
	svc, err := NewService(fake)
	require.NoError(t, err)

	event := buildSessionEvent(t, stripe.EventTypeCheckoutSessionExpired, &stripe.CheckoutSession{ID: "cs_x"})
	require.NoError(t, svc.HandleEvent(context.Background(), event))
	require.Empty(t, fake.calls)
}

func TestHandleEventRejectsBadMetadata(t *testing.T) {
	fake := &fakeFulfillment{}
	svc, err := NewService(fake)
	require.NoError(t, err)

	event := buildSessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, &stripe.CheckoutSession{
		ID:       "cs_test_123",
		Metadata: map[string]string{checkout.MetadataUserID: "not-a-uuid"},
	})

	err = svc.HandleEvent(context.Background(), event)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	require.Empty(t, fake.calls)
}

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{data: make(map[string]string)}
}

func (s *inMemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("bc:idempotency:%s:%s", scope, id)
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func TestIdempotencyGuard(t *testing.T) {
	store := newInMemoryStore()
	guard, err := NewIdempotencyGuard(store, time.Minute, "stripe-webhook")
	require.NoError(t, err)
	ctx := context.Background()

	seen, err := guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	require.False(t, seen)

	seen, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	require.True(t, seen)

	// a failed handler releases the mark so the retry can run
	require.NoError(t, guard.Delete(ctx, "evt_1"))
	seen, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	require.False(t, seen)

	_, err = guard.CheckAndMark(ctx, "")
	require.Error(t, err)
}
