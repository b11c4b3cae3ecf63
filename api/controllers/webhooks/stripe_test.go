package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	pkgerrors "github.com/brightcart/storefront-backend/pkg/errors"
)

const testSigningSecret = "whsec_unit_test"

type fakeWebhookService struct {
	events []*stripe.Event
	result error
}

func (f *fakeWebhookService) HandleEvent(ctx context.Context, event *stripe.Event) error {
	f.events = append(f.events, event)
	return f.result
}

type fakeGuard struct {
	seen    map[string]bool
	deleted []string
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{seen: map[string]bool{}}
}

func (g *fakeGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if g.seen[eventID] {
		return true, nil
	}
	g.seen[eventID] = true
	return false, nil
}

func (g *fakeGuard) Delete(ctx context.Context, eventID string) error {
	g.deleted = append(g.deleted, eventID)
	delete(g.seen, eventID)
	return nil
}

type hmacVerifier struct {
	secret string
}

func (v hmacVerifier) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, v.secret)
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeInvalidSignature, err, "verify webhook signature")
	}
	return event, nil
}

func signedPayload(t *testing.T, eventID string) ([]byte, string) {
	t.Helper()

	rawSession, err := json.Marshal(&stripe.CheckoutSession{ID: "cs_test_1"})
	require.NoError(t, err)

	payload, err := json.Marshal(&stripe.Event{
		ID:         eventID,
		Type:       stripe.EventTypeCheckoutSessionCompleted,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data:       &stripe.EventData{Raw: rawSession},
	})
	require.NoError(t, err)

	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testSigningSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	signature := hex.EncodeToString(mac.Sum(nil))
	return payload, fmt.Sprintf("t=%d,v1=%s", ts, signature)
}

func postWebhook(handler http.HandlerFunc, payload []byte, sigHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	if sigHeader != "" {
		req.Header.Set("Stripe-Signature", sigHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhookDispatchesVerifiedEvent(t *testing.T) {
	svc := &fakeWebhookService{}
	guard := newFakeGuard()
	handler := StripeWebhook(svc, hmacVerifier{secret: testSigningSecret}, guard, nil, nil)

	payload, sig := signedPayload(t, "evt_1")
	rec := postWebhook(handler, payload, sig)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.events, 1)
	require.Equal(t, "evt_1", svc.events[0].ID)
}

func TestStripeWebhookRejectsMissingSignature(t *testing.T) {
	svc := &fakeWebhookService{}
	handler := StripeWebhook(svc, hmacVerifier{secret: testSigningSecret}, newFakeGuard(), nil, nil)

	payload, _ := signedPayload(t, "evt_1")
	rec := postWebhook(handler, payload, "")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, svc.events)
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	svc := &fakeWebhookService{}
	handler := StripeWebhook(svc, hmacVerifier{secret: testSigningSecret}, newFakeGuard(), nil, nil)

	payload, _ := signedPayload(t, "evt_1")
	rec := postWebhook(handler, payload, "t=123,v1=deadbeef")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, svc.events)
}

func TestStripeWebhookAcksDuplicateDelivery(t *testing.T) {
	svc := &fakeWebhookService{}
	guard := newFakeGuard()
	handler := StripeWebhook(svc, hmacVerifier{secret: testSigningSecret}, guard, nil, nil)

	payload, sig := signedPayload(t, "evt_dup")
	first := postWebhook(handler, payload, sig)
	second := postWebhook(handler, payload, sig)

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	require.Len(t, svc.events, 1)
}

func TestStripeWebhookReleasesMarkOnHandlerFailure(t *testing.T) {
	svc := &fakeWebhookService{result: errors.New("fulfillment unavailable")}
	guard := newFakeGuard()
	handler := StripeWebhook(svc, hmacVerifier{secret: testSigningSecret}, guard, nil, nil)

	payload, sig := signedPayload(t, "evt_retry")
	rec := postWebhook(handler, payload, sig)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, guard.deleted, "evt_retry")

	// the retry is processed once the handler recovers
	svc.result = nil
	rec = postWebhook(handler, payload, sig)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.events, 2)
}
