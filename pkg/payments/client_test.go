package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/brightcart/storefront-backend/pkg/config"
	pkgerrors "github.com/brightcart/storefront-backend/pkg/errors"
)

func testCheckoutConfig() config.CheckoutConfig {
	return config.CheckoutConfig{
		SuccessURL: "https://shop.example.com/checkout/success",
		CancelURL:  "https://shop.example.com/checkout/cancel",
		Currency:   "USD",
	}
}

func TestNewClientValidation(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name     string
		cfg      config.StripeConfig
		checkout config.CheckoutConfig
		wantErr  string
	}{
		{
			name:     "missing api key",
			cfg:      config.StripeConfig{WebhookSecret: "whsec_x", Env: "test"},
			checkout: testCheckoutConfig(),
			wantErr:  "api key",
		},
		{
			name:     "missing webhook secret",
			cfg:      config.StripeConfig{APIKey: "sk_test_123", Env: "test"},
			checkout: testCheckoutConfig(),
			wantErr:  "webhook secret",
		},
		{
			name:     "live env rejects test key",
			cfg:      config.StripeConfig{APIKey: "sk_test_123", WebhookSecret: "whsec_x", Env: "live"},
			checkout: testCheckoutConfig(),
			wantErr:  "live secret key",
		},
		{
			name:     "unknown env",
			cfg:      config.StripeConfig{APIKey: "sk_test_123", WebhookSecret: "whsec_x", Env: "staging"},
			checkout: testCheckoutConfig(),
			wantErr:  "environment",
		},
		{
			name:    "missing redirect urls",
			cfg:     config.StripeConfig{APIKey: "sk_test_123", WebhookSecret: "whsec_x", Env: "test"},
			wantErr: "redirect urls",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewClient(ctx, tc.cfg, tc.checkout, nil)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNewClientNormalizesCurrency(t *testing.T) {
	client, err := NewClient(context.Background(), config.StripeConfig{
		APIKey:        "sk_test_123",
		WebhookSecret: "whsec_x",
		Env:           "",
	}, testCheckoutConfig(), nil)
	require.NoError(t, err)
	require.Equal(t, "test", client.Environment())
	require.Equal(t, "usd", client.currency)
	require.Equal(t, "whsec_x", client.SigningSecret())
}

func TestVerifyEvent(t *testing.T) {
	const secret = "whsec_verify"
	client := &Client{signingSecret: secret}

	event := stripe.Event{
		ID:         "evt_test_1",
		Type:       stripe.EventTypeCheckoutSessionCompleted,
		APIVersion: stripe.APIVersion,
		Object:     "event",
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	header := buildSignatureHeader(payload, secret, time.Now().Unix())
	parsed, err := client.VerifyEvent(payload, header)
	require.NoError(t, err)
	require.Equal(t, "evt_test_1", parsed.ID)

	_, err = client.VerifyEvent(payload, "t=1,v1=invalid")
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeInvalidSignature, appErr.Code())
}

func buildSignatureHeader(payload []byte, secret string, ts int64) string {
	signedPayload := fmt.Sprintf("%d.%s", ts, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
