package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/brightcart/storefront-backend/pkg/config"
	"github.com/brightcart/storefront-backend/pkg/enums"
)

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "brightcart",
		ExpirationMinutes: 30,
	}
	now := time.Now().UTC()
	userID := uuid.New()

	payload := AccessTokenPayload{
		UserID: userID,
		Role:   enums.UserRoleCustomer,
	}

	token, err := MintAccessToken(cfg, now, payload)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Role != enums.UserRoleCustomer {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatalf("expected a generated jti")
	}

	exp := now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)
	diff := claims.ExpiresAt.Sub(exp)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("expected exp roughly %v, got %v (diff %v)", exp.UTC(), claims.ExpiresAt.UTC(), diff)
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "brightcart",
		ExpirationMinutes: 10,
	}
	now := time.Now()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRoleAdmin,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	other := config.JWTConfig{Secret: "different", Issuer: "brightcart"}
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	now := time.Now()
	payload := AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleCustomer}

	cases := []struct {
		name string
		cfg  config.JWTConfig
		role enums.UserRole
		want string
	}{
		{"missing secret", config.JWTConfig{Issuer: "brightcart", ExpirationMinutes: 5}, enums.UserRoleCustomer, "secret"},
		{"missing issuer", config.JWTConfig{Secret: "s", ExpirationMinutes: 5}, enums.UserRoleCustomer, "issuer"},
		{"zero expiry", config.JWTConfig{Secret: "s", Issuer: "brightcart"}, enums.UserRoleCustomer, "expiration"},
		{"bad role", config.JWTConfig{Secret: "s", Issuer: "brightcart", ExpirationMinutes: 5}, enums.UserRole("nope"), "role"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := payload
			p.Role = tc.role
			_, err := MintAccessToken(tc.cfg, now, p)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
