package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/driftfs/driftfs/pkg/vfs/models"
)

const testSecret = "test-secret-that-is-long-enough-for-hmac"

func newTestService(t *testing.T, cfg JWTConfig) *JWTService {
	t.Helper()
	if cfg.Secret == "" {
		cfg.Secret = testSecret
	}
	svc, err := NewJWTService(cfg)
	if err != nil {
		t.Fatalf("failed to create JWT service: %v", err)
	}
	return svc
}

func testUser() *models.User {
	return &models.User{ID: "user-1", Username: "alice"}
}

func TestNewJWTService(t *testing.T) {
	t.Run("short secret rejected", func(t *testing.T) {
		_, err := NewJWTService(JWTConfig{Secret: "short"})
		if !errors.Is(err, ErrInvalidSecretLength) {
			t.Errorf("expected ErrInvalidSecretLength, got %v", err)
		}
	})

	t.Run("defaults applied", func(t *testing.T) {
		svc := newTestService(t, JWTConfig{})
		if svc.GetAccessTokenDuration() != 15*time.Minute {
			t.Errorf("expected default 15m, got %v", svc.GetAccessTokenDuration())
		}
	})
}

func TestTokenLifecycle(t *testing.T) {
	svc := newTestService(t, JWTConfig{})

	pair, err := svc.GenerateTokenPair(testUser())
	if err != nil {
		t.Fatalf("failed to generate token pair: %v", err)
	}
	if pair.TokenType != "Bearer" {
		t.Errorf("expected Bearer, got %q", pair.TokenType)
	}

	t.Run("access token validates", func(t *testing.T) {
		claims, err := svc.ValidateAccessToken(pair.AccessToken)
		if err != nil {
			t.Fatalf("failed to validate access token: %v", err)
		}
		if claims.UserID != "user-1" || claims.Username != "alice" {
			t.Errorf("unexpected claims: %+v", claims)
		}
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		_, err := svc.ValidateAccessToken(pair.RefreshToken)
		if !errors.Is(err, ErrInvalidTokenType) {
			t.Errorf("expected ErrInvalidTokenType, got %v", err)
		}
	})

	t.Run("refresh token validates as refresh", func(t *testing.T) {
		claims, err := svc.ValidateRefreshToken(pair.RefreshToken)
		if err != nil {
			t.Fatalf("failed to validate refresh token: %v", err)
		}
		if !claims.IsRefreshToken() {
			t.Error("expected refresh token type")
		}
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		other := newTestService(t, JWTConfig{Secret: "another-secret-that-is-also-long-enough"})
		_, err := other.ValidateToken(pair.AccessToken)
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.token")
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})
}

func TestExpiredToken(t *testing.T) {
	svc := newTestService(t, JWTConfig{
		AccessTokenDuration: -time.Minute,
	})
	pair, err := svc.GenerateTokenPair(testUser())
	if err != nil {
		t.Fatalf("failed to generate token pair: %v", err)
	}
	_, err = svc.ValidateToken(pair.AccessToken)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}
