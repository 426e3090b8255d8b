package services

import (
	"errors"
	"testing"
	"time"

	linkup_errors "linkup-chat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func signToken(t *testing.T, secret string, claims AccessClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestParseAccessToken(t *testing.T) {
	svc := NewAuthService("top-secret")
	userID := uuid.New().String()

	t.Run("valid token", func(t *testing.T) {
		token := signToken(t, "top-secret", AccessClaims{
			UserID:   userID,
			Name:     "alice",
			Username: "alice",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})

		claims, err := svc.ParseAccessToken(token)
		if err != nil {
			t.Fatalf("ParseAccessToken error: %v", err)
		}
		if claims.UserID != userID || claims.Name != "alice" {
			t.Errorf("got claims %+v", claims)
		}
	})

	t.Run("empty token", func(t *testing.T) {
		if _, err := svc.ParseAccessToken(""); !errors.Is(err, linkup_errors.ErrUnauthorized) {
			t.Errorf("got %v, want ErrUnauthorized", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "other-secret", AccessClaims{
			UserID: userID,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		if _, err := svc.ParseAccessToken(token); !errors.Is(err, linkup_errors.ErrUnauthorized) {
			t.Errorf("got %v, want ErrUnauthorized", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, "top-secret", AccessClaims{
			UserID: userID,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		})
		if _, err := svc.ParseAccessToken(token); !errors.Is(err, linkup_errors.ErrUnauthorized) {
			t.Errorf("got %v, want ErrUnauthorized", err)
		}
	})

	t.Run("missing user id", func(t *testing.T) {
		token := signToken(t, "top-secret", AccessClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		if _, err := svc.ParseAccessToken(token); !errors.Is(err, linkup_errors.ErrUnauthorized) {
			t.Errorf("got %v, want ErrUnauthorized", err)
		}
	})
}
