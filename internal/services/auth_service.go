package services

import (
	"github.com/golang-jwt/jwt/v5"

	linkup_errors "linkup-chat/pkg/errors"
)

// AuthService verifies access tokens issued by the identity provider. Token
// issuance and credential handling live outside this service; it only parses
// and validates what the provider already signed.
type AuthService struct {
	secret []byte
}

func NewAuthService(secret string) *AuthService {
	return &AuthService{secret: []byte(secret)}
}

type AccessClaims struct {
	UserID         string `json:"user_id"`
	Name           string `json:"name"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture"`
	jwt.RegisteredClaims
}

func (s *AuthService) ParseAccessToken(token string) (*AccessClaims, error) {
	if token == "" {
		return nil, linkup_errors.ErrUnauthorized
	}

	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, linkup_errors.ErrUnauthorized
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, linkup_errors.ErrUnauthorized
	}
	if claims.UserID == "" {
		return nil, linkup_errors.ErrUnauthorized
	}
	return claims, nil
}
