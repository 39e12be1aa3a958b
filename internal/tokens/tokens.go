package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rubberband/rubberband/internal/config"
	"github.com/rubberband/rubberband/internal/models"
)

// GenerateAccessToken creates a signed JWT access token for a site owner.
func GenerateAccessToken(cfg *config.Config, u *models.User, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":   u.Sub,
		"name":  u.DisplayName,
		"email": u.Email,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(ttl).Unix(),
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(cfg.JWT.Secret))
}

// ParseAccessToken validates the signature and expiry of an access token
// and returns its claims.
func ParseAccessToken(cfg *config.Config, raw string) (jwt.MapClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(cfg.JWT.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
