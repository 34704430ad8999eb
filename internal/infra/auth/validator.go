package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xela07ax/issue-router/internal/domain"
)

var ErrMissingOperator = errors.New("token has no user_id")

// OperatorValidator проверяет операторские токены для ручного перенаправления.
// Принимается только RS256, exp обязателен, iss сверяется, если задан.
type OperatorValidator struct {
	publicKey *rsa.PublicKey
	parser    *jwt.Parser
}

func NewOperatorValidator(pubKey *rsa.PublicKey, issuer string, leeway time.Duration) *OperatorValidator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &OperatorValidator{publicKey: pubKey, parser: jwt.NewParser(opts...)}
}

// VerifyToken принимает значение Authorization целиком или голый токен.
func (v *OperatorValidator) VerifyToken(header string) (*domain.CustomClaims, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(header), "Bearer "))

	claims := &domain.CustomClaims{}
	if _, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	}); err != nil {
		return nil, fmt.Errorf("invalid operator token: %w", err)
	}
	if claims.UserID == "" {
		return nil, ErrMissingOperator
	}
	return claims, nil
}

// ParseRSAPublicKey читает PEM (PKIX или PKCS1) публичного ключа операторов.
func ParseRSAPublicKey(data []byte) (*rsa.PublicKey, error) {
	if len(data) == 0 {
		return nil, errors.New("public key data is empty")
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("parse operator public key: %w", err)
	}
	return key, nil
}
