package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/issue-router/internal/domain"
)

func signToken(t *testing.T, key *rsa.PrivateKey, scopes map[string]bool) string {
	t.Helper()
	return signClaims(t, key, domain.CustomClaims{
		UserID: "operator-1",
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "ops-console",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
}

func signClaims(t *testing.T, key *rsa.PrivateKey, claims domain.CustomClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestParseRSAPublicKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemData := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	pub, err := ParseRSAPublicKey(pemData)
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(pub))

	_, err = ParseRSAPublicKey(nil)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	v := NewOperatorValidator(&key.PublicKey, "", 0)
	handler := NewMiddleware(v, domain.ScopeRoute, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "operator-1", claims.UserID)
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"wrong key", "Bearer " + signToken(t, other, map[string]bool{"route": true}), http.StatusUnauthorized},
		{"no scope", "Bearer " + signToken(t, key, map[string]bool{"read": true}), http.StatusForbidden},
		{"ok", "Bearer " + signToken(t, key, map[string]bool{"route": true}), http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestOperatorValidator_Claims(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := NewOperatorValidator(&key.PublicKey, "ops-console", time.Second)
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	claims, err := v.VerifyToken("Bearer " + signToken(t, key, map[string]bool{"route": true}))
	require.NoError(t, err)
	assert.True(t, claims.Can(domain.ScopeRoute))

	// без exp
	_, err = v.VerifyToken(signClaims(t, key, domain.CustomClaims{
		UserID:           "operator-1",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "ops-console"},
	}))
	assert.Error(t, err)

	// чужой издатель
	_, err = v.VerifyToken(signClaims(t, key, domain.CustomClaims{
		UserID:           "operator-1",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "elsewhere", ExpiresAt: future},
	}))
	assert.Error(t, err)

	// без оператора
	_, err = v.VerifyToken(signClaims(t, key, domain.CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "ops-console", ExpiresAt: future},
	}))
	assert.ErrorIs(t, err, ErrMissingOperator)

	// HS256 с публичным ключом в качестве секрета не проходит
	hs, err := jwt.NewWithClaims(jwt.SigningMethodHS256, domain.CustomClaims{
		UserID:           "operator-1",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "ops-console", ExpiresAt: future},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = v.VerifyToken(hs)
	assert.Error(t, err)
}

func TestCustomClaims_Can(t *testing.T) {
	var nilClaims *domain.CustomClaims
	assert.False(t, nilClaims.Can(domain.ScopeRoute))
	assert.False(t, (&domain.CustomClaims{}).Can(domain.ScopeRoute))
}
