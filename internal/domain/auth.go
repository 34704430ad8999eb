package domain

import "github.com/golang-jwt/jwt/v5"

// ScopeRoute дает право вручную запускать маршрутизацию задачи.
const ScopeRoute = "route"

// CustomClaims — claims операторского токена.
type CustomClaims struct {
	UserID string          `json:"user_id"`
	Scopes map[string]bool `json:"scopes"` // {"route": true}
	jwt.RegisteredClaims
}

// Can сообщает, выдан ли токену scope. nil-claims не может ничего.
func (c *CustomClaims) Can(scope string) bool {
	return c != nil && c.Scopes[scope]
}
