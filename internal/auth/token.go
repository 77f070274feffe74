package auth

import (
	"context"
)

// TokenManager supplies the token sent in the Authorization header. An empty
// token means the request goes out unauthenticated.
type TokenManager interface {
	GetToken(ctx context.Context) (string, error)
}

// StaticTokenManager provides a fixed token.
type StaticTokenManager struct {
	token string
}

// NewStaticTokenManager returns a manager that always hands out token.
func NewStaticTokenManager(token string) *StaticTokenManager {
	return &StaticTokenManager{token: token}
}

// GetToken returns the fixed token.
func (m *StaticTokenManager) GetToken(ctx context.Context) (string, error) {
	return m.token, nil
}
