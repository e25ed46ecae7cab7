package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/KIaudius/issues-insights-tracker/internal/domain/rbac"
)

// TokenType discriminates access from refresh tokens; a refresh token is
// never accepted where an access token is required and vice versa.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrWrongTokenType = errors.New("wrong token type")
)

// Identity is the verified claim set carried by a token.
type Identity struct {
	UserID uint64
	Email  string
	Role   rbac.Role
}

type tokenClaims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256-signed token pairs.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token ttls must be positive")
	}
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

func (m *TokenManager) IssueAccessToken(identity Identity) (string, error) {
	return m.issue(identity, TokenTypeAccess, m.accessTTL)
}

func (m *TokenManager) IssueRefreshToken(identity Identity) (string, error) {
	return m.issue(identity, TokenTypeRefresh, m.refreshTTL)
}

func (m *TokenManager) issue(identity Identity, tokenType TokenType, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := tokenClaims{
		Email:     identity.Email,
		Role:      string(identity.Role),
		TokenType: string(tokenType),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(identity.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates the token, requiring the given type.
func (m *TokenManager) Verify(raw string, want TokenType) (Identity, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.TokenType != string(want) {
		return Identity{}, ErrWrongTokenType
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	role, err := rbac.ParseRole(claims.Role)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad role", ErrInvalidToken)
	}

	return Identity{UserID: userID, Email: claims.Email, Role: role}, nil
}
