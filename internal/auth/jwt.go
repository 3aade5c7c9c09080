package auth

import (
	"civicportal/internal/entity"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const PurposeSetPassword = "set_password"

// InviteClaims represents a signed, single-purpose invitation to set a password.
type InviteClaims struct {
	UserID  uint   `json:"uid"`
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Manager encapsulates invite token generation and validation.
type Manager struct {
	secret []byte
	issuer string
	expiry time.Duration
}

// NewManager creates a new invite token manager.
func NewManager(secret, issuer string, expiry time.Duration) (*Manager, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	if expiry <= 0 {
		expiry = 72 * time.Hour
	}
	if strings.TrimSpace(issuer) == "" {
		issuer = "civicportal"
	}
	return &Manager{
		secret: []byte(trimmed),
		issuer: issuer,
		expiry: expiry,
	}, nil
}

// GenerateInvite issues a signed set-password token for the provided user.
// The user's pending invite nonce becomes the token ID.
func (m *Manager) GenerateInvite(user *entity.DbUser) (string, time.Time, error) {
	if m == nil {
		return "", time.Time{}, errors.New("jwt manager is nil")
	}
	if user == nil || user.ID == 0 {
		return "", time.Time{}, errors.New("invalid user for token generation")
	}
	if user.InviteNonce == nil || strings.TrimSpace(*user.InviteNonce) == "" {
		return "", time.Time{}, errors.New("user has no pending invite")
	}
	now := time.Now().UTC()
	expiry := now.Add(m.expiry)

	claims := InviteClaims{
		UserID:  user.ID,
		Email:   user.Email,
		Purpose: PurposeSetPassword,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        *user.InviteNonce,
			Subject:   fmt.Sprintf("%d", user.ID),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiry, nil
}

// ParseInvite validates the token and returns claims.
func (m *Manager) ParseInvite(tokenString string) (*InviteClaims, error) {
	if m == nil {
		return nil, errors.New("jwt manager is nil")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
	)

	token, err := parser.ParseWithClaims(tokenString, &InviteClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*InviteClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Purpose != PurposeSetPassword || claims.UserID == 0 || claims.ID == "" {
		return nil, errors.New("token is not a set-password invite")
	}
	return claims, nil
}
