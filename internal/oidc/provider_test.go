package oidc

import (
	"civicportal/internal/config"
	"civicportal/internal/entity"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimsIdentity(t *testing.T) {
	verified := true
	ident, err := idTokenClaims{
		Subject:       "abc-123",
		Email:         " Voter@Example.com ",
		EmailVerified: &verified,
		GivenName:     "Ada",
		FamilyName:    "Lovelace",
	}.identity()
	require.NoError(t, err)
	assert.Equal(t, entity.AuthProviderOIDC, ident.Provider)
	assert.Equal(t, "abc-123", ident.Subject)
	assert.Equal(t, "voter@example.com", ident.Email)
	assert.Equal(t, "Ada Lovelace", ident.Name)
}

func TestClaimsIdentityRejectsUnverifiedEmail(t *testing.T) {
	unverified := false
	_, err := idTokenClaims{Subject: "s", Email: "a@example.com", EmailVerified: &unverified}.identity()
	assert.Error(t, err)

	_, err = idTokenClaims{Email: "a@example.com"}.identity()
	assert.Error(t, err)
}

func TestClaimsFillFrom(t *testing.T) {
	c := idTokenClaims{Subject: "s", Name: "From Token"}
	c.fillFrom(idTokenClaims{Email: "info@example.com", Name: "From Userinfo", GivenName: "G"})
	assert.Equal(t, "info@example.com", c.Email)
	assert.Equal(t, "From Token", c.Name)
	assert.Equal(t, "G", c.GivenName)
}

func TestGenerateRandomString(t *testing.T) {
	for _, n := range []int{1, 16, 32, 43} {
		s, err := generateRandomString(n)
		require.NoError(t, err)
		assert.Len(t, s, n)
	}
	a, _ := generateRandomString(32)
	b, _ := generateRandomString(32)
	assert.NotEqual(t, a, b)
}

func TestNewProviderValidatesConfig(t *testing.T) {
	_, err := NewProvider(context.Background(), ProviderConfig{})
	assert.ErrorContains(t, err, "client ID")

	_, err = NewProvider(context.Background(), ConfigFrom(config.Config{OIDCClientID: "id", OIDCClientSecret: "secret", OIDCRedirectURL: "http://localhost/cb"}))
	assert.ErrorContains(t, err, "discovery URL")
}
