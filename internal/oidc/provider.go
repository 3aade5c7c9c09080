// Package oidc provides optional single sign-on through an OpenID Connect provider.
package oidc

import (
	"civicportal/internal/config"
	"civicportal/internal/entity"
	"civicportal/internal/service"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Provider drives the authorization code flow against one OIDC issuer.
type Provider struct {
	config       *oauth2.Config
	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	HTTPClient   *http.Client // 可选，默认 30s 超时
}

// ConfigFrom builds a ProviderConfig from the application config.
func ConfigFrom(cfg config.Config) ProviderConfig {
	return ProviderConfig{
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		RedirectURL:  cfg.OIDCRedirectURL,
		Scope:        cfg.OIDCScope,
		DiscoveryURL: cfg.OIDCDiscoveryURL,
	}
}

// NewProvider fetches the discovery document once and prepares the verifier.
func NewProvider(ctx context.Context, pc ProviderConfig) (*Provider, error) {
	if pc.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if pc.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if pc.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if pc.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := pc.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	ctx = gooidc.ClientContext(ctx, httpClient)

	issuer := strings.TrimSuffix(pc.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	scopes := strings.Fields(pc.Scope)
	if !containsScope(scopes, gooidc.ScopeOpenID) {
		scopes = append([]string{gooidc.ScopeOpenID}, scopes...)
	}

	return &Provider{
		oidcProvider: op,
		verifier:     op.Verifier(&gooidc.Config{ClientID: pc.ClientID}),
		config: &oauth2.Config{
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			RedirectURL:  pc.RedirectURL,
			Scopes:       scopes,
			Endpoint:     op.Endpoint(),
		},
	}, nil
}

// Begin returns the authorization URL plus the state and nonce the caller must
// keep until the callback.
func (p *Provider) Begin(_ context.Context) (authURL, state, nonce string, err error) {
	state, err = generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err = generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}
	authURL = p.config.AuthCodeURL(state, gooidc.Nonce(nonce), oauth2.SetAuthURLParam("prompt", "select_account"))
	return authURL, state, nonce, nil
}

// Exchange trades the authorization code for a verified identity.
func (p *Provider) Exchange(ctx context.Context, code, nonce string) (service.ExternalIdentity, error) {
	if code == "" {
		return service.ExternalIdentity{}, errors.New("authorization code is required")
	}
	if nonce == "" {
		return service.ExternalIdentity{}, errors.New("nonce is required")
	}

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return service.ExternalIdentity{}, fmt.Errorf("exchange code for token: %w", err)
	}
	rawID, ok := token.Extra("id_token").(string)
	if !ok || rawID == "" {
		return service.ExternalIdentity{}, errors.New("missing id_token in token response")
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return service.ExternalIdentity{}, fmt.Errorf("verify id_token: %w", err)
	}
	if idTok.Nonce != nonce {
		return service.ExternalIdentity{}, errors.New("invalid nonce")
	}

	var claims idTokenClaims
	if err := idTok.Claims(&claims); err != nil {
		return service.ExternalIdentity{}, fmt.Errorf("parse id_token claims: %w", err)
	}
	claims.Subject = idTok.Subject

	// id_token 缺少 email 时回退到 userinfo
	if claims.Email == "" {
		ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(token))
		if err != nil {
			return service.ExternalIdentity{}, fmt.Errorf("fetch user info: %w", err)
		}
		var extra idTokenClaims
		if err := ui.Claims(&extra); err != nil {
			return service.ExternalIdentity{}, fmt.Errorf("decode user info: %w", err)
		}
		claims.fillFrom(extra)
	}
	return claims.identity()
}

type idTokenClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

func (c *idTokenClaims) fillFrom(other idTokenClaims) {
	if c.Email == "" {
		c.Email = other.Email
		c.EmailVerified = other.EmailVerified
	}
	if c.Name == "" {
		c.Name = other.Name
	}
	if c.GivenName == "" {
		c.GivenName = other.GivenName
	}
	if c.FamilyName == "" {
		c.FamilyName = other.FamilyName
	}
}

func (c idTokenClaims) identity() (service.ExternalIdentity, error) {
	if c.Subject == "" {
		return service.ExternalIdentity{}, errors.New("identity has no subject")
	}
	if c.EmailVerified != nil && !*c.EmailVerified {
		return service.ExternalIdentity{}, errors.New("email address is not verified")
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = strings.TrimSpace(c.GivenName + " " + c.FamilyName)
	}
	return service.ExternalIdentity{
		Provider: entity.AuthProviderOIDC,
		Subject:  c.Subject,
		Email:    entity.NormalizeEmail(c.Email),
		Name:     name,
	}, nil
}

func containsScope(scopes []string, want string) bool {
	for _, sc := range scopes {
		if sc == want {
			return true
		}
	}
	return false
}

// generateRandomString returns a URL-safe random string of exactly length characters.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	b := make([]byte, (length*3+3)/4+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length], nil
}
