package oidc

// Package oidc implements the enterprise SSO login mode against an OIDC
// identity provider. It yields the same session shape as a password login
// so the rest of the system never distinguishes the two.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/oauth2"

	domainauth "github.com/campusworks/campus-ui-api/internal/domain/auth"
	autherrors "github.com/campusworks/campus-ui-api/internal/errors"
	"github.com/campusworks/campus-ui-api/internal/ports"
)

// Provider implements ports.SSOProvider and ports.TokenRefresher over
// OIDC/OAuth2.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client
	mapper     ports.RoleMapper

	// groupsQuery is a JMESPath expression applied to the full claims
	// document to extract the group list for role mapping. Validated at
	// construction.
	groupsQuery string

	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

var (
	_ ports.SSOProvider    = (*Provider)(nil)
	_ ports.TokenRefresher = (*Provider)(nil)
)

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	// GroupsQuery is a JMESPath expression over the ID token claims that
	// yields the group list, e.g. "groups" or "realm_access.roles".
	// Defaults to "groups".
	GroupsQuery string
	// Mapper converts extracted groups to an application role.
	Mapper ports.RoleMapper
	// HTTPClient is optional; defaults to a 30s-timeout client.
	HTTPClient *http.Client
}

// NewProvider creates a new OIDC provider.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if config.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}
	if config.Mapper == nil {
		return nil, errors.New("role mapper is required")
	}

	groupsQuery := config.GroupsQuery
	if groupsQuery == "" {
		groupsQuery = "groups"
	}
	if _, err := jmespath.Compile(groupsQuery); err != nil {
		return nil, fmt.Errorf("compile groups query %q: %w", groupsQuery, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	p := &Provider{
		httpClient:  httpClient,
		mapper:      config.Mapper,
		groupsQuery: groupsQuery,
	}

	// Single discovery fetch at construction.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: config.ClientID})

	scopes := strings.Fields(config.Scope)
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "profile", "email"}
	}
	p.config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURL,
		Scopes:       scopes,
		Endpoint:     op.Endpoint(),
	}
	return p, nil
}

// Begin starts the flow with fresh state and nonce.
func (p *Provider) Begin(_ context.Context) (string, string, string, error) {
	state, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	authURL := p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("response_type", "code"),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
	return authURL, state, nonce, nil
}

// Exchange redeems the authorization code, verifies the ID token against
// the expected nonce, and maps the claims to an application session.
func (p *Provider) Exchange(ctx context.Context, code, nonce string) (domainauth.Session, error) {
	if code == "" {
		return domainauth.Session{}, errors.New("authorization code is required")
	}
	if nonce == "" {
		return domainauth.Session{}, errors.New("nonce is required")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return domainauth.Session{}, autherrors.Wrap(err, autherrors.KindNetwork, "exchange code for token")
	}

	rawID, err := idTokenOf(token)
	if err != nil {
		return domainauth.Session{}, err
	}
	idToken, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("verify id_token: %w", err)
	}
	if idToken.Nonce != nonce {
		return domainauth.Session{}, errors.New("invalid nonce")
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return domainauth.Session{}, fmt.Errorf("parse id_token claims: %w", err)
	}

	user := p.userFromClaims(claims)
	if user.Email == "" {
		return domainauth.Session{}, errors.New("id_token carries no email claim")
	}

	return domainauth.Session{
		Credentials: domainauth.Credentials{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
		},
		User: &user,
	}, nil
}

// Refresh performs the OAuth2 refresh grant.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", autherrors.RefreshInvalid(nil)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	src := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			// invalid_grant and friends mean the refresh token is dead.
			return "", autherrors.RefreshInvalid(err)
		}
		return "", autherrors.Network(err)
	}
	return token.AccessToken, nil
}

func (p *Provider) userFromClaims(claims map[string]any) domainauth.User {
	sub := stringClaim(claims, "sub")
	email := stringClaim(claims, "email")
	username := firstNonEmpty(stringClaim(claims, "preferred_username"), email, sub)

	role := p.mapper.Map(p.groups(claims))

	verified, _ := claims["email_verified"].(bool)
	return domainauth.User{
		// The identity backend never sees SSO users, so a stable
		// synthetic ID is derived from the provider subject.
		ID:              syntheticID(sub),
		Email:           email,
		Username:        username,
		Role:            role,
		IsEmailVerified: verified,
	}
}

func (p *Provider) groups(claims map[string]any) []string {
	result, err := jmespath.Search(p.groupsQuery, claims)
	if err != nil {
		return nil
	}
	switch v := result.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}

func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// syntheticID folds a provider subject into a stable positive int.
func syntheticID(sub string) int {
	if sub == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(sub))
	id := int(h.Sum32() & 0x7fffffff)
	if id == 0 {
		id = 1
	}
	return id
}

func idTokenOf(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return "", errors.New("missing id_token in token response")
	}
	return raw, nil
}

// generateRandomString generates a URL-safe random string of exact length.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	nBytes := (length*3 + 3) / 4
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	for len(s) < length {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:length], nil
}
