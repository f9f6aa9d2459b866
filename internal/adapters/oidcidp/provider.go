package oidcidp

// Package oidcidp implements the IdentityProvider port against an OIDC
// issuer. Discovery is lazy so the session manager's bounded-retry readiness
// sequence, not process startup, absorbs provider outages.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/guestwave/console-auth/internal/adapters/claimsmap"
	domainsession "github.com/guestwave/console-auth/internal/domain/session"
	apperrors "github.com/guestwave/console-auth/internal/errors"
)

// ProviderConfig holds configuration for the OIDC identity provider.
type ProviderConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	Scope        string
	LogoutURL    string
	Mapper       *claimsmap.Mapper
	HTTPClient   *http.Client // Optional, defaults to a 30s-timeout client
	Logger       *slog.Logger
}

// Provider implements ports.IdentityProvider using OIDC resource-owner
// password sign-in and ID-token claim verification.
type Provider struct {
	issuerURL    string
	clientID     string
	clientSecret string
	scopes       []string
	logoutURL    string
	mapper       *claimsmap.Mapper
	httpClient   *http.Client
	logger       *slog.Logger

	mu           sync.Mutex
	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
	oauthConfig  *oauth2.Config

	current      *domainsession.Credential
	token        *oauth2.Token
	cachedClaims *domainsession.Claims

	listeners  map[int]func(*domainsession.Credential)
	nextListID int
}

// NewProvider creates a new OIDC identity provider.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.IssuerURL == "" {
		return nil, errors.New("issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if cfg.Mapper == nil {
		return nil, errors.New("claims mapper is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	issuer := strings.TrimSuffix(cfg.IssuerURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")

	return &Provider{
		issuerURL:    issuer,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		scopes:       strings.Fields(cfg.Scope),
		logoutURL:    cfg.LogoutURL,
		mapper:       cfg.Mapper,
		httpClient:   httpClient,
		logger:       logger,
		listeners:    make(map[int]func(*domainsession.Credential)),
	}, nil
}

// Ready probes the issuer by performing (or re-using) OIDC discovery.
func (p *Provider) Ready(ctx context.Context) error {
	if _, err := p.discovered(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeProviderUnavailable, "identity provider not ready")
	}
	return nil
}

// discovered returns the lazily initialized OAuth2 config, running discovery
// on first use.
func (p *Provider) discovered(ctx context.Context) (*oauth2.Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.oauthConfig != nil {
		return p.oauthConfig, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	op, err := gooidc.NewProvider(ctx, p.issuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: p.clientID})
	p.oauthConfig = &oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		Scopes:       p.scopes,
		Endpoint:     op.Endpoint(),
	}
	return p.oauthConfig, nil
}

// SignIn authenticates with the resource-owner password grant and caches the
// resulting credential and token.
func (p *Provider) SignIn(ctx context.Context, email, password string) (domainsession.Credential, error) {
	if email == "" || password == "" {
		return domainsession.Credential{}, apperrors.InvalidCredentials("email and password are required")
	}

	conf, err := p.discovered(ctx)
	if err != nil {
		return domainsession.Credential{}, apperrors.Wrap(err, apperrors.ErrCodeProviderUnavailable, "sign in")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := conf.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		return domainsession.Credential{}, classifySignInError(err)
	}

	cred, claims, err := p.credentialFromToken(ctx, token)
	if err != nil {
		return domainsession.Credential{}, err
	}

	p.mu.Lock()
	p.current = &cred
	p.token = token
	p.cachedClaims = &claims
	listeners := p.snapshotListenersLocked()
	p.mu.Unlock()

	notify(listeners, &cred)
	return cred, nil
}

// SignOut clears the local credential and notifies listeners. Provider-side
// revocation is best-effort: a failure is logged, never propagated, because
// local sign-out must not be blockable by backend reachability.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	token := p.token
	p.current = nil
	p.token = nil
	p.cachedClaims = nil
	listeners := p.snapshotListenersLocked()
	p.mu.Unlock()

	notify(listeners, nil)

	if p.logoutURL != "" && token != nil {
		if err := p.revokeRemote(ctx, token); err != nil {
			p.logger.WarnContext(ctx, "remote sign-out failed", "error", err)
		}
	}
	return nil
}

func (p *Provider) revokeRemote(ctx context.Context, token *oauth2.Token) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.logoutURL, nil)
	if err != nil {
		return fmt.Errorf("build logout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("logout request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("logout endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// CurrentCredential returns a copy of the cached credential, or nil when
// signed out. No I/O.
func (p *Provider) CurrentCredential() *domainsession.Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	cred := *p.current
	return &cred
}

// FetchClaims returns a claims snapshot for the credential. With forceRefresh
// the token is re-obtained through the refresh grant before claims are
// derived, defending against stale cached privilege.
func (p *Provider) FetchClaims(ctx context.Context, cred domainsession.Credential, forceRefresh bool) (domainsession.Claims, error) {
	p.mu.Lock()
	current := p.current
	token := p.token
	cached := p.cachedClaims
	p.mu.Unlock()

	if current == nil || current.UserID != cred.UserID {
		return domainsession.Claims{}, apperrors.TokenFetch("credential is no longer current")
	}

	if !forceRefresh && cached != nil {
		return *cached, nil
	}

	if token == nil {
		return domainsession.Claims{}, apperrors.TokenFetch("no token available for credential")
	}

	conf, err := p.discovered(ctx)
	if err != nil {
		return domainsession.Claims{}, apperrors.Wrap(err, apperrors.ErrCodeTokenFetch, "fetch claims")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	fresh, err := refreshToken(ctx, conf, token)
	if err != nil {
		return domainsession.Claims{}, apperrors.Wrap(err, apperrors.ErrCodeTokenFetch, "refresh token")
	}

	_, claims, err := p.credentialFromToken(ctx, fresh)
	if err != nil {
		return domainsession.Claims{}, err
	}

	p.mu.Lock()
	// Only persist when the credential has not changed underneath us.
	if p.current != nil && p.current.UserID == cred.UserID {
		p.token = fresh
		p.cachedClaims = &claims
	}
	p.mu.Unlock()

	return claims, nil
}

// refreshToken forces a refresh-grant round trip rather than reusing a still
// valid access token.
func refreshToken(ctx context.Context, conf *oauth2.Config, token *oauth2.Token) (*oauth2.Token, error) {
	if token.RefreshToken == "" {
		return nil, errors.New("no refresh token")
	}
	ts := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: token.RefreshToken})
	fresh, err := ts.Token()
	if err != nil {
		return nil, err
	}
	// The refresh response may omit id_token or refresh_token; carry the old
	// ones forward so subsequent refreshes keep working.
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = token.RefreshToken
	}
	if fresh.Extra("id_token") == nil {
		if raw, ok := token.Extra("id_token").(string); ok {
			fresh = fresh.WithExtra(map[string]any{"id_token": raw})
		}
	}
	return fresh, nil
}

// OnCredentialChanged registers a listener for credential transitions.
func (p *Provider) OnCredentialChanged(listener func(*domainsession.Credential)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextListID
	p.nextListID++
	p.listeners[id] = listener

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// credentialFromToken verifies the token's id_token and maps it into a
// credential and claims snapshot.
func (p *Provider) credentialFromToken(ctx context.Context, token *oauth2.Token) (domainsession.Credential, domainsession.Claims, error) {
	rawID, ok := token.Extra("id_token").(string)
	if !ok || rawID == "" {
		return domainsession.Credential{}, domainsession.Claims{}, apperrors.TokenFetch("missing id_token in token response")
	}

	p.mu.Lock()
	verifier := p.verifier
	p.mu.Unlock()
	if verifier == nil {
		return domainsession.Credential{}, domainsession.Claims{}, apperrors.TokenFetch("provider not discovered")
	}

	idTok, err := verifier.Verify(ctx, rawID)
	if err != nil {
		return domainsession.Credential{}, domainsession.Claims{}, apperrors.Wrap(err, apperrors.ErrCodeTokenFetch, "verify id_token")
	}

	var raw map[string]any
	if claimsErr := idTok.Claims(&raw); claimsErr != nil {
		return domainsession.Credential{}, domainsession.Claims{}, apperrors.Wrap(claimsErr, apperrors.ErrCodeMalformedClaims, "parse id_token claims")
	}

	expiresAt := idTok.Expiry
	if !token.Expiry.IsZero() && token.Expiry.Before(expiresAt) {
		expiresAt = token.Expiry
	}
	claims := p.mapper.Map(raw, idTok.IssuedAt, expiresAt)

	cred := domainsession.Credential{
		UserID:      idTok.Subject,
		Email:       claims.Email,
		DisplayName: displayName(raw),
	}
	return cred, claims, nil
}

func displayName(raw map[string]any) string {
	for _, key := range []string{"name", "preferred_username", "email"} {
		if v, ok := raw[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// classifySignInError separates bad credentials from transport failures.
func classifySignInError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		code := retrieveErr.Response.StatusCode
		if code == http.StatusBadRequest || code == http.StatusUnauthorized || code == http.StatusForbidden {
			return apperrors.Wrap(err, apperrors.ErrCodeInvalidCredentials, "invalid email or password")
		}
	}
	return apperrors.Wrap(err, apperrors.ErrCodeProviderUnavailable, "sign in request failed")
}

func (p *Provider) snapshotListenersLocked() []func(*domainsession.Credential) {
	out := make([]func(*domainsession.Credential), 0, len(p.listeners))
	for _, fn := range p.listeners {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []func(*domainsession.Credential), cred *domainsession.Credential) {
	for _, fn := range listeners {
		fn(cred)
	}
}
