package devidp

// Package devidp provides a self-contained IdentityProvider for local
// development. It mints and verifies its own short-lived HS256 tokens so the
// full sign-in -> token -> claims path is exercised without a live issuer.

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/guestwave/console-auth/internal/adapters/claimsmap"
	domainsession "github.com/guestwave/console-auth/internal/domain/session"
	apperrors "github.com/guestwave/console-auth/internal/errors"
)

// Config controls the dev identity provider.
type Config struct {
	UserID      string
	Email       string
	DisplayName string
	Admin       bool
	SigningKey  string
	TokenTTL    time.Duration // default 1h when zero
	Mapper      *claimsmap.Mapper
	Now         func() time.Time // default time.Now
}

// Provider implements ports.IdentityProvider for local development.
type Provider struct {
	userID      string
	email       string
	displayName string
	key         []byte
	tokenTTL    time.Duration
	mapper      *claimsmap.Mapper
	now         func() time.Time

	mu       sync.Mutex
	admin    bool
	current  *domainsession.Credential
	rawToken string

	listeners  map[int]func(*domainsession.Credential)
	nextListID int
}

// NewProvider constructs a dev identity provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	if cfg.SigningKey == "" {
		return nil, errors.New("dev auth: SigningKey is required")
	}
	if cfg.Mapper == nil {
		return nil, errors.New("dev auth: claims mapper is required")
	}

	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = time.Hour
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Provider{
		userID:      cfg.UserID,
		email:       cfg.Email,
		displayName: cfg.DisplayName,
		key:         []byte(cfg.SigningKey),
		tokenTTL:    ttl,
		mapper:      cfg.Mapper,
		now:         now,
		admin:       cfg.Admin,
		listeners:   make(map[int]func(*domainsession.Credential)),
	}, nil
}

// Ready always succeeds; there is no remote dependency.
func (p *Provider) Ready(_ context.Context) error { return nil }

// SignIn accepts the configured email with any non-empty password and mints a
// fresh token for it.
func (p *Provider) SignIn(_ context.Context, email, password string) (domainsession.Credential, error) {
	if !strings.EqualFold(email, p.email) || password == "" {
		return domainsession.Credential{}, apperrors.InvalidCredentials("invalid email or password")
	}

	p.mu.Lock()
	raw, err := p.mintLocked()
	if err != nil {
		p.mu.Unlock()
		return domainsession.Credential{}, apperrors.Wrap(err, apperrors.ErrCodeTokenFetch, "mint dev token")
	}
	cred := domainsession.Credential{
		UserID:      p.userID,
		Email:       p.email,
		DisplayName: p.displayName,
	}
	p.current = &cred
	p.rawToken = raw
	listeners := p.snapshotListenersLocked()
	p.mu.Unlock()

	notify(listeners, &cred)
	return cred, nil
}

// SignOut clears the local credential and notifies listeners.
func (p *Provider) SignOut(_ context.Context) error {
	p.mu.Lock()
	p.current = nil
	p.rawToken = ""
	listeners := p.snapshotListenersLocked()
	p.mu.Unlock()

	notify(listeners, nil)
	return nil
}

// CurrentCredential returns a copy of the cached credential, or nil.
func (p *Provider) CurrentCredential() *domainsession.Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	cred := *p.current
	return &cred
}

// FetchClaims verifies the held token and maps its claims. With forceRefresh
// a fresh token is minted first, picking up any privilege change made via
// SetAdmin since the last mint.
func (p *Provider) FetchClaims(_ context.Context, cred domainsession.Credential, forceRefresh bool) (domainsession.Claims, error) {
	p.mu.Lock()
	if p.current == nil || p.current.UserID != cred.UserID {
		p.mu.Unlock()
		return domainsession.Claims{}, apperrors.TokenFetch("credential is no longer current")
	}

	if forceRefresh {
		raw, err := p.mintLocked()
		if err != nil {
			p.mu.Unlock()
			return domainsession.Claims{}, apperrors.Wrap(err, apperrors.ErrCodeTokenFetch, "mint dev token")
		}
		p.rawToken = raw
	}
	raw := p.rawToken
	p.mu.Unlock()

	// Signature is checked here; expiry is left to the session validator so
	// an expired snapshot reports Expired instead of failing the fetch.
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}), jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return p.key, nil }); err != nil {
		return domainsession.Claims{}, apperrors.Wrap(err, apperrors.ErrCodeTokenFetch, "parse dev token")
	}

	now := p.now()
	return p.mapper.Map(map[string]any(claims), now, now.Add(p.tokenTTL)), nil
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

// SetAdmin flips the admin claim for tokens minted from now on, simulating a
// server-side privilege change.
func (p *Provider) SetAdmin(admin bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.admin = admin
}

// mintLocked issues a fresh HS256 token. Callers must hold p.mu.
func (p *Provider) mintLocked() (string, error) {
	now := p.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      p.userID,
		"email":    p.email,
		"name":     p.displayName,
		"is_admin": p.admin,
		"role":     "dev",
		"iat":      now.Unix(),
		"exp":      now.Add(p.tokenTTL).Unix(),
	})
	return token.SignedString(p.key)
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
