// Package auth authenticates inbound credentials into a types.TenantContext.
// MVP uses static token authentication: tokens map directly onto a tenant,
// role, and key id.
//
// The predicate-producing code in C4 reads tenant/role only through the
// TenantContext value it is handed — never from thread-locals or globals.
// This package's only job is producing that value correctly.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/canonica-labs/semgate/internal/errors"
	"github.com/canonica-labs/semgate/internal/types"
)

// credential is what a token resolves to: the tenant context handed down
// the pipeline, plus an optional expiry.
type credential struct {
	tenant    types.TenantContext
	expiresAt time.Time
}

func (c *credential) isExpired() bool {
	return !c.expiresAt.IsZero() && time.Now().After(c.expiresAt)
}

// Authenticator validates an opaque token and produces the tenant context
// the rest of the request pipeline runs under.
type Authenticator interface {
	ValidateToken(ctx context.Context, token string) (types.TenantContext, error)
}

// StaticTokenAuthenticator holds a fixed token → credential table, loaded
// at bootstrap from configuration. There is no token issuance here.
type StaticTokenAuthenticator struct {
	mu    sync.RWMutex
	creds map[string]*credential
}

func NewStaticTokenAuthenticator() *StaticTokenAuthenticator {
	return &StaticTokenAuthenticator{creds: make(map[string]*credential)}
}

// RegisterToken binds a token to a tenant context. A zero expiresAt means
// the token never expires.
func (a *StaticTokenAuthenticator) RegisterToken(token string, tctx types.TenantContext, expiresAt time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.creds[token] = &credential{tenant: tctx, expiresAt: expiresAt}
}

func (a *StaticTokenAuthenticator) ValidateToken(ctx context.Context, token string) (types.TenantContext, error) {
	if token == "" {
		return types.TenantContext{}, errors.NewAuthRequired("token required")
	}

	a.mu.RLock()
	cred, ok := a.creds[token]
	a.mu.RUnlock()

	if !ok {
		return types.TenantContext{}, errors.NewAuthRequired("invalid token")
	}
	if cred.isExpired() {
		return types.TenantContext{}, errors.NewAuthRequired("token expired")
	}
	return cred.tenant, nil
}

// ParseRole maps a raw configuration/token string onto the closed Role enum.
// Unrecognized values fall back to RoleUser; deny-by-default is enforced by
// the dataset allowlist check downstream, not by token parsing.
func ParseRole(raw string) types.Role {
	switch raw {
	case string(types.RoleAdmin):
		return types.RoleAdmin
	case string(types.RoleService):
		return types.RoleService
	default:
		return types.RoleUser
	}
}

type contextKey string

const tenantContextKey contextKey = "semgate_tenant"

// ContextWithTenant attaches a TenantContext so downstream code never needs
// to thread it through function signatures by hand.
func ContextWithTenant(ctx context.Context, tctx types.TenantContext) context.Context {
	return context.WithValue(ctx, tenantContextKey, tctx)
}

// TenantFromContext retrieves the TenantContext attached by ContextWithTenant.
// The bool is false if none was ever attached.
func TenantFromContext(ctx context.Context) (types.TenantContext, bool) {
	tctx, ok := ctx.Value(tenantContextKey).(types.TenantContext)
	return tctx, ok
}
