package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vault-sync/pkg/domain/interfaces"
	"github.com/m-mizutani/vault-sync/pkg/domain/model"
)

// TokenRenewer keeps the token of one Vault connection alive
type TokenRenewer struct {
	auth interfaces.TokenAuth
	host model.VaultHost
	name string
	now  func() time.Time

	mu         sync.Mutex
	loggedInAt time.Time
}

// TokenOption is a functional option for TokenRenewer
type TokenOption func(*TokenRenewer)

// WithTokenClock replaces time.Now
func WithTokenClock(now func() time.Time) TokenOption {
	return func(r *TokenRenewer) {
		r.now = now
	}
}

// NewTokenRenewer creates a renewer for host. name ("src" or "dst") only
// appears in logs.
func NewTokenRenewer(auth interfaces.TokenAuth, host model.VaultHost, name string, opts ...TokenOption) *TokenRenewer {
	r := &TokenRenewer{
		auth: auth,
		host: host,
		name: name,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Authenticate performs the initial AppRole login. Static tokens need nothing.
func (r *TokenRenewer) Authenticate(ctx context.Context) error {
	if !r.host.UsesAppRole() {
		return nil
	}
	return r.login(ctx)
}

func (r *TokenRenewer) login(ctx context.Context) error {
	if err := r.auth.LoginAppRole(ctx, r.host.RoleID, r.host.SecretID); err != nil {
		return goerr.Wrap(err, "failed to authenticate", goerr.V("vault", r.name))
	}

	r.mu.Lock()
	r.loggedInAt = r.now()
	r.mu.Unlock()

	ctxlog.From(ctx).Info("Logged in with AppRole", "vault", r.name)
	return nil
}

// Interval returns how often the token is renewed: half the TTL, at least a second
func (r *TokenRenewer) Interval() time.Duration {
	interval := r.host.TTL() / 2
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

// Renew renews the token once. AppRole tokens are replaced by a new login
// when they get close to their max TTL or when renewal fails.
func (r *TokenRenewer) Renew(ctx context.Context) error {
	logger := ctxlog.From(ctx).With("vault", r.name)

	if r.host.UsesAppRole() {
		r.mu.Lock()
		age := r.now().Sub(r.loggedInAt)
		r.mu.Unlock()

		if age >= r.host.MaxTTL()-r.host.TTL() {
			logger.Info("Token is close to max TTL, logging in again", "age", age)
			return r.login(ctx)
		}
	}

	err := r.auth.RenewSelf(ctx, r.host.TTL())
	if err == nil {
		logger.Debug("Token renewed", "ttl", r.host.TTL())
		return nil
	}

	if !r.host.UsesAppRole() {
		return goerr.Wrap(err, "failed to renew static token", goerr.V("vault", r.name))
	}

	logger.Warn("Failed to renew token, logging in again", "error", err)
	return r.login(ctx)
}

// Loop calls Renew every Interval until ctx is cancelled. Failures are
// logged and retried on the next tick.
func (r *TokenRenewer) Loop(ctx context.Context) error {
	ticker := time.NewTicker(r.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.Renew(ctx); err != nil {
				ctxlog.From(ctx).Error("Token renewal failed", "vault", r.name, "error", err)
			}
		}
	}
}
