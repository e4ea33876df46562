package interfaces

import (
	"context"
	"time"

	"github.com/m-mizutani/vault-sync/pkg/domain/model"
)

// SecretStore reads and writes KV secrets by path relative to the backend mount
type SecretStore interface {
	// ReadSecret returns the secret data, or nil if the secret does not exist
	ReadSecret(ctx context.Context, path string) (map[string]any, error)

	// WriteSecret replaces the secret data
	WriteSecret(ctx context.Context, path string, data map[string]any) error

	// DeleteSecret deletes the secret
	DeleteSecret(ctx context.Context, path string) error

	// ListSecrets returns keys under folder. Keys that end with "/" are folders.
	ListSecrets(ctx context.Context, folder string) ([]string, error)
}

// AuditDeviceManager manages audit devices of a Vault server
type AuditDeviceManager interface {
	EnableAudit(ctx context.Context, path string, opts model.AuditDeviceOptions) error
	DisableAudit(ctx context.Context, path string) error

	// ListAudit returns enabled audit device paths, each with a trailing "/"
	ListAudit(ctx context.Context) ([]string, error)
}

// TokenAuth keeps the client token of a Vault connection valid
type TokenAuth interface {
	RenewSelf(ctx context.Context, increment time.Duration) error
	LoginAppRole(ctx context.Context, roleID, secretID string) error
}

// VaultClient is everything vault-sync needs from one Vault server
type VaultClient interface {
	SecretStore
	AuditDeviceManager
	TokenAuth
}
