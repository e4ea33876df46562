package vault

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vault-sync/pkg/domain/interfaces"
	"github.com/m-mizutani/vault-sync/pkg/domain/model"
)

// Client talks to one Vault server. The underlying api.Client is safe for
// concurrent use, including SetToken, so a Client can be shared by the sync
// worker, the full sync and the token renewer.
type Client struct {
	api     *api.Client
	backend model.Backend
}

var _ interfaces.VaultClient = (*Client)(nil)

// New creates a client for host. The static token, if any, is set right away;
// AppRole hosts need LoginAppRole before use.
func New(host model.VaultHost) (*Client, error) {
	cfg := api.DefaultConfig()
	if cfg.Error != nil {
		return nil, goerr.Wrap(cfg.Error, "failed to build Vault client config")
	}
	cfg.Address = host.URL

	c, err := api.NewClient(cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Vault client", goerr.V("url", host.URL))
	}

	// api.NewClient picks up VAULT_TOKEN from the environment; only the
	// configured credentials are allowed here.
	c.ClearToken()
	if host.Token != "" {
		c.SetToken(host.Token)
	}

	return &Client{
		api:     c,
		backend: host.KV(),
	}, nil
}

// ReadSecret returns nil without error if the secret does not exist or its
// latest version is deleted.
func (c *Client) ReadSecret(ctx context.Context, path string) (map[string]any, error) {
	apiPath := c.backend.DataPath(path)
	secret, err := c.api.Logical().ReadWithContext(ctx, apiPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read secret", goerr.V("path", apiPath))
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}

	if c.backend.Version == 1 {
		return secret.Data, nil
	}

	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, nil
	}
	return data, nil
}

func (c *Client) WriteSecret(ctx context.Context, path string, data map[string]any) error {
	apiPath := c.backend.DataPath(path)
	body := data
	if c.backend.Version == 2 {
		body = map[string]any{"data": data}
	}

	if _, err := c.api.Logical().WriteWithContext(ctx, apiPath, body); err != nil {
		return goerr.Wrap(err, "failed to write secret", goerr.V("path", apiPath))
	}
	return nil
}

// DeleteSecret deletes the latest version on KV v2, matching what a plain
// "vault kv delete" does on the source.
func (c *Client) DeleteSecret(ctx context.Context, path string) error {
	apiPath := c.backend.DataPath(path)
	if _, err := c.api.Logical().DeleteWithContext(ctx, apiPath); err != nil {
		return goerr.Wrap(err, "failed to delete secret", goerr.V("path", apiPath))
	}
	return nil
}

func (c *Client) ListSecrets(ctx context.Context, folder string) ([]string, error) {
	apiPath := c.backend.MetadataPath(folder)
	secret, err := c.api.Logical().ListWithContext(ctx, apiPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list secrets", goerr.V("path", apiPath))
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}

	raw, ok := secret.Data["keys"].([]any)
	if !ok {
		return nil, nil
	}

	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		if s, ok := k.(string); ok {
			keys = append(keys, s)
		}
	}
	return keys, nil
}

func (c *Client) EnableAudit(ctx context.Context, path string, opts model.AuditDeviceOptions) error {
	err := c.api.Sys().EnableAuditWithOptionsWithContext(ctx, path, &api.EnableAuditOptions{
		Type:        opts.Type,
		Description: opts.Description,
		Options:     opts.Options,
	})
	if err != nil {
		return goerr.Wrap(err, "failed to enable audit device", goerr.V("path", path))
	}
	return nil
}

func (c *Client) DisableAudit(ctx context.Context, path string) error {
	if err := c.api.Sys().DisableAuditWithContext(ctx, path); err != nil {
		return goerr.Wrap(err, "failed to disable audit device", goerr.V("path", path))
	}
	return nil
}

func (c *Client) ListAudit(ctx context.Context) ([]string, error) {
	devices, err := c.api.Sys().ListAuditWithContext(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list audit devices")
	}

	paths := make([]string, 0, len(devices))
	for p := range devices {
		if !strings.HasSuffix(p, "/") {
			p += "/"
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (c *Client) RenewSelf(ctx context.Context, increment time.Duration) error {
	if _, err := c.api.Auth().Token().RenewSelfWithContext(ctx, int(increment.Seconds())); err != nil {
		return goerr.Wrap(err, "failed to renew token")
	}
	return nil
}

// LoginAppRole logs in with AppRole credentials and switches the client to the new token
func (c *Client) LoginAppRole(ctx context.Context, roleID, secretID string) error {
	secret, err := c.api.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]any{
		"role_id":   roleID,
		"secret_id": secretID,
	})
	if err != nil {
		return goerr.Wrap(err, "failed to login with AppRole", goerr.V("role_id", roleID))
	}
	if secret == nil || secret.Auth == nil || secret.Auth.ClientToken == "" {
		return goerr.New("AppRole login returned no token", goerr.V("role_id", roleID))
	}

	c.api.SetToken(secret.Auth.ClientToken)
	return nil
}
