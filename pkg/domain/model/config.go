package model

import (
	"math"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

const (
	DefaultBackend          = "secret"
	DefaultKVVersion        = 2
	DefaultTokenTTL         = 86400   // 1 day
	DefaultTokenMaxTTL      = 2764800 // 32 days
	DefaultFullSyncInterval = 3600
)

// MaxSeconds is the largest seconds value that fits in a time.Duration
const MaxSeconds = uint64(math.MaxInt64 / int64(time.Second))

// Config is the settings file of vault-sync
type Config struct {
	ID               string    `yaml:"id" toml:"id" json:"id"`
	FullSyncInterval uint64    `yaml:"full_sync_interval" toml:"full_sync_interval" json:"full_sync_interval"`
	Bind             string    `yaml:"bind" toml:"bind" json:"bind"`
	ExternalAddress  string    `yaml:"external_address" toml:"external_address" json:"external_address"`
	Exclude          []string  `yaml:"exclude" toml:"exclude" json:"exclude"`
	Src              VaultHost `yaml:"src" toml:"src" json:"src"`
	Dst              VaultHost `yaml:"dst" toml:"dst" json:"dst"`
}

// VaultHost holds connection and KV settings for one side of the sync
type VaultHost struct {
	URL         string `yaml:"url" toml:"url" json:"url"`
	Prefix      string `yaml:"prefix" toml:"prefix" json:"prefix"`
	Backend     string `yaml:"backend" toml:"backend" json:"backend"`
	Version     int    `yaml:"version" toml:"version" json:"version"`
	Token       string `yaml:"token" toml:"token" json:"token" masq:"secret"`
	RoleID      string `yaml:"role_id" toml:"role_id" json:"role_id"`
	SecretID    string `yaml:"secret_id" toml:"secret_id" json:"secret_id" masq:"secret"`
	TokenTTL    uint64 `yaml:"token_ttl" toml:"token_ttl" json:"token_ttl"`
	TokenMaxTTL uint64 `yaml:"token_max_ttl" toml:"token_max_ttl" json:"token_max_ttl"`
}

// ApplyDefaults fills unset fields and normalizes prefixes
func (c *Config) ApplyDefaults() {
	if c.FullSyncInterval == 0 {
		c.FullSyncInterval = DefaultFullSyncInterval
	}
	c.Src.applyDefaults()
	c.Dst.applyDefaults()
}

func (h *VaultHost) applyDefaults() {
	if h.Backend == "" {
		h.Backend = DefaultBackend
	}
	if h.Version == 0 {
		h.Version = DefaultKVVersion
	}
	if h.TokenTTL == 0 {
		h.TokenTTL = DefaultTokenTTL
	}
	if h.TokenMaxTTL == 0 {
		h.TokenMaxTTL = DefaultTokenMaxTTL
	}
	h.Prefix = NormalizePrefix(h.Prefix)
}

// Validate checks that the configuration is complete
func (c *Config) Validate() error {
	if c.ID == "" {
		return goerr.New("id is required")
	}
	if c.Bind == "" {
		return goerr.New("bind is required")
	}
	if c.ExternalAddress == "" {
		return goerr.New("external_address is required")
	}
	if c.FullSyncInterval == 0 {
		return goerr.New("full_sync_interval must be positive")
	}
	if c.FullSyncInterval > MaxSeconds {
		return goerr.New("full_sync_interval is too large",
			goerr.V("full_sync_interval", c.FullSyncInterval),
			goerr.V("max", MaxSeconds))
	}
	if err := c.Src.validate(); err != nil {
		return goerr.Wrap(err, "invalid src")
	}
	if err := c.Dst.validate(); err != nil {
		return goerr.Wrap(err, "invalid dst")
	}
	if _, err := NewPathFilter(c.Exclude); err != nil {
		return err
	}
	return nil
}

func (h *VaultHost) validate() error {
	if h.URL == "" {
		return goerr.New("url is required")
	}
	if h.Version != 1 && h.Version != 2 {
		return goerr.New("unsupported KV version", goerr.V("version", h.Version))
	}
	if h.Token == "" && !h.UsesAppRole() {
		return goerr.New("either token or role_id and secret_id are required")
	}
	if h.TokenMaxTTL > MaxSeconds {
		return goerr.New("token_max_ttl is too large",
			goerr.V("token_max_ttl", h.TokenMaxTTL),
			goerr.V("max", MaxSeconds))
	}
	if h.TokenTTL > h.TokenMaxTTL {
		return goerr.New("token_ttl exceeds token_max_ttl",
			goerr.V("token_ttl", h.TokenTTL),
			goerr.V("token_max_ttl", h.TokenMaxTTL))
	}
	return nil
}

// UsesAppRole returns true if the host authenticates with AppRole
func (h *VaultHost) UsesAppRole() bool {
	return h.RoleID != "" && h.SecretID != ""
}

// KV returns the backend description of the host
func (h *VaultHost) KV() Backend {
	return Backend{Mount: h.Backend, Version: h.Version}
}

// TTL returns the token renewal increment
func (h *VaultHost) TTL() time.Duration {
	return time.Duration(h.TokenTTL) * time.Second
}

// MaxTTL returns the maximum lifetime of a token
func (h *VaultHost) MaxTTL() time.Duration {
	return time.Duration(h.TokenMaxTTL) * time.Second
}

// Interval returns the full sync interval
func (c *Config) Interval() time.Duration {
	return time.Duration(c.FullSyncInterval) * time.Second
}
