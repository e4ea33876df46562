package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vault-sync/pkg/domain/model"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Sync holds the location of the settings file and run mode flags
type Sync struct {
	File   string
	DryRun bool
	Once   bool
}

// Flags returns CLI flags for sync configuration
func (c *Sync) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Settings file (YAML, or TOML with .toml extension)",
			Value:       "./vault-sync.yaml",
			Destination: &c.File,
			Sources:     cli.EnvVars("VAULT_SYNC_CONFIG"),
		},
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Do not make any changes to the destination Vault",
			Destination: &c.DryRun,
			Sources:     cli.EnvVars("VAULT_SYNC_DRY_RUN"),
		},
		&cli.BoolFlag{
			Name:        "once",
			Usage:       "Run a single full sync and exit, without the audit device",
			Destination: &c.Once,
			Sources:     cli.EnvVars("VAULT_SYNC_ONCE"),
		},
	}
}

// Load reads, completes and validates the settings file
func (c *Sync) Load() (*model.Config, error) {
	return LoadSettings(c.File, os.LookupEnv)
}

// LoadSettings reads the settings file at path. Credentials may be supplied
// by lookupEnv instead of the file, e.g. VAULT_SYNC_SRC_TOKEN; the
// environment wins over the file.
func LoadSettings(path string, lookupEnv func(string) (string, bool)) (*model.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read settings file", goerr.V("path", path))
	}

	var cfg model.Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(raw, &cfg); err != nil {
			return nil, goerr.Wrap(err, "failed to parse TOML settings", goerr.V("path", path))
		}
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, goerr.Wrap(err, "failed to parse YAML settings", goerr.V("path", path))
		}
	}

	applyEnv(&cfg.Src, "VAULT_SYNC_SRC_", lookupEnv)
	applyEnv(&cfg.Dst, "VAULT_SYNC_DST_", lookupEnv)

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid settings", goerr.V("path", path))
	}
	return &cfg, nil
}

func applyEnv(h *model.VaultHost, prefix string, lookupEnv func(string) (string, bool)) {
	fields := map[string]*string{
		"URL":       &h.URL,
		"TOKEN":     &h.Token,
		"ROLE_ID":   &h.RoleID,
		"SECRET_ID": &h.SecretID,
	}
	for name, dst := range fields {
		if v, ok := lookupEnv(prefix + name); ok && v != "" {
			*dst = v
		}
	}
}
