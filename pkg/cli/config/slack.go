package config

import (
	"github.com/m-mizutani/vault-sync/pkg/domain/interfaces"
	slackinfra "github.com/m-mizutani/vault-sync/pkg/infra/slack"
	"github.com/urfave/cli/v3"
)

// Slack holds notification configuration
type Slack struct {
	WebhookURL string
}

// Flags returns CLI flags for Slack configuration
func (c *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-webhook-url",
			Usage:       "Slack incoming webhook URL for full sync failures",
			Destination: &c.WebhookURL,
			Sources:     cli.EnvVars("VAULT_SYNC_SLACK_WEBHOOK_URL"),
		},
	}
}

// Notifier returns nil when no webhook URL is configured
func (c *Slack) Notifier() interfaces.Notifier {
	if c.WebhookURL == "" {
		return nil
	}
	return slackinfra.NewNotifier(c.WebhookURL)
}
