package slack

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vault-sync/pkg/domain/interfaces"
	"github.com/m-mizutani/vault-sync/pkg/domain/model"
	"github.com/slack-go/slack"
)

type notifier struct {
	webhookURL string
	post       func(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

// Option is a functional option for the notifier
type Option func(*notifier)

// WithPoster replaces the webhook call, mainly for tests
func WithPoster(post func(ctx context.Context, url string, msg *slack.WebhookMessage) error) Option {
	return func(n *notifier) {
		n.post = post
	}
}

// NewNotifier creates a Notifier posting to an incoming webhook
func NewNotifier(webhookURL string, opts ...Option) interfaces.Notifier {
	n := &notifier{
		webhookURL: webhookURL,
		post:       slack.PostWebhookContext,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NotifyFullSync posts a short summary of a failed report
func (n *notifier) NotifyFullSync(ctx context.Context, report *model.FullSyncReport) error {
	msg := &slack.WebhookMessage{
		Text: buildMessage(report),
	}

	if err := n.post(ctx, n.webhookURL, msg); err != nil {
		return goerr.Wrap(err, "failed to post Slack webhook", goerr.V("report_id", report.ID))
	}
	return nil
}

func buildMessage(report *model.FullSyncReport) string {
	return fmt.Sprintf(":warning: vault-sync %s sync `%s` failed after %d secrets: %s",
		report.Source, report.ID, report.Enqueued, report.Error)
}
