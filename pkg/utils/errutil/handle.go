package errutil

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Handle logs err and reports it to Sentry if a Sentry client is configured.
// Values attached with goerr.V are sent as the "goerr" context of the event.
func Handle(ctx context.Context, msg string, err error) {
	if err == nil {
		return
	}

	attrs := []any{"error", err}
	values := map[string]any{}
	if ge := goerr.Unwrap(err); ge != nil {
		values = ge.Values()
		for k, v := range values {
			attrs = append(attrs, k, v)
		}
	}
	ctxlog.From(ctx).Error(msg, attrs...)

	hub := sentry.CurrentHub().Clone()
	if hub.Client() == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("message", msg)
		if len(values) > 0 {
			scope.SetContext("goerr", sentry.Context(values))
		}
		hub.CaptureException(err)
	})
}
