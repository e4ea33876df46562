package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/vault-sync/pkg/utils/errutil"
)

// DefaultTimeout bounds a dispatched handler so a hanging side effect (for
// example a Slack webhook) cannot leak a goroutine forever.
const DefaultTimeout = 30 * time.Second

// Dispatch runs handler in a new goroutine. The handler gets a context that
// keeps the logger of ctx but is not cancelled with it, so work started just
// before shutdown still completes. Panics are logged; errors are logged and reported.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	newCtx, cancel := context.WithTimeout(newBackgroundContext(ctx), DefaultTimeout)

	go func() {
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				ctxlog.From(newCtx).Error("panic in async handler",
					"recover", r,
					"stack", string(debug.Stack()))
			}
		}()

		if err := handler(newCtx); err != nil {
			errutil.Handle(newCtx, "error in async handler", err)
		}
	}()
}

// Recover is deferred by long-running goroutines that must not take the
// process down, such as audit stream connections
func Recover(ctx context.Context, name string) {
	if r := recover(); r != nil {
		ctxlog.From(ctx).Error("panic recovered",
			"goroutine", name,
			"recover", r,
			"stack", string(debug.Stack()))
	}
}

func newBackgroundContext(ctx context.Context) context.Context {
	return ctxlog.With(context.Background(), ctxlog.From(ctx))
}
