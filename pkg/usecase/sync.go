package usecase

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vault-sync/pkg/domain/interfaces"
	"github.com/m-mizutani/vault-sync/pkg/domain/model"
	"github.com/m-mizutani/vault-sync/pkg/utils/errutil"
)

// SyncResult is the outcome of applying a single SecretOp
type SyncResult string

const (
	ResultWritten   SyncResult = "written"
	ResultUnchanged SyncResult = "unchanged"
	ResultDeleted   SyncResult = "deleted"
	ResultSkipped   SyncResult = "skipped"
	ResultFailed    SyncResult = "failed"
)

// SyncWorker copies secrets from the source to the destination Vault
type SyncWorker struct {
	src       interfaces.SecretStore
	dst       interfaces.SecretStore
	srcPrefix string
	dstPrefix string
	filter    *model.PathFilter
	dryRun    bool
	now       func() time.Time

	mu    sync.Mutex
	stats model.SyncStats
}

// SyncOption is a functional option for SyncWorker
type SyncOption func(*SyncWorker)

// WithPrefixes sets the source and destination prefixes. Both must be
// normalized with model.NormalizePrefix.
func WithPrefixes(src, dst string) SyncOption {
	return func(w *SyncWorker) {
		w.srcPrefix = src
		w.dstPrefix = dst
	}
}

// WithSyncFilter skips secrets matching the filter
func WithSyncFilter(filter *model.PathFilter) SyncOption {
	return func(w *SyncWorker) {
		w.filter = filter
	}
}

// WithDryRun disables every write to the destination
func WithDryRun(dryRun bool) SyncOption {
	return func(w *SyncWorker) {
		w.dryRun = dryRun
	}
}

// NewSyncWorker creates a new SyncWorker
func NewSyncWorker(src, dst interfaces.SecretStore, opts ...SyncOption) *SyncWorker {
	w := &SyncWorker{
		src: src,
		dst: dst,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run applies ops until the channel is closed or ctx is cancelled
func (w *SyncWorker) Run(ctx context.Context, ops <-chan model.SecretOp) error {
	ctxlog.From(ctx).Info("Sync worker started", "dry_run", w.dryRun)

	for {
		select {
		case <-ctx.Done():
			return nil
		case op, ok := <-ops:
			if !ok {
				return nil
			}
			w.Apply(ctx, op)
		}
	}
}

// Apply performs one op and records the result. Errors never stop the
// worker; they are reported and counted as failed.
func (w *SyncWorker) Apply(ctx context.Context, op model.SecretOp) SyncResult {
	result, err := w.apply(ctx, op)
	if err != nil {
		errutil.Handle(ctx, "Failed to sync secret", goerr.Wrap(err, "sync failed",
			goerr.V("kind", op.Kind),
			goerr.V("path", op.Path),
			goerr.V("source", op.Source),
		))
		result = ResultFailed
	}
	w.record(result)
	return result
}

func (w *SyncWorker) apply(ctx context.Context, op model.SecretOp) (SyncResult, error) {
	logger := ctxlog.From(ctx).With("path", op.Path, "kind", op.Kind, "source", op.Source)

	dstPath, ok := model.MapPath(w.srcPrefix, w.dstPrefix, op.Path)
	if !ok {
		logger.Debug("Secret is outside of source prefix", "prefix", w.srcPrefix)
		return ResultSkipped, nil
	}
	if w.filter.Excluded(strings.TrimPrefix(op.Path, w.srcPrefix)) {
		logger.Debug("Secret is excluded")
		return ResultSkipped, nil
	}

	if !op.IsWrite() {
		if w.dryRun {
			logger.Info("Dry run: would delete secret", "dst_path", dstPath)
			return ResultDeleted, nil
		}
		if err := w.dst.DeleteSecret(ctx, dstPath); err != nil {
			return "", err
		}
		logger.Info("Secret deleted", "dst_path", dstPath)
		return ResultDeleted, nil
	}

	srcData, err := w.src.ReadSecret(ctx, op.Path)
	if err != nil {
		return "", err
	}
	if srcData == nil {
		// Deleted after the op was queued; the delete arrives separately.
		logger.Warn("Secret not found on source")
		return ResultSkipped, nil
	}

	dstData, err := w.dst.ReadSecret(ctx, dstPath)
	if err != nil {
		return "", err
	}
	if dstData != nil && reflect.DeepEqual(srcData, dstData) {
		logger.Debug("Secret is up to date", "dst_path", dstPath)
		return ResultUnchanged, nil
	}

	if w.dryRun {
		logger.Info("Dry run: would write secret", "dst_path", dstPath)
		return ResultWritten, nil
	}
	if err := w.dst.WriteSecret(ctx, dstPath, srcData); err != nil {
		return "", err
	}
	logger.Info("Secret written", "dst_path", dstPath)
	return ResultWritten, nil
}

func (w *SyncWorker) record(result SyncResult) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stats.Received++
	w.stats.LastOpAt = w.now()
	switch result {
	case ResultWritten:
		w.stats.Written++
	case ResultUnchanged:
		w.stats.Unchanged++
	case ResultDeleted:
		w.stats.Deleted++
	case ResultSkipped:
		w.stats.Skipped++
	case ResultFailed:
		w.stats.Failed++
	}
}

// Stats returns a snapshot of the counters
func (w *SyncWorker) Stats() model.SyncStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// DryRun reports whether writes are disabled
func (w *SyncWorker) DryRun() bool {
	return w.dryRun
}
