package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/vault-sync/pkg/domain/interfaces"
	"github.com/m-mizutani/vault-sync/pkg/domain/model"
	"github.com/m-mizutani/vault-sync/pkg/utils/async"
	"github.com/m-mizutani/vault-sync/pkg/utils/errutil"
)

// FullSyncer walks the source Vault and enqueues an update for every secret
type FullSyncer struct {
	src      interfaces.SecretStore
	queue    chan<- model.SecretOp
	prefix   string
	filter   *model.PathFilter
	notifier interfaces.Notifier
	now      func() time.Time

	trigger chan struct{}
	runMu   sync.Mutex // one walk at a time

	mu   sync.RWMutex
	last *model.FullSyncReport
}

// FullSyncOption is a functional option for FullSyncer
type FullSyncOption func(*FullSyncer)

// WithFullSyncFilter skips secrets matching the filter
func WithFullSyncFilter(filter *model.PathFilter) FullSyncOption {
	return func(s *FullSyncer) {
		s.filter = filter
	}
}

// WithNotifier sends a report of every failed walk
func WithNotifier(n interfaces.Notifier) FullSyncOption {
	return func(s *FullSyncer) {
		s.notifier = n
	}
}

// WithFullSyncClock replaces time.Now
func WithFullSyncClock(now func() time.Time) FullSyncOption {
	return func(s *FullSyncer) {
		s.now = now
	}
}

// NewFullSyncer creates a FullSyncer that walks src under prefix
func NewFullSyncer(src interfaces.SecretStore, queue chan<- model.SecretOp, prefix string, opts ...FullSyncOption) *FullSyncer {
	s := &FullSyncer{
		src:     src,
		queue:   queue,
		prefix:  prefix,
		now:     time.Now,
		trigger: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one scheduled full sync. It blocks while the queue is full.
func (s *FullSyncer) Run(ctx context.Context) *model.FullSyncReport {
	return s.run(ctx, model.SourceFullSync)
}

// run walks the source and tags every op with source
func (s *FullSyncer) run(ctx context.Context, source model.SecretOpSource) *model.FullSyncReport {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	report := &model.FullSyncReport{
		ID:        uuid.NewString(),
		Source:    source,
		StartedAt: s.now(),
	}
	logger := ctxlog.From(ctx).With("full_sync_id", report.ID)
	logger.Info("Full sync started", "prefix", s.prefix, "source", source)

	err := walkSecrets(ctx, s.src, s.prefix, func(path string) error {
		if s.filter.Excluded(strings.TrimPrefix(path, s.prefix)) {
			report.Excluded++
			return nil
		}

		op := model.SecretOp{Kind: model.OpUpdate, Path: path, Source: source}
		select {
		case s.queue <- op:
			report.Enqueued++
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	report.FinishedAt = s.now()
	if err != nil {
		report.Error = err.Error()
		errutil.Handle(ctx, "Full sync failed", err)
	}

	logger.Info("Full sync finished",
		"enqueued", report.Enqueued,
		"excluded", report.Excluded,
		"duration", report.Duration(),
		"failed", report.Failed(),
	)

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	if report.Failed() && s.notifier != nil && ctx.Err() == nil {
		async.Dispatch(ctx, func(ctx context.Context) error {
			return s.notifier.NotifyFullSync(ctx, report)
		})
	}

	return report
}

// Loop runs a full sync immediately, then every interval and on every
// Trigger, until ctx is cancelled. Ops of triggered runs are tagged manual.
func (s *FullSyncer) Loop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	source := model.SourceFullSync
	for {
		s.run(ctx, source)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			source = model.SourceFullSync
		case <-s.trigger:
			ctxlog.From(ctx).Info("Full sync requested")
			source = model.SourceManual
		}
	}
}

// Trigger requests an extra full sync from Loop. Requests made while one is
// already pending are coalesced and false is returned.
func (s *FullSyncer) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// LastReport returns the report of the most recent walk, or nil
func (s *FullSyncer) LastReport() *model.FullSyncReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	r := *s.last
	return &r
}
