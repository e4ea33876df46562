package usecase

import (
	"context"

	"github.com/m-mizutani/vault-sync/pkg/domain/interfaces"
	"github.com/m-mizutani/vault-sync/pkg/domain/model"
)

type syncStatus struct {
	worker *SyncWorker
	syncer *FullSyncer
	queue  chan model.SecretOp
}

// NewSyncStatus exposes worker and syncer state to the status server.
// syncer may be nil when full sync is not running.
func NewSyncStatus(worker *SyncWorker, syncer *FullSyncer, queue chan model.SecretOp) interfaces.SyncStatusUseCase {
	return &syncStatus{
		worker: worker,
		syncer: syncer,
		queue:  queue,
	}
}

func (s *syncStatus) Status(ctx context.Context) *model.Status {
	status := &model.Status{
		DryRun:      s.worker.DryRun(),
		QueueLength: len(s.queue),
		Stats:       s.worker.Stats(),
	}
	if s.syncer != nil {
		status.LastFullSync = s.syncer.LastReport()
	}
	return status
}

func (s *syncStatus) TriggerFullSync(ctx context.Context) bool {
	if s.syncer == nil {
		return false
	}
	return s.syncer.Trigger()
}
