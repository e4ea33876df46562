package interfaces

import (
	"context"

	"github.com/m-mizutani/vault-sync/pkg/domain/model"
)

// SyncStatusUseCase exposes the sync state to the status server
type SyncStatusUseCase interface {
	// Status returns the current counters and the last full sync report
	Status(ctx context.Context) *model.Status

	// TriggerFullSync requests an extra full sync. It returns false if a
	// request is already pending.
	TriggerFullSync(ctx context.Context) bool
}

// Notifier sends a summary of a failed full sync to humans
type Notifier interface {
	NotifyFullSync(ctx context.Context, report *model.FullSyncReport) error
}
