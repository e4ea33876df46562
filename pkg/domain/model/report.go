package model

import "time"

// SyncStats holds counters of the sync worker since startup
type SyncStats struct {
	Received  uint64    `json:"received"`
	Written   uint64    `json:"written"`
	Unchanged uint64    `json:"unchanged"`
	Deleted   uint64    `json:"deleted"`
	Skipped   uint64    `json:"skipped"`
	Failed    uint64    `json:"failed"`
	LastOpAt  time.Time `json:"last_op_at,omitempty"`
}

// FullSyncReport summarizes one walk of the source Vault
type FullSyncReport struct {
	ID         string         `json:"id"`
	Source     SecretOpSource `json:"source"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Enqueued   int            `json:"enqueued"`
	Excluded   int            `json:"excluded"`
	Error      string         `json:"error,omitempty"`
}

// Failed returns true if the walk did not complete
func (r *FullSyncReport) Failed() bool {
	return r.Error != ""
}

// Duration returns how long the walk took
func (r *FullSyncReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Status is served by the status endpoint
type Status struct {
	DryRun       bool            `json:"dry_run"`
	QueueLength  int             `json:"queue_length"`
	Stats        SyncStats       `json:"stats"`
	LastFullSync *FullSyncReport `json:"last_full_sync,omitempty"`
}

// DiffKind classifies a difference between source and destination
type DiffKind string

const (
	DiffMissing DiffKind = "missing"
	DiffChanged DiffKind = "changed"
	DiffSame    DiffKind = "same"
)

// SecretDiff is one row of the diff command output
type SecretDiff struct {
	Kind    DiffKind
	SrcPath string
	DstPath string
}
