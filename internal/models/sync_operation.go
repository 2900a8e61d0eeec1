// Package models provides data model definitions for the Visitation Log core.
package models

import "encoding/json"

// OperationKind tags the variant of a deferred sync operation.
type OperationKind string

const (
	OperationVisitSync      OperationKind = "visit_sync"
	OperationMemberDownload OperationKind = "member_download"
	OperationChurchDownload OperationKind = "church_download"
)

// SyncOperation is a unit of deferred work held in the offline queue.
// Retries only grows; once it would exceed MaxSyncRetries the operation
// is dropped permanently.
type SyncOperation struct {
	ID         UUID            `db:"id" json:"id"`
	Kind       OperationKind   `db:"kind" json:"kind"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	EnqueuedAt int64           `db:"enqueued_at" json:"enqueued_at"`
	Retries    int             `db:"retries" json:"retries"`
}

// MaxSyncRetries is the bound on per-operation retry attempts.
const MaxSyncRetries = 3
