// Package db provides the store contracts consumed by the sync engine.
package db

import "github.com/PastorRae/visitation-log/internal/models"

// SyncStore is the slice of the repository the sync orchestrator needs.
// It never constructs or deletes domain records; it only reads pending
// work, flips synced flags, and refreshes the reference caches.
type SyncStore interface {
	GetUnsyncedVisits() ([]*models.VisitRecord, error)
	GetUnsyncedFollowups() ([]*models.Followup, error)
	MarkVisitSynced(id string) error
	MarkFollowupSynced(id string) error
	ReplaceChurches(churches []*models.Church) error
	ReplaceMembersForChurch(churchID string, members []*models.Member) error
	GetAllChurches() ([]*models.Church, error)
	GetLastSyncTimestamp() (int64, error)
	SetLastSyncTimestamp(ms int64) error
}

// KVStore is the durable key-value area used by the offline queue.
type KVStore interface {
	GetValue(key string) (string, bool, error)
	SetValue(key, value string) error
}

// Compile-time checks that Repository satisfies the store contracts.
var (
	_ SyncStore = (*Repository)(nil)
	_ KVStore   = (*Repository)(nil)
)
