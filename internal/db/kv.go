// Package db provides the durable key-value area used by sync state.
package db

import (
	"database/sql"
	"strconv"
)

// Fixed keys in the kv area.
const (
	KeyLastSync     = "last_sync"
	KeyOfflineQueue = "offline_queue"
)

// GetValue reads a value from the kv area. The second return reports
// whether the key exists.
func (r *Repository) GetValue(key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetValue writes a value to the kv area, replacing any existing entry.
func (r *Repository) SetValue(key, value string) error {
	_, err := r.db.Exec(`
	INSERT INTO kv (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// DeleteValue removes a key from the kv area.
func (r *Repository) DeleteValue(key string) error {
	_, err := r.db.Exec("DELETE FROM kv WHERE key = ?", key)
	return err
}

// GetLastSyncTimestamp returns the last successful sync time in
// milliseconds since epoch, or 0 when no sync has completed yet.
func (r *Repository) GetLastSyncTimestamp() (int64, error) {
	value, ok, err := r.GetValue(KeyLastSync)
	if err != nil || !ok {
		return 0, err
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		// A corrupt value is treated as never-synced rather than a fatal
		// error; the next successful run rewrites it.
		return 0, nil
	}
	return ms, nil
}

// SetLastSyncTimestamp records the time of a successful sync.
func (r *Repository) SetLastSyncTimestamp(ms int64) error {
	return r.SetValue(KeyLastSync, strconv.FormatInt(ms, 10))
}
