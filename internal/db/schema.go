// Package db provides the durable local store for visitation records.
package db

// initSchema creates all tables if they do not exist and seeds the
// default church used before the first reference-data download.
func (db *DB) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS churches (
		id TEXT PRIMARY KEY NOT NULL,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		church_id TEXT,
		affiliation TEXT,
		discipleship_status TEXT
	);

	CREATE TABLE IF NOT EXISTS visits (
		id TEXT PRIMARY KEY NOT NULL,
		start_time INTEGER,
		end_time INTEGER,
		visit_date INTEGER NOT NULL,
		pastor_email TEXT NOT NULL,
		pastor_name TEXT NOT NULL,
		member_id TEXT,
		member_first TEXT,
		member_last TEXT,
		church_id TEXT,
		visit_type TEXT NOT NULL,
		category TEXT NOT NULL,
		comments TEXT,
		address TEXT,
		lat REAL,
		lng REAL,
		next_visit_date INTEGER,
		followup_actions TEXT,
		priority TEXT,
		scripture_refs TEXT,
		prayer_requests TEXT,
		resources TEXT,
		synced INTEGER DEFAULT 0,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS followups (
		id TEXT PRIMARY KEY NOT NULL,
		visit_id TEXT NOT NULL,
		due_date INTEGER NOT NULL,
		actions TEXT NOT NULL,
		priority TEXT NOT NULL,
		status TEXT NOT NULL,
		synced INTEGER DEFAULT 0,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS kpi_dashboards (
		id TEXT PRIMARY KEY NOT NULL,
		church_id TEXT NOT NULL,
		community_service_hours INTEGER NOT NULL,
		small_groups_per_church INTEGER NOT NULL,
		digital_evangelism_reach INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY NOT NULL,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_visits_synced ON visits(synced);
	CREATE INDEX IF NOT EXISTS idx_visits_visit_date ON visits(visit_date);
	CREATE INDEX IF NOT EXISTS idx_followups_synced ON followups(synced);
	CREATE INDEX IF NOT EXISTS idx_members_church ON members(church_id);
	`

	if _, err := db.Exec(schema); err != nil {
		return err
	}

	// Seed a default church so the app is usable before the first sync.
	_, err := db.Exec(
		"INSERT OR IGNORE INTO churches (id, name) VALUES (?, ?)",
		"slc-bb-main",
		"South Leeward Conference - Barbados",
	)
	return err
}
