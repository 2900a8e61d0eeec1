// Package db provides CRUD repository operations for visitation data.
package db

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/PastorRae/visitation-log/internal/models"
	"github.com/PastorRae/visitation-log/internal/uuid"
)

// Repository provides persistence operations for all models.
//
// Statements are prepared on first use and cached for reuse; the store
// sits on the hot path of every sync run.
type Repository struct {
	db *sql.DB

	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewRepository creates a new Repository instance.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db.DB}
}

// PrepareStmt gets or creates a prepared statement from the cache.
func (r *Repository) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}

	return stmt, nil
}

// Close closes all cached prepared statements.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// =====================================================
// VisitRecord operations
// =====================================================

const visitColumns = `id, start_time, end_time, visit_date, pastor_email, pastor_name,
	member_id, member_first, member_last, church_id, visit_type, category,
	comments, address, lat, lng, next_visit_date, followup_actions, priority,
	scripture_refs, prayer_requests, resources, synced, updated_at`

// InsertVisit persists a newly logged visit. The ID is generated when
// absent and the record always starts unsynced.
func (r *Repository) InsertVisit(v *models.VisitRecord) error {
	if v.ID == "" {
		v.ID = models.UUID(uuid.New())
	}
	if v.UpdatedAt == 0 {
		v.UpdatedAt = models.NowMillis()
	}
	v.Synced = false

	query := `
	INSERT INTO visits (` + visitColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		v.ID, v.StartTime, v.EndTime, v.VisitDate, v.PastorEmail, v.PastorName,
		nullIfEmpty(string(v.MemberID)), nullIfEmpty(v.MemberFirst), nullIfEmpty(v.MemberLast),
		nullIfEmpty(v.ChurchID), v.VisitType, v.Category,
		nullIfEmpty(v.Comments), nullIfEmpty(v.Address), v.Lat, v.Lng,
		v.NextVisitDate, nullIfEmpty(v.FollowupActions), nullIfEmpty(string(v.Priority)),
		nullIfEmpty(v.ScriptureRefs), nullIfEmpty(v.PrayerRequests), nullIfEmpty(v.Resources),
		boolToInt(v.Synced), v.UpdatedAt,
	)
	return err
}

// GetVisit retrieves a visit by ID.
func (r *Repository) GetVisit(id string) (*models.VisitRecord, error) {
	stmt, err := r.PrepareStmt(`SELECT ` + visitColumns + ` FROM visits WHERE id = ?`)
	if err != nil {
		return nil, err
	}
	return scanVisit(stmt.QueryRow(id))
}

// GetUnsyncedVisits returns all visits not yet acknowledged by the remote
// system, in insertion order.
func (r *Repository) GetUnsyncedVisits() ([]*models.VisitRecord, error) {
	rows, err := r.db.Query(`SELECT ` + visitColumns + ` FROM visits WHERE synced = 0 ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []*models.VisitRecord
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// UnsyncedVisitCount returns the number of visits pending upload.
func (r *Repository) UnsyncedVisitCount() (int, error) {
	var c int
	err := r.db.QueryRow("SELECT COUNT(*) FROM visits WHERE synced = 0").Scan(&c)
	return c, err
}

// MarkVisitSynced flips the synced flag after a remote acknowledgment.
// updated_at is deliberately left untouched: the flag records that this
// exact version was persisted remotely.
func (r *Repository) MarkVisitSynced(id string) error {
	stmt, err := r.PrepareStmt("UPDATE visits SET synced = 1 WHERE id = ?")
	if err != nil {
		return err
	}
	_, err = stmt.Exec(id)
	return err
}

// TodayVisits returns visits logged today, optionally scoped to a church.
// Visits without a church are always included.
func (r *Repository) TodayVisits(churchID string) ([]*models.VisitRecord, error) {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).UnixMilli()
	end := start + 24*time.Hour.Milliseconds() - 1
	return r.visitsInRange(start, end, churchID)
}

// RecentVisits returns visits from the trailing N days.
func (r *Repository) RecentVisits(days int, churchID string) ([]*models.VisitRecord, error) {
	start := time.Now().AddDate(0, 0, -days).Truncate(24 * time.Hour).UnixMilli()
	return r.visitsInRange(start, time.Now().UnixMilli(), churchID)
}

func (r *Repository) visitsInRange(start, end int64, churchID string) ([]*models.VisitRecord, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE visit_date BETWEEN ? AND ?`
	args := []interface{}{start, end}
	if churchID != "" {
		query += " AND (church_id = ? OR church_id IS NULL)"
		args = append(args, churchID)
	}
	query += " ORDER BY visit_date DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []*models.VisitRecord
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// =====================================================
// Followup operations
// =====================================================

// InsertFollowup persists a follow-up obligation.
func (r *Repository) InsertFollowup(f *models.Followup) error {
	if f.ID == "" {
		f.ID = models.UUID(uuid.New())
	}
	if f.UpdatedAt == 0 {
		f.UpdatedAt = models.NowMillis()
	}
	f.Synced = false

	_, err := r.db.Exec(`
	INSERT INTO followups (id, visit_id, due_date, actions, priority, status, synced, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.VisitID, f.DueDate, f.Actions, f.Priority, f.Status,
		boolToInt(f.Synced), f.UpdatedAt,
	)
	return err
}

// GetUnsyncedFollowups returns all follow-ups pending upload.
func (r *Repository) GetUnsyncedFollowups() ([]*models.Followup, error) {
	rows, err := r.db.Query(`
	SELECT id, visit_id, due_date, actions, priority, status, synced, updated_at
	FROM followups WHERE synced = 0 ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var followups []*models.Followup
	for rows.Next() {
		var f models.Followup
		var synced int
		if err := rows.Scan(&f.ID, &f.VisitID, &f.DueDate, &f.Actions,
			&f.Priority, &f.Status, &synced, &f.UpdatedAt); err != nil {
			return nil, err
		}
		f.Synced = synced != 0
		followups = append(followups, &f)
	}
	return followups, rows.Err()
}

// UnsyncedFollowupCount returns the number of follow-ups pending upload.
func (r *Repository) UnsyncedFollowupCount() (int, error) {
	var c int
	err := r.db.QueryRow("SELECT COUNT(*) FROM followups WHERE synced = 0").Scan(&c)
	return c, err
}

// MarkFollowupSynced flips the synced flag on a follow-up.
func (r *Repository) MarkFollowupSynced(id string) error {
	stmt, err := r.PrepareStmt("UPDATE followups SET synced = 1 WHERE id = ?")
	if err != nil {
		return err
	}
	_, err = stmt.Exec(id)
	return err
}

// CountOverdueFollowups counts open follow-ups past their due date,
// optionally scoped to a church through the parent visit.
func (r *Repository) CountOverdueFollowups(nowMillis int64, churchID string) (int, error) {
	query := "SELECT COUNT(*) FROM followups WHERE due_date < ? AND status != 'done'"
	args := []interface{}{nowMillis}
	if churchID != "" {
		query += " AND visit_id IN (SELECT id FROM visits WHERE church_id = ?)"
		args = append(args, churchID)
	}

	var c int
	err := r.db.QueryRow(query, args...).Scan(&c)
	return c, err
}

// =====================================================
// Reference data (churches, members)
// =====================================================

// ReplaceChurches replaces the full church cache with the downloaded set.
func (r *Repository) ReplaceChurches(churches []*models.Church) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM churches"); err != nil {
		return err
	}
	for _, c := range churches {
		if _, err := tx.Exec("INSERT INTO churches (id, name) VALUES (?, ?)", c.ID, c.Name); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ReplaceMembersForChurch replaces the member cache for a single church.
// Members cached for other churches are unaffected.
func (r *Repository) ReplaceMembersForChurch(churchID string, members []*models.Member) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM members WHERE church_id = ?", churchID); err != nil {
		return err
	}
	for _, m := range members {
		affiliation := m.Affiliation
		if affiliation == "" {
			affiliation = "member"
		}
		status := m.DiscipleshipStatus
		if status == "" {
			status = "active"
		}
		if _, err := tx.Exec(`
		INSERT INTO members (id, first_name, last_name, church_id, affiliation, discipleship_status)
		VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, m.FirstName, m.LastName, churchID, affiliation, status); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetAllChurches returns the cached churches ordered by name.
func (r *Repository) GetAllChurches() ([]*models.Church, error) {
	rows, err := r.db.Query("SELECT id, name FROM churches ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var churches []*models.Church
	for rows.Next() {
		var c models.Church
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		churches = append(churches, &c)
	}
	return churches, rows.Err()
}

// MembersByChurch returns the cached members of one church.
func (r *Repository) MembersByChurch(churchID string) ([]*models.Member, error) {
	rows, err := r.db.Query(`
	SELECT id, first_name, last_name, church_id, affiliation, discipleship_status
	FROM members WHERE church_id = ? ORDER BY last_name, first_name`, churchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMembers(rows)
}

// SearchMembers finds members by partial name match.
func (r *Repository) SearchMembers(query, churchID string) ([]*models.Member, error) {
	sqlQuery := `
	SELECT id, first_name, last_name, church_id, affiliation, discipleship_status
	FROM members WHERE (first_name LIKE ? OR last_name LIKE ?)`
	like := "%" + query + "%"
	args := []interface{}{like, like}
	if churchID != "" {
		sqlQuery += " AND church_id = ?"
		args = append(args, churchID)
	}
	sqlQuery += " ORDER BY last_name, first_name LIMIT 20"

	rows, err := r.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMembers(rows)
}

func collectMembers(rows *sql.Rows) ([]*models.Member, error) {
	var members []*models.Member
	for rows.Next() {
		var m models.Member
		var affiliation, status sql.NullString
		if err := rows.Scan(&m.ID, &m.FirstName, &m.LastName, &m.ChurchID,
			&affiliation, &status); err != nil {
			return nil, err
		}
		m.Affiliation = affiliation.String
		m.DiscipleshipStatus = status.String
		members = append(members, &m)
	}
	return members, rows.Err()
}

// =====================================================
// KPI dashboards
// =====================================================

// GetKpiByChurch retrieves the dashboard for a church, or nil when absent.
func (r *Repository) GetKpiByChurch(churchID string) (*models.KpiDashboard, error) {
	var k models.KpiDashboard
	err := r.db.QueryRow(`
	SELECT id, church_id, community_service_hours, small_groups_per_church,
	       digital_evangelism_reach, updated_at
	FROM kpi_dashboards WHERE church_id = ?`, churchID).Scan(
		&k.ID, &k.ChurchID, &k.CommunityServiceHours, &k.SmallGroupsPerChurch,
		&k.DigitalEvangelismReach, &k.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// InsertKpi creates a dashboard row.
func (r *Repository) InsertKpi(k *models.KpiDashboard) error {
	if k.ID == "" {
		k.ID = models.UUID(uuid.New())
	}
	k.UpdatedAt = models.NowMillis()

	_, err := r.db.Exec(`
	INSERT INTO kpi_dashboards (id, church_id, community_service_hours,
		small_groups_per_church, digital_evangelism_reach, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		k.ID, k.ChurchID, k.CommunityServiceHours, k.SmallGroupsPerChurch,
		k.DigitalEvangelismReach, k.UpdatedAt)
	return err
}

// UpdateKpi updates an existing dashboard row.
func (r *Repository) UpdateKpi(k *models.KpiDashboard) error {
	k.UpdatedAt = models.NowMillis()
	_, err := r.db.Exec(`
	UPDATE kpi_dashboards SET community_service_hours = ?, small_groups_per_church = ?,
		digital_evangelism_reach = ?, updated_at = ?
	WHERE id = ?`,
		k.CommunityServiceHours, k.SmallGroupsPerChurch,
		k.DigitalEvangelismReach, k.UpdatedAt, k.ID)
	return err
}

// =====================================================
// scan helpers
// =====================================================

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVisit(row rowScanner) (*models.VisitRecord, error) {
	var v models.VisitRecord
	var startTime, endTime, nextVisitDate sql.NullInt64
	var memberID, memberFirst, memberLast, churchID sql.NullString
	var comments, address, followupActions, priority sql.NullString
	var scriptureRefs, prayerRequests, resources sql.NullString
	var lat, lng sql.NullFloat64
	var synced int

	err := row.Scan(
		&v.ID, &startTime, &endTime, &v.VisitDate, &v.PastorEmail, &v.PastorName,
		&memberID, &memberFirst, &memberLast, &churchID, &v.VisitType, &v.Category,
		&comments, &address, &lat, &lng, &nextVisitDate, &followupActions, &priority,
		&scriptureRefs, &prayerRequests, &resources, &synced, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if startTime.Valid {
		v.StartTime = &startTime.Int64
	}
	if endTime.Valid {
		v.EndTime = &endTime.Int64
	}
	if nextVisitDate.Valid {
		v.NextVisitDate = &nextVisitDate.Int64
	}
	if lat.Valid {
		v.Lat = &lat.Float64
	}
	if lng.Valid {
		v.Lng = &lng.Float64
	}
	v.MemberID = models.UUID(memberID.String)
	v.MemberFirst = memberFirst.String
	v.MemberLast = memberLast.String
	v.ChurchID = churchID.String
	v.Comments = comments.String
	v.Address = address.String
	v.FollowupActions = followupActions.String
	v.Priority = models.Priority(priority.String)
	v.ScriptureRefs = scriptureRefs.String
	v.PrayerRequests = prayerRequests.String
	v.Resources = resources.String
	v.Synced = synced != 0

	return &v, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
