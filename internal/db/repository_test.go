// Package db provides unit tests for the repository.
package db

import (
	"testing"

	"github.com/PastorRae/visitation-log/internal/models"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	database, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := NewRepository(database)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleVisit() *models.VisitRecord {
	return &models.VisitRecord{
		VisitDate:   models.NowMillis(),
		PastorEmail: "pastor@example.org",
		PastorName:  "Pastor Rae",
		MemberFirst: "Jane",
		MemberLast:  "Doe",
		VisitType:   models.VisitTypeHome,
		Category:    models.CategoryPastoral,
		Comments:    "Prayer and encouragement",
	}
}

// TestInsertVisitDefaults verifies ID assignment and the unsynced default.
func TestInsertVisitDefaults(t *testing.T) {
	repo := newTestRepo(t)

	v := sampleVisit()
	v.Synced = true // must be overridden: new records always start unsynced

	if err := repo.InsertVisit(v); err != nil {
		t.Fatalf("InsertVisit() error = %v", err)
	}

	if v.ID == "" {
		t.Error("InsertVisit() should assign an ID")
	}
	if v.UpdatedAt == 0 {
		t.Error("InsertVisit() should assign UpdatedAt")
	}

	got, err := repo.GetVisit(string(v.ID))
	if err != nil {
		t.Fatalf("GetVisit() error = %v", err)
	}
	if got.Synced {
		t.Error("new visit should be unsynced")
	}
	if got.MemberFirst != "Jane" || got.MemberLast != "Doe" {
		t.Errorf("subject = %q %q", got.MemberFirst, got.MemberLast)
	}
}

// TestVisitRoundTrip verifies optional fields survive persistence.
func TestVisitRoundTrip(t *testing.T) {
	repo := newTestRepo(t)

	lat, lng := 13.1939, -59.5432
	start := models.NowMillis() - 3600000
	v := sampleVisit()
	v.MemberFirst, v.MemberLast = "", ""
	v.MemberID = "member-1"
	v.ChurchID = "slc-bb-main"
	v.Lat, v.Lng = &lat, &lng
	v.StartTime = &start
	v.Priority = models.PriorityImportant
	v.ScriptureRefs = "Ps 23"

	if err := repo.InsertVisit(v); err != nil {
		t.Fatalf("InsertVisit() error = %v", err)
	}

	got, err := repo.GetVisit(string(v.ID))
	if err != nil {
		t.Fatalf("GetVisit() error = %v", err)
	}

	if !got.HasMember() || got.MemberID != "member-1" {
		t.Errorf("MemberID = %q", got.MemberID)
	}
	if got.Lat == nil || *got.Lat != lat {
		t.Errorf("Lat = %v", got.Lat)
	}
	if got.StartTime == nil || *got.StartTime != start {
		t.Errorf("StartTime = %v", got.StartTime)
	}
	if got.Priority != models.PriorityImportant {
		t.Errorf("Priority = %q", got.Priority)
	}
	if got.ScriptureRefs != "Ps 23" {
		t.Errorf("ScriptureRefs = %q", got.ScriptureRefs)
	}
}

// TestMarkVisitSynced verifies the flag flip leaves updated_at untouched.
func TestMarkVisitSynced(t *testing.T) {
	repo := newTestRepo(t)

	v := sampleVisit()
	if err := repo.InsertVisit(v); err != nil {
		t.Fatalf("InsertVisit() error = %v", err)
	}
	before := v.UpdatedAt

	if err := repo.MarkVisitSynced(string(v.ID)); err != nil {
		t.Fatalf("MarkVisitSynced() error = %v", err)
	}

	got, err := repo.GetVisit(string(v.ID))
	if err != nil {
		t.Fatalf("GetVisit() error = %v", err)
	}
	if !got.Synced {
		t.Error("visit should be synced")
	}
	if got.UpdatedAt != before {
		t.Errorf("updated_at changed: %d -> %d", before, got.UpdatedAt)
	}

	unsynced, err := repo.GetUnsyncedVisits()
	if err != nil {
		t.Fatalf("GetUnsyncedVisits() error = %v", err)
	}
	if len(unsynced) != 0 {
		t.Errorf("unsynced count = %d, want 0", len(unsynced))
	}
}

// TestGetUnsyncedVisitsOrder verifies insertion order is preserved.
func TestGetUnsyncedVisitsOrder(t *testing.T) {
	repo := newTestRepo(t)

	var ids []models.UUID
	for i := 0; i < 3; i++ {
		v := sampleVisit()
		if err := repo.InsertVisit(v); err != nil {
			t.Fatalf("InsertVisit() error = %v", err)
		}
		ids = append(ids, v.ID)
	}

	unsynced, err := repo.GetUnsyncedVisits()
	if err != nil {
		t.Fatalf("GetUnsyncedVisits() error = %v", err)
	}
	if len(unsynced) != 3 {
		t.Fatalf("unsynced count = %d, want 3", len(unsynced))
	}
	for i, v := range unsynced {
		if v.ID != ids[i] {
			t.Errorf("position %d: id = %s, want %s", i, v.ID, ids[i])
		}
	}
}

// TestFollowupSyncLifecycle covers insert, pending query and flag flip.
func TestFollowupSyncLifecycle(t *testing.T) {
	repo := newTestRepo(t)

	f := &models.Followup{
		VisitID:  "visit-1",
		DueDate:  models.NowMillis() + 86400000,
		Actions:  "Call to check in",
		Priority: models.PriorityStandard,
		Status:   models.FollowupOpen,
	}
	if err := repo.InsertFollowup(f); err != nil {
		t.Fatalf("InsertFollowup() error = %v", err)
	}

	pending, err := repo.GetUnsyncedFollowups()
	if err != nil {
		t.Fatalf("GetUnsyncedFollowups() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}

	if err := repo.MarkFollowupSynced(string(f.ID)); err != nil {
		t.Fatalf("MarkFollowupSynced() error = %v", err)
	}

	count, err := repo.UnsyncedFollowupCount()
	if err != nil {
		t.Fatalf("UnsyncedFollowupCount() error = %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

// TestCountOverdueFollowups verifies due-date and status filtering.
func TestCountOverdueFollowups(t *testing.T) {
	repo := newTestRepo(t)
	now := models.NowMillis()

	overdue := &models.Followup{VisitID: "v1", DueDate: now - 1000,
		Actions: "a", Priority: models.PriorityStandard, Status: models.FollowupOpen}
	done := &models.Followup{VisitID: "v1", DueDate: now - 1000,
		Actions: "b", Priority: models.PriorityStandard, Status: models.FollowupDone}
	future := &models.Followup{VisitID: "v1", DueDate: now + 1000,
		Actions: "c", Priority: models.PriorityStandard, Status: models.FollowupOpen}

	for _, f := range []*models.Followup{overdue, done, future} {
		if err := repo.InsertFollowup(f); err != nil {
			t.Fatalf("InsertFollowup() error = %v", err)
		}
	}

	count, err := repo.CountOverdueFollowups(now, "")
	if err != nil {
		t.Fatalf("CountOverdueFollowups() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

// TestReplaceChurches verifies the cache refresh is replace-not-merge.
func TestReplaceChurches(t *testing.T) {
	repo := newTestRepo(t)

	first := []*models.Church{
		{ID: "c1", Name: "Bridgetown"},
		{ID: "c2", Name: "Speightstown"},
	}
	if err := repo.ReplaceChurches(first); err != nil {
		t.Fatalf("ReplaceChurches() error = %v", err)
	}

	second := []*models.Church{{ID: "c3", Name: "Oistins"}}
	if err := repo.ReplaceChurches(second); err != nil {
		t.Fatalf("ReplaceChurches() error = %v", err)
	}

	churches, err := repo.GetAllChurches()
	if err != nil {
		t.Fatalf("GetAllChurches() error = %v", err)
	}
	if len(churches) != 1 || churches[0].ID != "c3" {
		t.Errorf("churches = %+v, want only c3", churches)
	}
}

// TestReplaceMembersScopedToChurch verifies a replace of one church's
// member cache does not affect other churches.
func TestReplaceMembersScopedToChurch(t *testing.T) {
	repo := newTestRepo(t)

	if err := repo.ReplaceMembersForChurch("c1", []*models.Member{
		{ID: "m1", FirstName: "Ann", LastName: "Best"},
	}); err != nil {
		t.Fatalf("ReplaceMembersForChurch(c1) error = %v", err)
	}
	if err := repo.ReplaceMembersForChurch("c2", []*models.Member{
		{ID: "m2", FirstName: "Ben", LastName: "Clarke"},
	}); err != nil {
		t.Fatalf("ReplaceMembersForChurch(c2) error = %v", err)
	}

	// Refresh c1 with a new roster; c2 must be untouched.
	if err := repo.ReplaceMembersForChurch("c1", []*models.Member{
		{ID: "m3", FirstName: "Cora", LastName: "Dash"},
	}); err != nil {
		t.Fatalf("ReplaceMembersForChurch(c1 again) error = %v", err)
	}

	c1Members, err := repo.MembersByChurch("c1")
	if err != nil {
		t.Fatalf("MembersByChurch(c1) error = %v", err)
	}
	if len(c1Members) != 1 || c1Members[0].ID != "m3" {
		t.Errorf("c1 members = %+v, want only m3", c1Members)
	}

	c2Members, err := repo.MembersByChurch("c2")
	if err != nil {
		t.Fatalf("MembersByChurch(c2) error = %v", err)
	}
	if len(c2Members) != 1 || c2Members[0].ID != "m2" {
		t.Errorf("c2 members = %+v, want only m2", c2Members)
	}
}

// TestSearchMembers verifies partial name matching.
func TestSearchMembers(t *testing.T) {
	repo := newTestRepo(t)

	if err := repo.ReplaceMembersForChurch("c1", []*models.Member{
		{ID: "m1", FirstName: "Margaret", LastName: "Holder"},
		{ID: "m2", FirstName: "Paul", LastName: "Marshall"},
		{ID: "m3", FirstName: "Ruth", LastName: "Springer"},
	}); err != nil {
		t.Fatalf("ReplaceMembersForChurch() error = %v", err)
	}

	got, err := repo.SearchMembers("mar", "c1")
	if err != nil {
		t.Fatalf("SearchMembers() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("results = %d, want 2 (Margaret, Marshall)", len(got))
	}
}

// TestKVRoundTrip verifies the durable key-value area.
func TestKVRoundTrip(t *testing.T) {
	repo := newTestRepo(t)

	_, ok, err := repo.GetValue("missing")
	if err != nil {
		t.Fatalf("GetValue() error = %v", err)
	}
	if ok {
		t.Error("missing key should report !ok")
	}

	if err := repo.SetValue("k", "v1"); err != nil {
		t.Fatalf("SetValue() error = %v", err)
	}
	if err := repo.SetValue("k", "v2"); err != nil {
		t.Fatalf("SetValue() overwrite error = %v", err)
	}

	value, ok, err := repo.GetValue("k")
	if err != nil || !ok {
		t.Fatalf("GetValue() = %v, %v, %v", value, ok, err)
	}
	if value != "v2" {
		t.Errorf("value = %q, want v2", value)
	}
}

// TestLastSyncTimestamp verifies the last_sync kv entry.
func TestLastSyncTimestamp(t *testing.T) {
	repo := newTestRepo(t)

	ts, err := repo.GetLastSyncTimestamp()
	if err != nil {
		t.Fatalf("GetLastSyncTimestamp() error = %v", err)
	}
	if ts != 0 {
		t.Errorf("initial last sync = %d, want 0", ts)
	}

	want := models.NowMillis()
	if err := repo.SetLastSyncTimestamp(want); err != nil {
		t.Fatalf("SetLastSyncTimestamp() error = %v", err)
	}

	ts, err = repo.GetLastSyncTimestamp()
	if err != nil {
		t.Fatalf("GetLastSyncTimestamp() error = %v", err)
	}
	if ts != want {
		t.Errorf("last sync = %d, want %d", ts, want)
	}
}

// TestKpiInsertUpdate verifies dashboard persistence.
func TestKpiInsertUpdate(t *testing.T) {
	repo := newTestRepo(t)

	missing, err := repo.GetKpiByChurch("c1")
	if err != nil {
		t.Fatalf("GetKpiByChurch() error = %v", err)
	}
	if missing != nil {
		t.Error("expected nil for absent dashboard")
	}

	k := &models.KpiDashboard{ChurchID: "c1", CommunityServiceHours: 5}
	if err := repo.InsertKpi(k); err != nil {
		t.Fatalf("InsertKpi() error = %v", err)
	}

	k.CommunityServiceHours = 12
	if err := repo.UpdateKpi(k); err != nil {
		t.Fatalf("UpdateKpi() error = %v", err)
	}

	got, err := repo.GetKpiByChurch("c1")
	if err != nil {
		t.Fatalf("GetKpiByChurch() error = %v", err)
	}
	if got == nil || got.CommunityServiceHours != 12 {
		t.Errorf("dashboard = %+v", got)
	}
}

// TestSeededChurch verifies the default church exists on a fresh store.
func TestSeededChurch(t *testing.T) {
	repo := newTestRepo(t)

	churches, err := repo.GetAllChurches()
	if err != nil {
		t.Fatalf("GetAllChurches() error = %v", err)
	}
	if len(churches) != 1 || churches[0].ID != "slc-bb-main" {
		t.Errorf("seeded churches = %+v", churches)
	}
}
