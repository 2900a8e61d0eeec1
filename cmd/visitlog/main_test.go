// Command visitlog tests cover the status report wiring.
package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/PastorRae/visitation-log/internal/db"
	"github.com/PastorRae/visitation-log/internal/kpi"
	"github.com/PastorRae/visitation-log/internal/models"
)

func newTestRepo(t *testing.T) *db.Repository {
	t.Helper()
	database, err := db.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return db.NewRepository(database)
}

// TestPrintStatusCounts verifies pending work and last sync appear in
// the report.
func TestPrintStatusCounts(t *testing.T) {
	repo := newTestRepo(t)

	if err := repo.InsertVisit(&models.VisitRecord{
		VisitDate:   models.NowMillis(),
		PastorEmail: "pastor@example.org",
		PastorName:  "Pastor Rae",
		MemberFirst: "Ann",
		VisitType:   models.VisitTypeInPerson,
		Category:    models.CategoryPastoral,
	}); err != nil {
		t.Fatalf("InsertVisit() error = %v", err)
	}

	var out bytes.Buffer
	if err := printStatus(&out, repo); err != nil {
		t.Fatalf("printStatus() error = %v", err)
	}

	report := out.String()
	if !strings.Contains(report, "pending visits:    1") {
		t.Errorf("report missing pending visit count:\n%s", report)
	}
	if !strings.Contains(report, "last sync:         never") {
		t.Errorf("report missing never-synced marker:\n%s", report)
	}
}

// TestPrintStatusIncludesKpis verifies church dashboards and their
// threshold alerts are part of the report.
func TestPrintStatusIncludesKpis(t *testing.T) {
	repo := newTestRepo(t)

	// The seeded church gets a dashboard below both thresholds.
	svc := kpi.NewService(repo)
	if _, err := svc.Record("slc-bb-main", kpi.Contribution{
		CommunityServiceHours: 2,
	}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	var out bytes.Buffer
	if err := printStatus(&out, repo); err != nil {
		t.Fatalf("printStatus() error = %v", err)
	}

	report := out.String()
	if !strings.Contains(report, "kpi South Leeward Conference - Barbados (slc-bb-main)") {
		t.Errorf("report missing kpi dashboard:\n%s", report)
	}
	if !strings.Contains(report, "community service hours: 2") {
		t.Errorf("report missing service hours:\n%s", report)
	}
	if !strings.Contains(report, "alert: community service hours below minimum threshold") {
		t.Errorf("report missing threshold alert:\n%s", report)
	}
}

// TestPrintStatusSkipsChurchesWithoutDashboards verifies churches with
// no KPI rows add nothing to the report.
func TestPrintStatusSkipsChurchesWithoutDashboards(t *testing.T) {
	repo := newTestRepo(t)

	var out bytes.Buffer
	if err := printStatus(&out, repo); err != nil {
		t.Fatalf("printStatus() error = %v", err)
	}

	if strings.Contains(out.String(), "kpi ") {
		t.Errorf("report lists a dashboard that does not exist:\n%s", out.String())
	}
}
