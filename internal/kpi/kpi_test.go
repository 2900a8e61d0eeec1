// Package kpi provides unit tests for the KPI dashboard service.
package kpi

import (
	"testing"

	"github.com/PastorRae/visitation-log/internal/db"
	"github.com/PastorRae/visitation-log/internal/errors"
	"github.com/PastorRae/visitation-log/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	database, err := db.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewService(db.NewRepository(database))
}

// TestRecordCreatesDashboard verifies the first contribution for a
// church creates its dashboard.
func TestRecordCreatesDashboard(t *testing.T) {
	s := newTestService(t)

	dash, err := s.Record("c1", Contribution{CommunityServiceHours: 4, SmallGroups: 2})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if dash.ID == "" {
		t.Error("new dashboard should get an id")
	}
	if dash.CommunityServiceHours != 4 || dash.SmallGroupsPerChurch != 2 {
		t.Errorf("dashboard = %+v", dash)
	}
	if dash.DigitalEvangelismReach != 0 {
		t.Errorf("DigitalEvangelismReach = %d, want 0", dash.DigitalEvangelismReach)
	}
}

// TestRecordAccumulates verifies later contributions add to the totals.
func TestRecordAccumulates(t *testing.T) {
	s := newTestService(t)

	s.Record("c1", Contribution{CommunityServiceHours: 4, SmallGroups: 1})
	dash, err := s.Record("c1", Contribution{CommunityServiceHours: 3})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if dash.CommunityServiceHours != 7 {
		t.Errorf("CommunityServiceHours = %d, want 7", dash.CommunityServiceHours)
	}
	if dash.SmallGroupsPerChurch != 1 {
		t.Errorf("SmallGroupsPerChurch = %d, want 1", dash.SmallGroupsPerChurch)
	}
}

// TestRecordPerChurchIsolation verifies contributions do not leak
// between churches.
func TestRecordPerChurchIsolation(t *testing.T) {
	s := newTestService(t)

	s.Record("c1", Contribution{CommunityServiceHours: 5})
	dash, err := s.Record("c2", Contribution{CommunityServiceHours: 1})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if dash.CommunityServiceHours != 1 {
		t.Errorf("c2 hours = %d, want 1", dash.CommunityServiceHours)
	}
}

// TestRecordRequiresChurch verifies an empty church id is rejected.
func TestRecordRequiresChurch(t *testing.T) {
	s := newTestService(t)

	_, err := s.Record("", Contribution{CommunityServiceHours: 1})
	if !errors.Is(err, errors.ErrValidation) {
		t.Errorf("Record() error = %v, want ErrValidation", err)
	}
}

// TestCheckAlertsBelowThresholds verifies both under-target metrics are
// flagged.
func TestCheckAlertsBelowThresholds(t *testing.T) {
	s := newTestService(t)

	alerts := s.CheckAlerts(&models.KpiDashboard{
		ChurchID:              "c1",
		CommunityServiceHours: 2,
		SmallGroupsPerChurch:  0,
	})
	if len(alerts) != 2 {
		t.Errorf("alerts = %v, want 2", alerts)
	}
}

// TestCheckAlertsHealthyDashboard verifies no alerts at or above target.
func TestCheckAlertsHealthyDashboard(t *testing.T) {
	s := newTestService(t)

	alerts := s.CheckAlerts(&models.KpiDashboard{
		ChurchID:              "c1",
		CommunityServiceHours: MinCommunityServiceHours,
		SmallGroupsPerChurch:  MinSmallGroupsPerChurch,
	})
	if len(alerts) != 0 {
		t.Errorf("alerts = %v, want none", alerts)
	}
}
