// Package kpi accumulates per-church ministry metrics from visit
// activity and flags dashboards that fall below their targets.
package kpi

import (
	"github.com/PastorRae/visitation-log/internal/errors"
	"github.com/PastorRae/visitation-log/internal/logging"
	"github.com/PastorRae/visitation-log/internal/models"
)

// Alert thresholds. Dashboards below these are flagged.
const (
	MinCommunityServiceHours = 10
	MinSmallGroupsPerChurch  = 1
)

// Store is the slice of the repository the KPI service needs.
type Store interface {
	GetKpiByChurch(churchID string) (*models.KpiDashboard, error)
	InsertKpi(k *models.KpiDashboard) error
	UpdateKpi(k *models.KpiDashboard) error
}

// Contribution carries the metrics one visit adds to a dashboard.
type Contribution struct {
	CommunityServiceHours int
	SmallGroups           int
}

// Service maintains the per-church dashboards.
type Service struct {
	store Store
}

// NewService creates a KPI Service over the given store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Record folds one visit's contribution into the church dashboard,
// creating it on first contact.
func (s *Service) Record(churchID string, c Contribution) (*models.KpiDashboard, error) {
	if churchID == "" {
		return nil, errors.New(errors.ErrValidation, "church id is required")
	}

	dash, err := s.store.GetKpiByChurch(churchID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load kpi dashboard", err)
	}

	if dash == nil {
		dash = &models.KpiDashboard{
			ChurchID:              churchID,
			CommunityServiceHours: c.CommunityServiceHours,
			SmallGroupsPerChurch:  c.SmallGroups,
		}
		if err := s.store.InsertKpi(dash); err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, "failed to create kpi dashboard", err)
		}
		return dash, nil
	}

	dash.CommunityServiceHours += c.CommunityServiceHours
	dash.SmallGroupsPerChurch += c.SmallGroups
	if err := s.store.UpdateKpi(dash); err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to update kpi dashboard", err)
	}
	return dash, nil
}

// CheckAlerts logs a warning for each metric below its threshold and
// returns the alert messages.
func (s *Service) CheckAlerts(dash *models.KpiDashboard) []string {
	var alerts []string

	if dash.CommunityServiceHours < MinCommunityServiceHours {
		alerts = append(alerts, "community service hours below minimum threshold")
	}
	if dash.SmallGroupsPerChurch < MinSmallGroupsPerChurch {
		alerts = append(alerts, "small groups per church below minimum threshold")
	}

	for _, a := range alerts {
		logging.Warn("KPI alert", logging.Fields{
			"church_id": dash.ChurchID,
			"alert":     a,
		})
	}
	return alerts
}
