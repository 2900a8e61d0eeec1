// Package models provides data model definitions for the Visitation Log core.
package models

// KpiDashboard accumulates per-church ministry metrics.
type KpiDashboard struct {
	ID                     UUID   `db:"id" json:"id"`
	ChurchID               string `db:"church_id" json:"church_id"`
	CommunityServiceHours  int    `db:"community_service_hours" json:"community_service_hours"`
	SmallGroupsPerChurch   int    `db:"small_groups_per_church" json:"small_groups_per_church"`
	DigitalEvangelismReach int    `db:"digital_evangelism_reach" json:"digital_evangelism_reach"`
	UpdatedAt              int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for KpiDashboard.
func (KpiDashboard) TableName() string {
	return "kpi_dashboards"
}
