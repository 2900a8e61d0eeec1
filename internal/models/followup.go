// Package models provides data model definitions for the Visitation Log core.
package models

// Followup is a derived obligation tied to a visit. It follows the same
// synced/updated_at discipline as VisitRecord.
type Followup struct {
	ID        UUID           `db:"id" json:"id"`
	VisitID   UUID           `db:"visit_id" json:"visit_id"`
	DueDate   int64          `db:"due_date" json:"due_date"`
	Actions   string         `db:"actions" json:"actions"`
	Priority  Priority       `db:"priority" json:"priority"`
	Status    FollowupStatus `db:"status" json:"status"`
	Synced    bool           `db:"synced" json:"synced"`
	UpdatedAt int64          `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Followup.
func (Followup) TableName() string {
	return "followups"
}

// IsOverdue reports whether the follow-up is past due and not done.
func (f *Followup) IsOverdue(nowMillis int64) bool {
	return f.Status != FollowupDone && f.DueDate < nowMillis
}

// Touch advances UpdatedAt and resets the synced flag.
func (f *Followup) Touch() {
	f.UpdatedAt = NowMillis()
	f.Synced = false
}
