// Package models provides data model definitions for the Visitation Log core.
package models

import "time"

// VisitRecord represents a single logged pastoral contact.
//
// The subject is either a known member (MemberID set) or a non-member
// identified by free-text name (MemberFirst/MemberLast set); the two are
// mutually exclusive. Synced flips true only after the remote system has
// acknowledged this exact UpdatedAt version.
type VisitRecord struct {
	ID              UUID          `db:"id" json:"id"`
	StartTime       *int64        `db:"start_time" json:"start_time,omitempty"`
	EndTime         *int64        `db:"end_time" json:"end_time,omitempty"`
	VisitDate       int64         `db:"visit_date" json:"visit_date"`
	PastorEmail     string        `db:"pastor_email" json:"pastor_email"`
	PastorName      string        `db:"pastor_name" json:"pastor_name"`
	MemberID        UUID          `db:"member_id" json:"member_id,omitempty"`
	MemberFirst     string        `db:"member_first" json:"member_first,omitempty"`
	MemberLast      string        `db:"member_last" json:"member_last,omitempty"`
	ChurchID        string        `db:"church_id" json:"church_id,omitempty"`
	VisitType       VisitType     `db:"visit_type" json:"visit_type"`
	Category        VisitCategory `db:"category" json:"category"`
	Comments        string        `db:"comments" json:"comments,omitempty"`
	Address         string        `db:"address" json:"address,omitempty"`
	Lat             *float64      `db:"lat" json:"lat,omitempty"`
	Lng             *float64      `db:"lng" json:"lng,omitempty"`
	NextVisitDate   *int64        `db:"next_visit_date" json:"next_visit_date,omitempty"`
	FollowupActions string        `db:"followup_actions" json:"followup_actions,omitempty"`
	Priority        Priority      `db:"priority" json:"priority,omitempty"`
	ScriptureRefs   string        `db:"scripture_refs" json:"scripture_refs,omitempty"`
	PrayerRequests  string        `db:"prayer_requests" json:"prayer_requests,omitempty"`
	Resources       string        `db:"resources" json:"resources,omitempty"`
	Synced          bool          `db:"synced" json:"synced"`
	UpdatedAt       int64         `db:"updated_at" json:"updated_at"` // milliseconds since epoch
}

// TableName returns the table name for VisitRecord.
func (VisitRecord) TableName() string {
	return "visits"
}

// HasMember reports whether the visit subject is a known member.
func (v *VisitRecord) HasMember() bool {
	return v.MemberID != ""
}

// Touch advances UpdatedAt and resets the synced flag. Every local
// mutation after an upload must go through here so the record is picked
// up again by the next sync run.
func (v *VisitRecord) Touch() {
	v.UpdatedAt = NowMillis()
	v.Synced = false
}

// VisitDateTime returns VisitDate as time.Time.
func (v *VisitRecord) VisitDateTime() time.Time {
	return MillisToTime(v.VisitDate)
}

// UpdatedAtTime returns UpdatedAt as time.Time.
func (v *VisitRecord) UpdatedAtTime() time.Time {
	return MillisToTime(v.UpdatedAt)
}
