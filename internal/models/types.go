// Package models provides data model definitions for the Visitation Log core.
package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// UUID is a wrapper around string for UUID v4 type safety.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	if value == nil {
		*u = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*u = UUID(v)
	case []byte:
		*u = UUID(v)
	default:
		return fmt.Errorf("cannot scan %T into UUID", value)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// VisitType identifies the channel through which a visit took place.
type VisitType string

const (
	VisitTypeInPerson  VisitType = "in_person"
	VisitTypePhone     VisitType = "phone"
	VisitTypeVideo     VisitType = "video"
	VisitTypeEmergency VisitType = "emergency"
	VisitTypeHospital  VisitType = "hospital"
	VisitTypeHome      VisitType = "home"
	VisitTypeOffice    VisitType = "office"
)

// VisitCategory classifies the pastoral purpose of a visit.
type VisitCategory string

const (
	CategoryPastoral       VisitCategory = "pastoral"
	CategoryCrisis         VisitCategory = "crisis"
	CategoryDiscipleship   VisitCategory = "discipleship"
	CategoryAdministrative VisitCategory = "administrative"
	CategoryEvangelism     VisitCategory = "evangelism"
	CategoryConflict       VisitCategory = "conflict"
	CategoryCelebration    VisitCategory = "celebration"
	CategoryBereavement    VisitCategory = "bereavement"
)

// Priority ranks follow-up urgency.
type Priority string

const (
	PriorityCritical  Priority = "critical"
	PriorityImportant Priority = "important"
	PriorityStandard  Priority = "standard"
	PriorityRoutine   Priority = "routine"
	PriorityAnnual    Priority = "annual"
)

// FollowupStatus tracks the lifecycle of a follow-up obligation.
type FollowupStatus string

const (
	FollowupOpen    FollowupStatus = "open"
	FollowupDone    FollowupStatus = "done"
	FollowupOverdue FollowupStatus = "overdue"
)

// NowMillis returns the current time as milliseconds since epoch.
// All updated_at timestamps in the store use this resolution.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// MillisToTime converts a millisecond epoch timestamp to time.Time.
func MillisToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}
