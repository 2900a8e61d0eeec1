// Package models provides data model definitions for the Visitation Log core.
package models

// Church is reference data owned by the remote system. The local copy is
// a read-mostly cache refreshed by full replacement.
type Church struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// TableName returns the table name for Church.
func (Church) TableName() string {
	return "churches"
}

// Member is reference data owned by the remote system, cached per church.
type Member struct {
	ID                 UUID   `db:"id" json:"id"`
	FirstName          string `db:"first_name" json:"first_name"`
	LastName           string `db:"last_name" json:"last_name"`
	ChurchID           string `db:"church_id" json:"church_id"`
	Affiliation        string `db:"affiliation" json:"affiliation,omitempty"`
	DiscipleshipStatus string `db:"discipleship_status" json:"discipleship_status,omitempty"`
}

// TableName returns the table name for Member.
func (Member) TableName() string {
	return "members"
}

// FullName returns the member's display name.
func (m *Member) FullName() string {
	return m.FirstName + " " + m.LastName
}
