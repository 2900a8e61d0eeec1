// Package remote provides typed wire contracts for the PastoralCare Pro API.
//
// Every endpoint response is modeled as an explicit record type and
// validated at the boundary; unexpected shapes are rejected instead of
// passed through.
package remote

import "github.com/PastorRae/visitation-log/internal/models"

// Credentials are the mobile login inputs.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// User describes the authenticated pastor account.
type User struct {
	ID       int    `json:"id"`
	Email    string `json:"email" validate:"required"`
	Name     string `json:"name"`
	ChurchID int    `json:"church_id"`
	Role     string `json:"role"`
}

// AuthResponse is the POST /auth/mobile payload.
type AuthResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token" validate:"required"`
	User      User   `json:"user"`
	ExpiresIn int64  `json:"expires_in"`
}

// UploadError reports a per-record failure inside an otherwise accepted
// batch.
type UploadError struct {
	VisitID string `json:"visit_id"`
	Error   string `json:"error"`
}

// UploadConflict reports a record the server resolved against a
// concurrent remote edit.
type UploadConflict struct {
	VisitID       string `json:"visit_id"`
	MobileUpdated int64  `json:"mobile_updated"`
	ServerUpdated int64  `json:"server_updated"`
	Resolution    string `json:"resolution"`
}

// UploadResult is the POST /visits/sync payload.
type UploadResult struct {
	Success   bool             `json:"success"`
	Synced    int              `json:"synced"`
	Errors    []UploadError    `json:"errors"`
	Conflicts []UploadConflict `json:"conflicts"`
}

// uploadRequest is the POST /visits/sync body.
type uploadRequest struct {
	Visits []*models.VisitRecord `json:"visits"`
}

// churchDTO is the wire form of a church reference record.
type churchDTO struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

func (d churchDTO) toModel() *models.Church {
	return &models.Church{ID: d.ID, Name: d.Name}
}

// memberDTO is the wire form of a member reference record.
type memberDTO struct {
	ID                 string `json:"id" validate:"required"`
	FirstName          string `json:"first_name" validate:"required"`
	LastName           string `json:"last_name"`
	ChurchID           string `json:"church_id"`
	Affiliation        string `json:"affiliation"`
	DiscipleshipStatus string `json:"discipleship_status"`
}

func (d memberDTO) toModel() *models.Member {
	return &models.Member{
		ID:                 models.UUID(d.ID),
		FirstName:          d.FirstName,
		LastName:           d.LastName,
		ChurchID:           d.ChurchID,
		Affiliation:        d.Affiliation,
		DiscipleshipStatus: d.DiscipleshipStatus,
	}
}

// churchesResponse is the GET /churches payload.
type churchesResponse struct {
	Success bool        `json:"success"`
	Data    []churchDTO `json:"data" validate:"dive"`
}

// membersResponse is the GET /members/{churchId} payload.
type membersResponse struct {
	Success bool        `json:"success"`
	Data    []memberDTO `json:"data" validate:"dive"`
}

// visitsDownloadResponse is the GET /visits/download payload.
type visitsDownloadResponse struct {
	Success         bool                  `json:"success"`
	Data            []*models.VisitRecord `json:"data"`
	ServerTimestamp int64                 `json:"server_timestamp"`
}

// healthResponse is the GET /health payload.
type healthResponse struct {
	Status string `json:"status"`
}
