package models

import (
	"time"

	"github.com/google/uuid"
)

// ServiceStatus is the health of a single monitored component.
type ServiceStatus string

const (
	ServiceOperational   ServiceStatus = "operational"
	ServiceDegraded      ServiceStatus = "degraded_performance"
	ServicePartialOut    ServiceStatus = "partial_outage"
	ServiceMajorOut      ServiceStatus = "major_outage"
	ServiceMaintenance   ServiceStatus = "under_maintenance"
	ServiceStatusUnknown ServiceStatus = "unknown"
)

// ValidServiceStatus reports whether s is one of the persisted statuses.
// "unknown" is aggregator output only and never stored on a row.
func ValidServiceStatus(s ServiceStatus) bool {
	switch s {
	case ServiceOperational, ServiceDegraded, ServicePartialOut, ServiceMajorOut, ServiceMaintenance:
		return true
	}
	return false
}

// IncidentStatus is the lifecycle stage of an incident or maintenance window.
type IncidentStatus string

const (
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentIdentified    IncidentStatus = "identified"
	IncidentMonitoring    IncidentStatus = "monitoring"
	IncidentResolved      IncidentStatus = "resolved"
	IncidentScheduled     IncidentStatus = "scheduled"
	IncidentInProgress    IncidentStatus = "in_progress"
	IncidentCompleted     IncidentStatus = "completed"
)

// Severity ranks how bad an incident is. Display-only today; nothing
// branches on it server-side.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Roles gate mutating routes. Viewers can read the dashboard but not
// change anything.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// Organization is the tenant boundary. Every other entity hangs off one,
// and the websocket topic space is keyed by its ID. Slug is the public
// status-page URL key.
type Organization struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// User is a staff member of one organization. PasswordHash is never
// serialized to clients.
type User struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

// Team is a named group of staff within an organization. Name is unique
// per organization.
type Team struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
}

// Service is a monitored component shown on the status page. Status is
// the most frequently mutated field and the primary broadcast payload
// for service events. Order controls display position.
type Service struct {
	ID             uuid.UUID     `json:"id"`
	OrganizationID uuid.UUID     `json:"organization_id"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Status         ServiceStatus `json:"status"`
	Order          int           `json:"order"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Incident is a reported event: an outage, a degradation, or a scheduled
// maintenance window (ScheduledAt non-nil).
//
// ResolvedAt is set exactly once, on the first transition into
// "resolved"; routine updates never clear it. The Updates slice is the
// append-only audit log and the source of truth for what happened when —
// the row's own Status/UpdatedAt are a current-state cache kept for read
// efficiency.
type Incident struct {
	ID                 uuid.UUID      `json:"id"`
	OrganizationID     uuid.UUID      `json:"organization_id"`
	UserID             uuid.UUID      `json:"user_id"`
	Title              string         `json:"title"`
	Description        string         `json:"description"`
	Status             IncidentStatus `json:"status"`
	Severity           Severity       `json:"severity"`
	ComponentsAffected []string       `json:"components_affected"`
	ScheduledAt        *time.Time     `json:"scheduled_at"`
	ResolvedAt         *time.Time     `json:"resolved_at"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	ReporterUsername   string         `json:"reporter_username,omitempty"`

	Updates          []IncidentUpdate  `json:"updates"`
	AffectedServices []AffectedService `json:"affected_services"`
}

// IncidentUpdate is one immutable audit-log entry. A row is appended on
// creation, on every field edit that changes something, and on every
// staff-authored status update. Rows are only ever deleted when their
// incident is deleted.
type IncidentUpdate struct {
	ID              uuid.UUID      `json:"id"`
	IncidentID      uuid.UUID      `json:"incident_id"`
	UserID          uuid.UUID      `json:"user_id"`
	Description     string         `json:"description"`
	Status          IncidentStatus `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdaterUsername string         `json:"updater_username,omitempty"`
}

// AffectedService is the service projection embedded in a rehydrated
// incident: just enough for a status page to render the link.
type AffectedService struct {
	ID     uuid.UUID     `json:"id"`
	Name   string        `json:"name"`
	Status ServiceStatus `json:"status"`
}
