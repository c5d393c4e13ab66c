package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/statusdeck/statusdeck/internal/models"
)

// Every method takes ctx (all of these hit the network) and is scoped by
// the caller's organization id. The stores trust the orgID they are
// given — the HTTP layer derives it from the verified token — but they
// re-validate that the target row actually belongs to that organization
// before mutating anything. "Absent" and "wrong tenant" are surfaced as
// the same not-found error so existence never leaks across tenants.

// OrganizationRepository manages the tenant rows themselves.
type OrganizationRepository interface {
	Create(ctx context.Context, name, slug, description string) (*models.Organization, error)

	// GetByID returns nil, nil when not found.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)

	// GetBySlug is the public status-page entry point. Returns nil, nil
	// when not found.
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)

	Update(ctx context.Context, id uuid.UUID, patch OrganizationPatch) (*models.Organization, error)
}

// UserRepository handles staff accounts.
type UserRepository interface {
	Create(ctx context.Context, organizationID uuid.UUID, username, email, passwordHash, role string) (*models.User, error)

	// GetByEmail is global (login starts from an email, not a tenant).
	// Returns nil, nil when not found.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByID returns nil, nil when not found.
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TeamRepository handles staff groupings within an organization.
type TeamRepository interface {
	// Create fails with a conflict error on a duplicate name within the
	// organization.
	Create(ctx context.Context, organizationID uuid.UUID, name string) (*models.Team, error)

	ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]models.Team, error)

	Delete(ctx context.Context, organizationID, teamID uuid.UUID) error
}

// ServiceRepository is the mutation engine for monitored components.
type ServiceRepository interface {
	Create(ctx context.Context, organizationID uuid.UUID, in CreateServiceInput) (*models.Service, error)

	// GetByID returns nil, nil when not found or owned by another tenant.
	GetByID(ctx context.Context, organizationID, serviceID uuid.UUID) (*models.Service, error)

	// ListByOrganization orders by display order, then name.
	ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]models.Service, error)

	// Update applies only the supplied fields. Setting the current
	// status again is a valid no-op that still returns the row.
	Update(ctx context.Context, organizationID, serviceID uuid.UUID, patch ServicePatch) (*models.Service, error)

	// Delete removes the service and every incident association that
	// references it in one transaction.
	Delete(ctx context.Context, organizationID, serviceID uuid.UUID) error
}

// IncidentRepository is the mutation engine for incidents. Each method
// is a single transaction: no reader or broadcast payload ever observes
// an incident whose update/association rows are partially written.
type IncidentRepository interface {
	// Create inserts the incident, its service associations, and the
	// synthesized initial audit-log entry, then returns the rehydrated
	// incident.
	Create(ctx context.Context, organizationID uuid.UUID, in CreateIncidentInput) (*models.Incident, error)

	// GetByID returns the rehydrated incident (updates oldest-first,
	// affected services attached), or nil, nil when not found.
	GetByID(ctx context.Context, organizationID, incidentID uuid.UUID) (*models.Incident, error)

	ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]models.Incident, error)

	// Update diffs the supplied fields, rewrites the service set
	// wholesale when supplied, appends one audit-log entry summarizing
	// the changes, and returns the rehydrated incident. When nothing
	// changed and no service set was supplied, no log entry is written
	// and the second return is false — the caller must not broadcast.
	Update(ctx context.Context, organizationID, incidentID uuid.UUID, patch IncidentPatch) (*models.Incident, bool, error)

	// AddUpdate appends a staff-authored audit-log entry and moves the
	// incident's current status to match.
	AddUpdate(ctx context.Context, organizationID, incidentID uuid.UUID, in AddIncidentUpdateInput) (*models.Incident, error)

	// Delete removes the incident and cascades its update and
	// association rows in the same transaction.
	Delete(ctx context.Context, organizationID, incidentID uuid.UUID) error
}

type OrganizationPatch struct {
	Name        *string
	Slug        *string
	Description *string
}

type CreateServiceInput struct {
	Name        string
	Description string
	Status      models.ServiceStatus
	Order       int
}

type ServicePatch struct {
	Name        *string
	Description *string
	Status      *models.ServiceStatus
	Order       *int
}

type CreateIncidentInput struct {
	UserID             uuid.UUID
	Title              string
	Description        string
	Status             models.IncidentStatus
	Severity           models.Severity
	ServiceIDs         []uuid.UUID
	ComponentsAffected []string
	ScheduledAt        *time.Time
}

// IncidentPatch carries only the fields the caller supplied; nil means
// "leave alone". ServiceIDs non-nil always rewrites the association set,
// even to the same value, and always produces a change-log entry.
type IncidentPatch struct {
	UserID             uuid.UUID // author of the change-log entry
	Title              *string
	Description        *string
	Status             *models.IncidentStatus
	Severity           *models.Severity
	ComponentsAffected *[]string
	ServiceIDs         *[]uuid.UUID
	ScheduledAt        *time.Time
}

type AddIncidentUpdateInput struct {
	UserID      uuid.UUID
	Description string
	Status      models.IncidentStatus
}
