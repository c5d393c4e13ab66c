package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/statusdeck/statusdeck/internal/apperr"
	"github.com/statusdeck/statusdeck/internal/models"
	"github.com/statusdeck/statusdeck/internal/repository"
)

type ServiceStore struct {
	pool *pgxpool.Pool
}

func NewServiceStore(pool *pgxpool.Pool) *ServiceStore {
	return &ServiceStore{pool: pool}
}

const serviceColumns = `id, organization_id, name, description, status, "order", created_at, updated_at`

func scanService(row pgx.Row) (*models.Service, error) {
	var svc models.Service
	err := row.Scan(
		&svc.ID,
		&svc.OrganizationID,
		&svc.Name,
		&svc.Description,
		&svc.Status,
		&svc.Order,
		&svc.CreatedAt,
		&svc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (s *ServiceStore) Create(ctx context.Context, organizationID uuid.UUID, in repository.CreateServiceInput) (*models.Service, error) {
	if in.Name == "" {
		return nil, apperr.Validation("service name is required")
	}
	if organizationID == uuid.Nil {
		return nil, apperr.Validation("organization context is missing")
	}
	if in.Status == "" {
		in.Status = models.ServiceOperational
	}
	if !models.ValidServiceStatus(in.Status) {
		return nil, apperr.Validation(fmt.Sprintf("invalid service status %q", in.Status))
	}

	query := `
		INSERT INTO services (id, organization_id, name, description, status, "order", created_at, updated_at)
		VALUES (uuid_generate_v4(), $1, $2, $3, $4, $5, now(), now())
		RETURNING ` + serviceColumns

	svc, err := scanService(s.pool.QueryRow(ctx, query, organizationID, in.Name, in.Description, in.Status, in.Order))
	if err != nil {
		return nil, apperr.Storage("insert service", err)
	}
	return svc, nil
}

func (s *ServiceStore) GetByID(ctx context.Context, organizationID, serviceID uuid.UUID) (*models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1 AND organization_id = $2`

	svc, err := scanService(s.pool.QueryRow(ctx, query, serviceID, organizationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Storage("get service", err)
	}
	return svc, nil
}

func (s *ServiceStore) ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]models.Service, error) {
	query := `
		SELECT ` + serviceColumns + `
		FROM services
		WHERE organization_id = $1
		ORDER BY "order" ASC, name ASC`

	rows, err := s.pool.Query(ctx, query, organizationID)
	if err != nil {
		return nil, apperr.Storage("list services", err)
	}
	defer rows.Close()

	services := make([]models.Service, 0)
	for rows.Next() {
		var svc models.Service
		if err := rows.Scan(
			&svc.ID,
			&svc.OrganizationID,
			&svc.Name,
			&svc.Description,
			&svc.Status,
			&svc.Order,
			&svc.CreatedAt,
			&svc.UpdatedAt,
		); err != nil {
			return nil, apperr.Storage("scan service", err)
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate services", err)
	}

	return services, nil
}

// Update applies only the supplied fields. Re-asserting the current
// status is a valid no-op that returns the row unchanged; unlike
// incident edits it is not a loggable event.
func (s *ServiceStore) Update(ctx context.Context, organizationID, serviceID uuid.UUID, patch repository.ServicePatch) (*models.Service, error) {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 6)

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Status != nil {
		if !models.ValidServiceStatus(*patch.Status) {
			return nil, apperr.Validation(fmt.Sprintf("invalid service status %q", *patch.Status))
		}
		add("status", *patch.Status)
	}
	if patch.Order != nil {
		add(`"order"`, *patch.Order)
	}

	if len(sets) == 0 {
		svc, err := s.GetByID(ctx, organizationID, serviceID)
		if err != nil {
			return nil, err
		}
		if svc == nil {
			return nil, apperr.NotFound("service not found")
		}
		return svc, nil
	}

	args = append(args, serviceID, organizationID)
	query := fmt.Sprintf(
		`UPDATE services SET %s, updated_at = now() WHERE id = $%d AND organization_id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args)-1, len(args), serviceColumns,
	)

	svc, err := scanService(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("service not found")
		}
		return nil, apperr.Storage("update service", err)
	}
	return svc, nil
}

// Delete removes the service and every incident association referencing
// it in one transaction, so no incident is left pointing at a dangling
// service id.
func (s *ServiceStore) Delete(ctx context.Context, organizationID, serviceID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Storage("begin delete service", err)
	}
	defer tx.Rollback(ctx)

	// Tenant check first: deleting association rows for a foreign
	// tenant's service would be a cross-tenant write.
	var owner uuid.UUID
	err = tx.QueryRow(ctx, `SELECT organization_id FROM services WHERE id = $1`, serviceID).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("service not found")
		}
		return apperr.Storage("get service for delete", err)
	}
	if owner != organizationID {
		return apperr.NotFound("service not found")
	}

	if _, err := tx.Exec(ctx, `DELETE FROM incident_services WHERE service_id = $1`, serviceID); err != nil {
		return apperr.Storage("delete service associations", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM services WHERE id = $1`, serviceID); err != nil {
		return apperr.Storage("delete service", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Storage("commit delete service", err)
	}
	return nil
}
