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

type OrganizationStore struct {
	pool *pgxpool.Pool
}

func NewOrganizationStore(pool *pgxpool.Pool) *OrganizationStore {
	return &OrganizationStore{pool: pool}
}

const organizationColumns = `id, name, slug, description, created_at, updated_at`

func scanOrganization(row pgx.Row) (*models.Organization, error) {
	var org models.Organization
	err := row.Scan(
		&org.ID,
		&org.Name,
		&org.Slug,
		&org.Description,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (s *OrganizationStore) Create(ctx context.Context, name, slug, description string) (*models.Organization, error) {
	if name == "" || slug == "" {
		return nil, apperr.Validation("organization name and slug are required")
	}

	query := `
		INSERT INTO organizations (id, name, slug, description, created_at, updated_at)
		VALUES (uuid_generate_v4(), $1, $2, $3, now(), now())
		RETURNING ` + organizationColumns

	org, err := scanOrganization(s.pool.QueryRow(ctx, query, name, slug, description))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("organization name or slug already exists")
		}
		return nil, apperr.Storage("insert organization", err)
	}
	return org, nil
}

func (s *OrganizationStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1`

	org, err := scanOrganization(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Storage("get organization", err)
	}
	return org, nil
}

func (s *OrganizationStore) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE slug = $1`

	org, err := scanOrganization(s.pool.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Storage("get organization by slug", err)
	}
	return org, nil
}

func (s *OrganizationStore) Update(ctx context.Context, id uuid.UUID, patch repository.OrganizationPatch) (*models.Organization, error) {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Slug != nil {
		add("slug", *patch.Slug)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if len(sets) == 0 {
		org, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if org == nil {
			return nil, apperr.NotFound("organization not found")
		}
		return org, nil
	}

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE organizations SET %s, updated_at = now() WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), organizationColumns,
	)

	org, err := scanOrganization(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("organization not found")
		}
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("organization name or slug already exists")
		}
		return nil, apperr.Storage("update organization", err)
	}
	return org, nil
}
