package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/statusdeck/statusdeck/internal/apperr"
	"github.com/statusdeck/statusdeck/internal/models"
)

type TeamStore struct {
	pool *pgxpool.Pool
}

func NewTeamStore(pool *pgxpool.Pool) *TeamStore {
	return &TeamStore{pool: pool}
}

func (s *TeamStore) Create(ctx context.Context, organizationID uuid.UUID, name string) (*models.Team, error) {
	if name == "" {
		return nil, apperr.Validation("team name is required")
	}

	query := `
		INSERT INTO teams (id, organization_id, name, created_at)
		VALUES (uuid_generate_v4(), $1, $2, now())
		RETURNING id, organization_id, name, created_at`

	var t models.Team
	err := s.pool.QueryRow(ctx, query, organizationID, name).Scan(
		&t.ID,
		&t.OrganizationID,
		&t.Name,
		&t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("team name already exists in this organization")
		}
		return nil, apperr.Storage("insert team", err)
	}
	return &t, nil
}

func (s *TeamStore) ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]models.Team, error) {
	query := `
		SELECT id, organization_id, name, created_at
		FROM teams
		WHERE organization_id = $1
		ORDER BY name ASC`

	rows, err := s.pool.Query(ctx, query, organizationID)
	if err != nil {
		return nil, apperr.Storage("list teams", err)
	}
	defer rows.Close()

	teams := make([]models.Team, 0)
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.Name, &t.CreatedAt); err != nil {
			return nil, apperr.Storage("scan team", err)
		}
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate teams", err)
	}

	return teams, nil
}

func (s *TeamStore) Delete(ctx context.Context, organizationID, teamID uuid.UUID) error {
	query := `DELETE FROM teams WHERE id = $1 AND organization_id = $2 RETURNING id`

	var id uuid.UUID
	err := s.pool.QueryRow(ctx, query, teamID, organizationID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("team not found")
		}
		return apperr.Storage("delete team", err)
	}
	return nil
}
