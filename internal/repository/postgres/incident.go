package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/statusdeck/statusdeck/internal/apperr"
	"github.com/statusdeck/statusdeck/internal/models"
	"github.com/statusdeck/statusdeck/internal/repository"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the
// rehydration queries can run inside or outside a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// IncidentStore is the transactional mutation engine for incidents.
// Every mutating method is one transaction; the committed, rehydrated
// incident it returns is exactly what the caller broadcasts.
type IncidentStore struct {
	pool *pgxpool.Pool
}

func NewIncidentStore(pool *pgxpool.Pool) *IncidentStore {
	return &IncidentStore{pool: pool}
}

const incidentColumns = `i.id, i.organization_id, i.user_id, i.title, i.description, i.status, i.severity,
	COALESCE(i.components_affected, '{}'::text[]), i.scheduled_at, i.resolved_at, i.created_at, i.updated_at`

func scanIncident(row pgx.Row) (*models.Incident, error) {
	var inc models.Incident
	var reporter *string
	err := row.Scan(
		&inc.ID,
		&inc.OrganizationID,
		&inc.UserID,
		&inc.Title,
		&inc.Description,
		&inc.Status,
		&inc.Severity,
		&inc.ComponentsAffected,
		&inc.ScheduledAt,
		&inc.ResolvedAt,
		&inc.CreatedAt,
		&inc.UpdatedAt,
		&reporter,
	)
	if err != nil {
		return nil, err
	}
	if reporter != nil {
		inc.ReporterUsername = *reporter
	}
	return &inc, nil
}

func (s *IncidentStore) Create(ctx context.Context, organizationID uuid.UUID, in repository.CreateIncidentInput) (*models.Incident, error) {
	if in.Title == "" || in.Description == "" || in.Status == "" {
		return nil, apperr.Validation("title, description, and status are required for an incident")
	}
	if organizationID == uuid.Nil {
		return nil, apperr.Validation("organization context is missing")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Storage("begin create incident", err)
	}
	defer tx.Rollback(ctx)

	var incidentID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO incidents (id, organization_id, user_id, title, description, status, severity,
			components_affected, scheduled_at, created_at, updated_at)
		VALUES (uuid_generate_v4(), $1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING id`,
		organizationID, in.UserID, in.Title, in.Description, in.Status, in.Severity,
		in.ComponentsAffected, in.ScheduledAt,
	).Scan(&incidentID)
	if err != nil {
		return nil, apperr.Storage("insert incident", err)
	}

	for _, serviceID := range in.ServiceIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO incident_services (incident_id, service_id) VALUES ($1, $2)`,
			incidentID, serviceID,
		); err != nil {
			return nil, apperr.Storage("insert incident service", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO incident_updates (id, incident_id, user_id, description, status, created_at)
		VALUES (uuid_generate_v4(), $1, $2, $3, $4, now())`,
		incidentID, in.UserID, initialUpdateDescription(in.Description, in.ScheduledAt != nil), in.Status,
	); err != nil {
		return nil, apperr.Storage("insert initial incident update", err)
	}

	inc, err := s.getByID(ctx, tx, organizationID, incidentID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Storage("commit create incident", err)
	}
	return inc, nil
}

func (s *IncidentStore) GetByID(ctx context.Context, organizationID, incidentID uuid.UUID) (*models.Incident, error) {
	inc, err := s.getByID(ctx, s.pool, organizationID, incidentID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, nil
		}
		return nil, err
	}
	return inc, nil
}

// getByID fetches and rehydrates one incident through q (pool or open
// transaction). Tenant mismatch and absence are the same not-found.
func (s *IncidentStore) getByID(ctx context.Context, q querier, organizationID, incidentID uuid.UUID) (*models.Incident, error) {
	inc, err := scanIncident(q.QueryRow(ctx, `
		SELECT `+incidentColumns+`, u.username
		FROM incidents i
		LEFT JOIN users u ON i.user_id = u.id
		WHERE i.id = $1 AND i.organization_id = $2`,
		incidentID, organizationID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("incident not found")
		}
		return nil, apperr.Storage("get incident", err)
	}

	if err := s.hydrate(ctx, q, inc); err != nil {
		return nil, err
	}
	return inc, nil
}

// hydrate attaches the audit log (oldest first) and affected services.
func (s *IncidentStore) hydrate(ctx context.Context, q querier, inc *models.Incident) error {
	rows, err := q.Query(ctx, `
		SELECT iu.id, iu.incident_id, iu.user_id, iu.description, iu.status, iu.created_at, u.username
		FROM incident_updates iu
		LEFT JOIN users u ON iu.user_id = u.id
		WHERE iu.incident_id = $1
		ORDER BY iu.created_at ASC`,
		inc.ID,
	)
	if err != nil {
		return apperr.Storage("list incident updates", err)
	}
	defer rows.Close()

	inc.Updates = make([]models.IncidentUpdate, 0)
	for rows.Next() {
		var upd models.IncidentUpdate
		var updater *string
		if err := rows.Scan(&upd.ID, &upd.IncidentID, &upd.UserID, &upd.Description, &upd.Status, &upd.CreatedAt, &updater); err != nil {
			return apperr.Storage("scan incident update", err)
		}
		if updater != nil {
			upd.UpdaterUsername = *updater
		}
		inc.Updates = append(inc.Updates, upd)
	}
	if err := rows.Err(); err != nil {
		return apperr.Storage("iterate incident updates", err)
	}

	svcRows, err := q.Query(ctx, `
		SELECT s.id, s.name, s.status
		FROM services s
		JOIN incident_services iserv ON s.id = iserv.service_id
		WHERE iserv.incident_id = $1
		ORDER BY s.name ASC`,
		inc.ID,
	)
	if err != nil {
		return apperr.Storage("list affected services", err)
	}
	defer svcRows.Close()

	inc.AffectedServices = make([]models.AffectedService, 0)
	for svcRows.Next() {
		var svc models.AffectedService
		if err := svcRows.Scan(&svc.ID, &svc.Name, &svc.Status); err != nil {
			return apperr.Storage("scan affected service", err)
		}
		inc.AffectedServices = append(inc.AffectedServices, svc)
	}
	if err := svcRows.Err(); err != nil {
		return apperr.Storage("iterate affected services", err)
	}

	return nil
}

func (s *IncidentStore) ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]models.Incident, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+incidentColumns+`, u.username
		FROM incidents i
		LEFT JOIN users u ON i.user_id = u.id
		WHERE i.organization_id = $1
		ORDER BY i.created_at DESC`,
		organizationID,
	)
	if err != nil {
		return nil, apperr.Storage("list incidents", err)
	}
	defer rows.Close()

	incidents := make([]models.Incident, 0)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, apperr.Storage("scan incident", err)
		}
		incidents = append(incidents, *inc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("iterate incidents", err)
	}

	for i := range incidents {
		if err := s.hydrate(ctx, s.pool, &incidents[i]); err != nil {
			return nil, err
		}
	}
	return incidents, nil
}

// Update diffs the supplied fields against the current row, rewrites the
// service set wholesale when supplied, and appends exactly one audit-log
// entry summarizing everything — all in one transaction. The second
// return reports whether anything broadcast-worthy happened.
//
// Two concurrent Updates of the same incident can both read the
// pre-update row before either writes; last write wins per field. Each
// call is still individually atomic.
func (s *IncidentStore) Update(ctx context.Context, organizationID, incidentID uuid.UUID, patch repository.IncidentPatch) (*models.Incident, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, apperr.Storage("begin update incident", err)
	}
	defer tx.Rollback(ctx)

	current, err := scanIncident(tx.QueryRow(ctx, `
		SELECT `+incidentColumns+`, NULL::text
		FROM incidents i
		WHERE i.id = $1 AND i.organization_id = $2`,
		incidentID, organizationID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, apperr.NotFound("incident not found")
		}
		return nil, false, apperr.Storage("get incident for update", err)
	}

	changes, clauses := diffIncident(current, patch, time.Now().UTC())

	if len(changes) > 0 {
		sets := make([]string, 0, len(changes))
		args := make([]any, 0, len(changes)+1)
		for _, ch := range changes {
			args = append(args, ch.value)
			sets = append(sets, fmt.Sprintf("%s = $%d", ch.column, len(args)))
		}
		args = append(args, incidentID)
		query := fmt.Sprintf(
			`UPDATE incidents SET %s, updated_at = now() WHERE id = $%d`,
			strings.Join(sets, ", "), len(args),
		)
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return nil, false, apperr.Storage("update incident", err)
		}
	}

	if patch.ServiceIDs != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM incident_services WHERE incident_id = $1`, incidentID); err != nil {
			return nil, false, apperr.Storage("clear incident services", err)
		}
		for _, serviceID := range *patch.ServiceIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO incident_services (incident_id, service_id) VALUES ($1, $2)`,
				incidentID, serviceID,
			); err != nil {
				return nil, false, apperr.Storage("insert incident service", err)
			}
		}
	}

	logDescription, changed := buildUpdateLog(clauses, patch.ServiceIDs)
	if changed {
		logStatus := current.Status
		if patch.Status != nil {
			logStatus = *patch.Status
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO incident_updates (id, incident_id, user_id, description, status, created_at)
			VALUES (uuid_generate_v4(), $1, $2, $3, $4, now())`,
			incidentID, patch.UserID, logDescription, logStatus,
		); err != nil {
			return nil, false, apperr.Storage("insert incident update log", err)
		}
	}

	inc, err := s.getByID(ctx, tx, organizationID, incidentID)
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, apperr.Storage("commit update incident", err)
	}
	return inc, changed, nil
}

// AddUpdate is the staff-facing "post a status update" action: append an
// audit-log entry and move the incident's current status to match,
// applying the same once-only resolved_at rule as Update.
func (s *IncidentStore) AddUpdate(ctx context.Context, organizationID, incidentID uuid.UUID, in repository.AddIncidentUpdateInput) (*models.Incident, error) {
	if in.Description == "" || in.Status == "" {
		return nil, apperr.Validation("description and status are required for an incident update")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Storage("begin add incident update", err)
	}
	defer tx.Rollback(ctx)

	var resolvedAt *time.Time
	err = tx.QueryRow(ctx,
		`SELECT resolved_at FROM incidents WHERE id = $1 AND organization_id = $2`,
		incidentID, organizationID,
	).Scan(&resolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("incident not found")
		}
		return nil, apperr.Storage("get incident for update", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO incident_updates (id, incident_id, user_id, description, status, created_at)
		VALUES (uuid_generate_v4(), $1, $2, $3, $4, now())`,
		incidentID, in.UserID, in.Description, in.Status,
	); err != nil {
		return nil, apperr.Storage("insert incident update", err)
	}

	if in.Status == models.IncidentResolved && resolvedAt == nil {
		_, err = tx.Exec(ctx,
			`UPDATE incidents SET status = $1, resolved_at = now(), updated_at = now() WHERE id = $2`,
			in.Status, incidentID,
		)
	} else {
		_, err = tx.Exec(ctx,
			`UPDATE incidents SET status = $1, updated_at = now() WHERE id = $2`,
			in.Status, incidentID,
		)
	}
	if err != nil {
		return nil, apperr.Storage("update incident status", err)
	}

	inc, err := s.getByID(ctx, tx, organizationID, incidentID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Storage("commit add incident update", err)
	}
	return inc, nil
}

// Delete removes the incident and cascades its audit-log and
// association rows in the same transaction.
func (s *IncidentStore) Delete(ctx context.Context, organizationID, incidentID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Storage("begin delete incident", err)
	}
	defer tx.Rollback(ctx)

	var owner uuid.UUID
	err = tx.QueryRow(ctx, `SELECT organization_id FROM incidents WHERE id = $1`, incidentID).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("incident not found")
		}
		return apperr.Storage("get incident for delete", err)
	}
	if owner != organizationID {
		return apperr.NotFound("incident not found")
	}

	if _, err := tx.Exec(ctx, `DELETE FROM incident_services WHERE incident_id = $1`, incidentID); err != nil {
		return apperr.Storage("delete incident services", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM incident_updates WHERE incident_id = $1`, incidentID); err != nil {
		return apperr.Storage("delete incident updates", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM incidents WHERE id = $1`, incidentID); err != nil {
		return apperr.Storage("delete incident", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Storage("commit delete incident", err)
	}
	return nil
}
