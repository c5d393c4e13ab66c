package postgres

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/statusdeck/statusdeck/internal/models"
	"github.com/statusdeck/statusdeck/internal/repository"
)

// fieldChange is one column the incident UPDATE will touch.
type fieldChange struct {
	column string
	value  any
}

// initialUpdateDescription synthesizes the audit-log entry written when
// an incident is created. A scheduled_at marks it as a maintenance
// window rather than a live incident.
func initialUpdateDescription(description string, scheduled bool) string {
	if scheduled {
		return "Maintenance scheduled: " + description
	}
	return "Incident reported: " + description
}

// diffIncident compares the supplied patch fields against the current
// row and returns the columns to write plus one human-readable clause
// per change. Fields the caller did not supply are ignored; supplied
// fields equal to the current value produce neither a write nor a
// clause. The affected-service set is handled separately (it is always
// rewritten when supplied).
//
// The once-only resolved_at rule lives here: an incoming "resolved"
// status sets resolved_at to now only when the row has never been
// resolved. Leaving "resolved" does not clear it, and a later
// re-resolution may set it again — the first transition in stays
// authoritative until then.
func diffIncident(current *models.Incident, patch repository.IncidentPatch, now time.Time) ([]fieldChange, []string) {
	var changes []fieldChange
	var clauses []string

	if patch.Title != nil && *patch.Title != current.Title {
		changes = append(changes, fieldChange{"title", *patch.Title})
		clauses = append(clauses, fmt.Sprintf("Title changed to %q", *patch.Title))
	}
	if patch.Description != nil && *patch.Description != current.Description {
		changes = append(changes, fieldChange{"description", *patch.Description})
		clauses = append(clauses, "Description updated")
	}
	if patch.Status != nil && *patch.Status != current.Status {
		changes = append(changes, fieldChange{"status", *patch.Status})
		clauses = append(clauses, fmt.Sprintf("Status changed to %q", *patch.Status))
	}
	if patch.Severity != nil && *patch.Severity != current.Severity {
		changes = append(changes, fieldChange{"severity", *patch.Severity})
		clauses = append(clauses, fmt.Sprintf("Severity changed to %q", *patch.Severity))
	}
	if patch.ComponentsAffected != nil {
		changes = append(changes, fieldChange{"components_affected", *patch.ComponentsAffected})
		clauses = append(clauses, "Affected components updated")
	}
	if patch.ScheduledAt != nil {
		changes = append(changes, fieldChange{"scheduled_at", *patch.ScheduledAt})
		clauses = append(clauses, "Scheduled time updated")
	}
	if patch.Status != nil && *patch.Status == models.IncidentResolved && current.ResolvedAt == nil {
		changes = append(changes, fieldChange{"resolved_at", now})
		clauses = append(clauses, "Marked as resolved")
	}

	return changes, clauses
}

// buildUpdateLog turns the diff clauses plus the optional service-set
// rewrite into the single audit-log description for this edit. The
// second return is false when nothing changed and no service set was
// supplied — then no log entry is written and no broadcast fires.
//
// A supplied service set always contributes wording, even when identical
// to the stored set; associations are rewritten wholesale, not diffed.
func buildUpdateLog(clauses []string, serviceIDs *[]uuid.UUID) (string, bool) {
	if len(clauses) == 0 && serviceIDs == nil {
		return "", false
	}

	description := "Incident details updated."
	if len(clauses) > 0 {
		description = strings.Join(clauses, ". ") + "."
	}

	if serviceIDs != nil {
		switch {
		case len(*serviceIDs) > 0 && len(clauses) == 0:
			description = "Affected services updated."
		case len(*serviceIDs) > 0:
			description += " Affected services also updated."
		case len(clauses) == 0:
			description = "Affected services removed."
		default:
			description += " Affected services also updated (cleared)."
		}
	}

	return description, true
}
