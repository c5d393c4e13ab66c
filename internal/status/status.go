// Package status derives an organization's overall health from its
// services. Nothing here is persisted; the public read path computes it
// on every request.
package status

import "github.com/statusdeck/statusdeck/internal/models"

// Overall reduces a service list to a single status by severity
// precedence: most severe wins. An empty list is "unknown", not
// "operational" — a page with no services has nothing to vouch for.
func Overall(services []models.Service) models.ServiceStatus {
	if len(services) == 0 {
		return models.ServiceStatusUnknown
	}

	var degraded, partial, maintenance bool
	allOperational := true
	for _, s := range services {
		if s.Status != models.ServiceOperational {
			allOperational = false
		}
		switch s.Status {
		case models.ServiceMajorOut:
			return models.ServiceMajorOut
		case models.ServicePartialOut:
			partial = true
		case models.ServiceDegraded:
			degraded = true
		case models.ServiceMaintenance:
			maintenance = true
		}
	}

	switch {
	case partial:
		return models.ServicePartialOut
	case degraded:
		return models.ServiceDegraded
	case maintenance:
		return models.ServiceMaintenance
	case allOperational:
		return models.ServiceOperational
	}
	return models.ServiceStatusUnknown
}
