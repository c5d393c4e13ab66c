package ws

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/statusdeck/statusdeck/internal/models"
)

type EventType string

const (
	EventIncidentCreated EventType = "incidentCreated"
	EventIncidentUpdated EventType = "incidentUpdated"
	EventIncidentDeleted EventType = "incidentDeleted"
	EventServiceCreated  EventType = "serviceCreated"
	EventServiceUpdated  EventType = "serviceUpdated"
	EventServiceDeleted  EventType = "serviceDeleted"
)

// Event is one broadcast message, built only through the constructors
// below so every event type carries the payload shape subscribers
// expect: the fully rehydrated entity for created/updated (no follow-up
// fetch needed), the identifier pair for deleted. Every payload carries
// organization_id so clients can self-filter against misrouted delivery.
type Event struct {
	Type           EventType
	OrganizationID uuid.UUID
	payload        any
}

// Deletion is the payload of *Deleted events.
type Deletion struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
}

func IncidentCreated(inc *models.Incident) Event {
	return Event{Type: EventIncidentCreated, OrganizationID: inc.OrganizationID, payload: inc}
}

func IncidentUpdated(inc *models.Incident) Event {
	return Event{Type: EventIncidentUpdated, OrganizationID: inc.OrganizationID, payload: inc}
}

func IncidentDeleted(organizationID, incidentID uuid.UUID) Event {
	return Event{
		Type:           EventIncidentDeleted,
		OrganizationID: organizationID,
		payload:        Deletion{ID: incidentID, OrganizationID: organizationID},
	}
}

func ServiceCreated(svc *models.Service) Event {
	return Event{Type: EventServiceCreated, OrganizationID: svc.OrganizationID, payload: svc}
}

func ServiceUpdated(svc *models.Service) Event {
	return Event{Type: EventServiceUpdated, OrganizationID: svc.OrganizationID, payload: svc}
}

func ServiceDeleted(organizationID, serviceID uuid.UUID) Event {
	return Event{
		Type:           EventServiceDeleted,
		OrganizationID: organizationID,
		payload:        Deletion{ID: serviceID, OrganizationID: organizationID},
	}
}

// MarshalJSON frames the event as {"type": ..., "data": ...}, the wire
// envelope clients switch on.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type EventType `json:"type"`
		Data any       `json:"data"`
	}{Type: e.Type, Data: e.payload})
}
