package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/statusdeck/statusdeck/internal/apperr"
	"github.com/statusdeck/statusdeck/internal/middleware"
	"github.com/statusdeck/statusdeck/internal/models"
	"github.com/statusdeck/statusdeck/internal/repository"
	"github.com/statusdeck/statusdeck/internal/ws"
	"go.uber.org/zap"
)

// fakeIncidentRepo scripts store behavior per test.
type fakeIncidentRepo struct {
	createFn    func(ctx context.Context, orgID uuid.UUID, in repository.CreateIncidentInput) (*models.Incident, error)
	updateFn    func(ctx context.Context, orgID, id uuid.UUID, patch repository.IncidentPatch) (*models.Incident, bool, error)
	addUpdateFn func(ctx context.Context, orgID, id uuid.UUID, in repository.AddIncidentUpdateInput) (*models.Incident, error)
	deleteFn    func(ctx context.Context, orgID, id uuid.UUID) error
}

func (f *fakeIncidentRepo) Create(ctx context.Context, orgID uuid.UUID, in repository.CreateIncidentInput) (*models.Incident, error) {
	return f.createFn(ctx, orgID, in)
}

func (f *fakeIncidentRepo) GetByID(context.Context, uuid.UUID, uuid.UUID) (*models.Incident, error) {
	return nil, nil
}

func (f *fakeIncidentRepo) ListByOrganization(context.Context, uuid.UUID) ([]models.Incident, error) {
	return nil, nil
}

func (f *fakeIncidentRepo) Update(ctx context.Context, orgID, id uuid.UUID, patch repository.IncidentPatch) (*models.Incident, bool, error) {
	return f.updateFn(ctx, orgID, id, patch)
}

func (f *fakeIncidentRepo) AddUpdate(ctx context.Context, orgID, id uuid.UUID, in repository.AddIncidentUpdateInput) (*models.Incident, error) {
	return f.addUpdateFn(ctx, orgID, id, in)
}

func (f *fakeIncidentRepo) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	return f.deleteFn(ctx, orgID, id)
}

// recordingPublisher captures everything published.
type recordingPublisher struct {
	events []ws.Event
}

func (p *recordingPublisher) Publish(ev ws.Event) {
	p.events = append(p.events, ev)
}

func staffRequest(t *testing.T, orgID, userID uuid.UUID, method, path string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, bytes.NewReader(raw))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextKeyOrganizationID, orgID)
	c.Set(middleware.ContextKeyUserID, userID)
	return c, w
}

func TestCreatePublishesCommittedIncident(t *testing.T) {
	orgID := uuid.New()
	committed := &models.Incident{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Title:          "API slow",
		Status:         models.IncidentInvestigating,
	}

	repo := &fakeIncidentRepo{
		createFn: func(_ context.Context, gotOrg uuid.UUID, in repository.CreateIncidentInput) (*models.Incident, error) {
			if gotOrg != orgID {
				t.Fatalf("store called with org %s, want %s", gotOrg, orgID)
			}
			if in.Title != "API slow" {
				t.Fatalf("store called with title %q", in.Title)
			}
			return committed, nil
		},
	}
	pub := &recordingPublisher{}
	h := NewIncidentHandler(repo, pub, zap.NewNop())

	c, w := staffRequest(t, orgID, uuid.New(), http.MethodPost, "/v1/incidents", gin.H{
		"title":       "API slow",
		"description": "elevated latency",
		"status":      "investigating",
		"severity":    "high",
	})
	h.Create(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	if pub.events[0].Type != ws.EventIncidentCreated {
		t.Fatalf("event type = %q, want incidentCreated", pub.events[0].Type)
	}
	if pub.events[0].OrganizationID != orgID {
		t.Fatalf("event org = %s, want %s", pub.events[0].OrganizationID, orgID)
	}
}

func TestCreateFailureDoesNotPublish(t *testing.T) {
	repo := &fakeIncidentRepo{
		createFn: func(context.Context, uuid.UUID, repository.CreateIncidentInput) (*models.Incident, error) {
			return nil, apperr.Validation("title, description, and status are required for an incident")
		},
	}
	pub := &recordingPublisher{}
	h := NewIncidentHandler(repo, pub, zap.NewNop())

	c, w := staffRequest(t, uuid.New(), uuid.New(), http.MethodPost, "/v1/incidents", gin.H{
		"title":       "x",
		"description": "y",
		"status":      "investigating",
	})
	h.Create(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if len(pub.events) != 0 {
		t.Fatalf("published %d events for a failed mutation, want 0", len(pub.events))
	}
}

func TestUpdateNoChangeDoesNotPublish(t *testing.T) {
	orgID := uuid.New()
	incidentID := uuid.New()
	current := &models.Incident{ID: incidentID, OrganizationID: orgID, Title: "API slow"}

	repo := &fakeIncidentRepo{
		updateFn: func(context.Context, uuid.UUID, uuid.UUID, repository.IncidentPatch) (*models.Incident, bool, error) {
			return current, false, nil
		},
	}
	pub := &recordingPublisher{}
	h := NewIncidentHandler(repo, pub, zap.NewNop())

	c, w := staffRequest(t, orgID, uuid.New(), http.MethodPut, "/v1/incidents/"+incidentID.String(), gin.H{
		"title": "API slow",
	})
	c.Params = gin.Params{{Key: "id", Value: incidentID.String()}}
	h.Update(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(pub.events) != 0 {
		t.Fatalf("published %d events for a no-op edit, want 0", len(pub.events))
	}
}

func TestUpdateWrongTenantIs404(t *testing.T) {
	repo := &fakeIncidentRepo{
		updateFn: func(context.Context, uuid.UUID, uuid.UUID, repository.IncidentPatch) (*models.Incident, bool, error) {
			return nil, false, apperr.NotFound("incident not found")
		},
	}
	pub := &recordingPublisher{}
	h := NewIncidentHandler(repo, pub, zap.NewNop())

	incidentID := uuid.New()
	c, w := staffRequest(t, uuid.New(), uuid.New(), http.MethodPut, "/v1/incidents/"+incidentID.String(), gin.H{
		"status": "resolved",
	})
	c.Params = gin.Params{{Key: "id", Value: incidentID.String()}}
	h.Update(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if len(pub.events) != 0 {
		t.Fatalf("published %d events, want 0", len(pub.events))
	}
}

func TestAddUpdateRespondsWithEntryAndBroadcastsIncident(t *testing.T) {
	orgID := uuid.New()
	incidentID := uuid.New()
	updated := &models.Incident{
		ID:             incidentID,
		OrganizationID: orgID,
		Status:         models.IncidentResolved,
		Updates: []models.IncidentUpdate{
			{Description: "Incident reported: db down", Status: models.IncidentMonitoring},
			{Description: "Fixed", Status: models.IncidentResolved},
		},
	}

	repo := &fakeIncidentRepo{
		addUpdateFn: func(_ context.Context, _, _ uuid.UUID, in repository.AddIncidentUpdateInput) (*models.Incident, error) {
			if in.Description != "Fixed" || in.Status != models.IncidentResolved {
				t.Fatalf("store called with %+v", in)
			}
			return updated, nil
		},
	}
	pub := &recordingPublisher{}
	h := NewIncidentHandler(repo, pub, zap.NewNop())

	c, w := staffRequest(t, orgID, uuid.New(), http.MethodPost, "/v1/incidents/"+incidentID.String()+"/updates", gin.H{
		"description": "Fixed",
		"status":      "resolved",
	})
	c.Params = gin.Params{{Key: "id", Value: incidentID.String()}}
	h.AddUpdate(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}

	var entry models.IncidentUpdate
	if err := json.Unmarshal(w.Body.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if entry.Description != "Fixed" {
		t.Fatalf("response entry = %+v, want the appended update", entry)
	}

	if len(pub.events) != 1 || pub.events[0].Type != ws.EventIncidentUpdated {
		t.Fatalf("events = %+v, want one incidentUpdated", pub.events)
	}
}

func TestAddUpdateWithoutLogEntryIsInternalError(t *testing.T) {
	orgID := uuid.New()
	incidentID := uuid.New()

	repo := &fakeIncidentRepo{
		addUpdateFn: func(context.Context, uuid.UUID, uuid.UUID, repository.AddIncidentUpdateInput) (*models.Incident, error) {
			// A store bug: success with no audit-log rows attached.
			return &models.Incident{ID: incidentID, OrganizationID: orgID}, nil
		},
	}
	pub := &recordingPublisher{}
	h := NewIncidentHandler(repo, pub, zap.NewNop())

	c, w := staffRequest(t, orgID, uuid.New(), http.MethodPost, "/v1/incidents/"+incidentID.String()+"/updates", gin.H{
		"description": "Fixed",
		"status":      "resolved",
	})
	c.Params = gin.Params{{Key: "id", Value: incidentID.String()}}
	h.AddUpdate(c)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if len(pub.events) != 0 {
		t.Fatalf("published %d events for an inconsistent result, want 0", len(pub.events))
	}
}

func TestDeletePublishesIdentifiers(t *testing.T) {
	orgID := uuid.New()
	incidentID := uuid.New()

	repo := &fakeIncidentRepo{
		deleteFn: func(_ context.Context, gotOrg, gotID uuid.UUID) error {
			if gotOrg != orgID || gotID != incidentID {
				t.Fatalf("delete called with (%s, %s)", gotOrg, gotID)
			}
			return nil
		},
	}
	pub := &recordingPublisher{}
	h := NewIncidentHandler(repo, pub, zap.NewNop())

	c, w := staffRequest(t, orgID, uuid.New(), http.MethodDelete, "/v1/incidents/"+incidentID.String(), nil)
	c.Params = gin.Params{{Key: "id", Value: incidentID.String()}}
	h.Delete(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(pub.events) != 1 || pub.events[0].Type != ws.EventIncidentDeleted {
		t.Fatalf("events = %+v, want one incidentDeleted", pub.events)
	}
	if pub.events[0].OrganizationID != orgID {
		t.Fatalf("event org = %s, want %s", pub.events[0].OrganizationID, orgID)
	}
}
