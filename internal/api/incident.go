package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/statusdeck/statusdeck/internal/apperr"
	"github.com/statusdeck/statusdeck/internal/middleware"
	"github.com/statusdeck/statusdeck/internal/models"
	"github.com/statusdeck/statusdeck/internal/repository"
	"github.com/statusdeck/statusdeck/internal/ws"
	"go.uber.org/zap"
)

// IncidentHandler drives the incident lifecycle. The store commits, the
// handler broadcasts the committed entity; an error from the store means
// the transaction rolled back and no event fires.
type IncidentHandler struct {
	repo      repository.IncidentRepository
	publisher Publisher
	logger    *zap.Logger
}

func NewIncidentHandler(repo repository.IncidentRepository, publisher Publisher, logger *zap.Logger) *IncidentHandler {
	return &IncidentHandler{repo: repo, publisher: publisher, logger: logger}
}

type createIncidentRequest struct {
	Title              string                `json:"title" binding:"required"`
	Description        string                `json:"description" binding:"required"`
	Status             models.IncidentStatus `json:"status" binding:"required"`
	Severity           models.Severity       `json:"severity"`
	ServiceIDs         []uuid.UUID           `json:"service_ids"`
	ComponentsAffected []string              `json:"components_affected"`
	ScheduledAt        *time.Time            `json:"scheduled_at"`
}

type updateIncidentRequest struct {
	Title              *string                `json:"title"`
	Description        *string                `json:"description"`
	Status             *models.IncidentStatus `json:"status"`
	Severity           *models.Severity       `json:"severity"`
	ServiceIDs         *[]uuid.UUID           `json:"service_ids"`
	ComponentsAffected *[]string              `json:"components_affected"`
	ScheduledAt        *time.Time             `json:"scheduled_at"`
}

type addIncidentUpdateRequest struct {
	Description string                `json:"description" binding:"required"`
	Status      models.IncidentStatus `json:"status" binding:"required"`
}

// Create handles POST /v1/incidents.
func (h *IncidentHandler) Create(c *gin.Context) {
	var req createIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inc, err := h.repo.Create(c.Request.Context(), middleware.GetOrganizationID(c), repository.CreateIncidentInput{
		UserID:             middleware.GetUserID(c),
		Title:              req.Title,
		Description:        req.Description,
		Status:             req.Status,
		Severity:           req.Severity,
		ServiceIDs:         req.ServiceIDs,
		ComponentsAffected: req.ComponentsAffected,
		ScheduledAt:        req.ScheduledAt,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.publisher.Publish(ws.IncidentCreated(inc))
	c.JSON(http.StatusCreated, inc)
}

// List handles GET /v1/incidents.
func (h *IncidentHandler) List(c *gin.Context) {
	incidents, err := h.repo.ListByOrganization(c.Request.Context(), middleware.GetOrganizationID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, incidents)
}

// GetByID handles GET /v1/incidents/:id.
func (h *IncidentHandler) GetByID(c *gin.Context) {
	incidentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident id"})
		return
	}

	inc, err := h.repo.GetByID(c.Request.Context(), middleware.GetOrganizationID(c), incidentID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if inc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
		return
	}
	c.JSON(http.StatusOK, inc)
}

// Update handles PUT /v1/incidents/:id. When the edit changed nothing
// (and supplied no service set), the committed row comes back unchanged
// and no event is published — there is nothing broadcast-worthy.
func (h *IncidentHandler) Update(c *gin.Context) {
	incidentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident id"})
		return
	}

	var req updateIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inc, changed, err := h.repo.Update(c.Request.Context(), middleware.GetOrganizationID(c), incidentID, repository.IncidentPatch{
		UserID:             middleware.GetUserID(c),
		Title:              req.Title,
		Description:        req.Description,
		Status:             req.Status,
		Severity:           req.Severity,
		ServiceIDs:         req.ServiceIDs,
		ComponentsAffected: req.ComponentsAffected,
		ScheduledAt:        req.ScheduledAt,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if changed {
		h.publisher.Publish(ws.IncidentUpdated(inc))
	}
	c.JSON(http.StatusOK, inc)
}

// AddUpdate handles POST /v1/incidents/:id/updates — the staff "post a
// status update" action. Responds with the appended audit-log entry;
// broadcasts the full updated incident.
func (h *IncidentHandler) AddUpdate(c *gin.Context) {
	incidentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident id"})
		return
	}

	var req addIncidentUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inc, err := h.repo.AddUpdate(c.Request.Context(), middleware.GetOrganizationID(c), incidentID, repository.AddIncidentUpdateInput{
		UserID:      middleware.GetUserID(c),
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if len(inc.Updates) == 0 {
		respondError(c, h.logger, apperr.Storage("incident returned without its update log", nil))
		return
	}

	h.publisher.Publish(ws.IncidentUpdated(inc))
	c.JSON(http.StatusCreated, inc.Updates[len(inc.Updates)-1])
}

// Delete handles DELETE /v1/incidents/:id.
func (h *IncidentHandler) Delete(c *gin.Context) {
	incidentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident id"})
		return
	}

	orgID := middleware.GetOrganizationID(c)
	if err := h.repo.Delete(c.Request.Context(), orgID, incidentID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.publisher.Publish(ws.IncidentDeleted(orgID, incidentID))
	c.JSON(http.StatusOK, gin.H{"message": "incident deleted"})
}
