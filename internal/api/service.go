package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/statusdeck/statusdeck/internal/middleware"
	"github.com/statusdeck/statusdeck/internal/models"
	"github.com/statusdeck/statusdeck/internal/repository"
	"github.com/statusdeck/statusdeck/internal/ws"
	"go.uber.org/zap"
)

// ServiceHandler mutates monitored components. Every successful
// mutation publishes the committed row to the organization's topic —
// publish happens strictly after the store returns, never before.
type ServiceHandler struct {
	repo      repository.ServiceRepository
	publisher Publisher
	logger    *zap.Logger
}

func NewServiceHandler(repo repository.ServiceRepository, publisher Publisher, logger *zap.Logger) *ServiceHandler {
	return &ServiceHandler{repo: repo, publisher: publisher, logger: logger}
}

type createServiceRequest struct {
	Name        string               `json:"name" binding:"required"`
	Description string               `json:"description"`
	Status      models.ServiceStatus `json:"status"`
	Order       int                  `json:"order"`
}

type updateServiceRequest struct {
	Name        *string               `json:"name"`
	Description *string               `json:"description"`
	Status      *models.ServiceStatus `json:"status"`
	Order       *int                  `json:"order"`
}

// Create handles POST /v1/services.
func (h *ServiceHandler) Create(c *gin.Context) {
	var req createServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc, err := h.repo.Create(c.Request.Context(), middleware.GetOrganizationID(c), repository.CreateServiceInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		Order:       req.Order,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.publisher.Publish(ws.ServiceCreated(svc))
	c.JSON(http.StatusCreated, svc)
}

// List handles GET /v1/services.
func (h *ServiceHandler) List(c *gin.Context) {
	services, err := h.repo.ListByOrganization(c.Request.Context(), middleware.GetOrganizationID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, services)
}

// GetByID handles GET /v1/services/:id.
func (h *ServiceHandler) GetByID(c *gin.Context) {
	serviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid service id"})
		return
	}

	svc, err := h.repo.GetByID(c.Request.Context(), middleware.GetOrganizationID(c), serviceID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if svc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
		return
	}
	c.JSON(http.StatusOK, svc)
}

// Update handles PUT /v1/services/:id. Status changes are the
// highest-frequency mutation on the system; re-asserting the current
// status is a valid no-op that still returns (and broadcasts) the row.
func (h *ServiceHandler) Update(c *gin.Context) {
	serviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid service id"})
		return
	}

	var req updateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc, err := h.repo.Update(c.Request.Context(), middleware.GetOrganizationID(c), serviceID, repository.ServicePatch{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		Order:       req.Order,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.publisher.Publish(ws.ServiceUpdated(svc))
	c.JSON(http.StatusOK, svc)
}

// Delete handles DELETE /v1/services/:id.
func (h *ServiceHandler) Delete(c *gin.Context) {
	serviceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid service id"})
		return
	}

	orgID := middleware.GetOrganizationID(c)
	if err := h.repo.Delete(c.Request.Context(), orgID, serviceID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.publisher.Publish(ws.ServiceDeleted(orgID, serviceID))
	c.JSON(http.StatusOK, gin.H{"message": "service deleted"})
}
