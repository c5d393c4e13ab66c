package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/statusdeck/statusdeck/internal/cache"
	"github.com/statusdeck/statusdeck/internal/middleware"
	"github.com/statusdeck/statusdeck/internal/models"
	"github.com/statusdeck/statusdeck/internal/repository"
	"github.com/statusdeck/statusdeck/internal/status"
	"go.uber.org/zap"
)

// OrganizationHandler covers the staff organization profile and the
// anonymous public status-page reads. The public reads resolve the
// organization by slug — through the Redis cache when it is warm — and
// must return data consistent with what the broadcast stream will later
// reference by id; clients load these, then join the topic.
type OrganizationHandler struct {
	orgRepo repository.OrganizationRepository
	svcRepo repository.ServiceRepository
	incRepo repository.IncidentRepository
	slugs   *cache.SlugCache
	logger  *zap.Logger
}

func NewOrganizationHandler(
	orgRepo repository.OrganizationRepository,
	svcRepo repository.ServiceRepository,
	incRepo repository.IncidentRepository,
	slugs *cache.SlugCache,
	logger *zap.Logger,
) *OrganizationHandler {
	return &OrganizationHandler{
		orgRepo: orgRepo,
		svcRepo: svcRepo,
		incRepo: incRepo,
		slugs:   slugs,
		logger:  logger,
	}
}

type updateOrganizationRequest struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
}

// Get handles GET /v1/organization (staff).
func (h *OrganizationHandler) Get(c *gin.Context) {
	org, err := h.orgRepo.GetByID(c.Request.Context(), middleware.GetOrganizationID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if org == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	}
	c.JSON(http.StatusOK, org)
}

// Update handles PUT /v1/organization (staff, admin only).
func (h *OrganizationHandler) Update(c *gin.Context) {
	var req updateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orgID := middleware.GetOrganizationID(c)
	current, err := h.orgRepo.GetByID(c.Request.Context(), orgID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if current == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	}

	org, err := h.orgRepo.Update(c.Request.Context(), orgID, repository.OrganizationPatch{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	// The cached row is stale under both the old and any new slug.
	h.slugs.Invalidate(c.Request.Context(), current.Slug)
	if org.Slug != current.Slug {
		h.slugs.Invalidate(c.Request.Context(), org.Slug)
	}

	c.JSON(http.StatusOK, org)
}

// resolveSlug finds the organization for a public request, preferring
// the cache.
func (h *OrganizationHandler) resolveSlug(ctx context.Context, slug string) (*models.Organization, error) {
	if org := h.slugs.GetOrganization(ctx, slug); org != nil {
		return org, nil
	}

	org, err := h.orgRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if org != nil {
		h.slugs.SetOrganization(ctx, org)
	}
	return org, nil
}

// PublicGet handles GET /v1/public/:slug — the status page's first
// call; the id it returns is what the page passes to joinTopic.
func (h *OrganizationHandler) PublicGet(c *gin.Context) {
	org, err := h.resolveSlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if org == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	}
	c.JSON(http.StatusOK, org)
}

// PublicServices handles GET /v1/public/:slug/services.
func (h *OrganizationHandler) PublicServices(c *gin.Context) {
	org, err := h.resolveSlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if org == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	}

	services, err := h.svcRepo.ListByOrganization(c.Request.Context(), org.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"organization":   org,
		"services":       services,
		"overall_status": status.Overall(services),
	})
}

// PublicIncidents handles GET /v1/public/:slug/incidents.
func (h *OrganizationHandler) PublicIncidents(c *gin.Context) {
	org, err := h.resolveSlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if org == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
		return
	}

	incidents, err := h.incRepo.ListByOrganization(c.Request.Context(), org.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"organization": org,
		"incidents":    incidents,
	})
}
