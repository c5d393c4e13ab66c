package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/statusdeck/statusdeck/internal/middleware"
	"github.com/statusdeck/statusdeck/internal/repository"
	"go.uber.org/zap"
)

type TeamHandler struct {
	repo   repository.TeamRepository
	logger *zap.Logger
}

func NewTeamHandler(repo repository.TeamRepository, logger *zap.Logger) *TeamHandler {
	return &TeamHandler{repo: repo, logger: logger}
}

type createTeamRequest struct {
	Name string `json:"name" binding:"required"`
}

// Create handles POST /v1/teams.
func (h *TeamHandler) Create(c *gin.Context) {
	var req createTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	team, err := h.repo.Create(c.Request.Context(), middleware.GetOrganizationID(c), req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, team)
}

// List handles GET /v1/teams.
func (h *TeamHandler) List(c *gin.Context) {
	teams, err := h.repo.ListByOrganization(c.Request.Context(), middleware.GetOrganizationID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, teams)
}

// Delete handles DELETE /v1/teams/:id.
func (h *TeamHandler) Delete(c *gin.Context) {
	teamID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid team id"})
		return
	}

	if err := h.repo.Delete(c.Request.Context(), middleware.GetOrganizationID(c), teamID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "team deleted"})
}
