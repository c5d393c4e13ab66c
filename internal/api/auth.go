package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/statusdeck/statusdeck/internal/auth"
	"github.com/statusdeck/statusdeck/internal/models"
	"github.com/statusdeck/statusdeck/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

// AuthHandler serves the only public mutation endpoints: signup and
// login. Signup bootstraps a new organization with its first admin.
type AuthHandler struct {
	userRepo  repository.UserRepository
	orgRepo   repository.OrganizationRepository
	jwtSecret string
	logger    *zap.Logger
}

func NewAuthHandler(
	userRepo repository.UserRepository,
	orgRepo repository.OrganizationRepository,
	jwtSecret string,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		userRepo:  userRepo,
		orgRepo:   orgRepo,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

type signupRequest struct {
	OrganizationName string `json:"organization_name" binding:"required"`
	Slug             string `json:"slug" binding:"required"`
	Description      string `json:"description"`
	Username         string `json:"username" binding:"required"`
	Email            string `json:"email" binding:"required,email"`
	Password         string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Signup handles POST /v1/auth/signup.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := h.userRepo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
		return
	}

	org, err := h.orgRepo.Create(c.Request.Context(), req.OrganizationName, req.Slug, req.Description)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	user, err := h.userRepo.Create(
		c.Request.Context(),
		org.ID,
		req.Username,
		req.Email,
		string(hash),
		models.RoleAdmin,
	)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	token, err := auth.GenerateToken(user.ID, org.ID, user.Email, user.Role, h.jwtSecret, tokenTTL)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
		return
	}

	c.JSON(http.StatusCreated, authResponse{Token: token, User: user})
}

// Login handles POST /v1/auth/login. Wrong email and wrong password are
// indistinguishable to the caller.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userRepo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	token, err := auth.GenerateToken(user.ID, user.OrganizationID, user.Email, user.Role, h.jwtSecret, tokenTTL)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, authResponse{Token: token, User: user})
}
