package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/statusdeck/statusdeck/internal/api"
	"github.com/statusdeck/statusdeck/internal/cache"
	"github.com/statusdeck/statusdeck/internal/config"
	"github.com/statusdeck/statusdeck/internal/db"
	"github.com/statusdeck/statusdeck/internal/middleware"
	"github.com/statusdeck/statusdeck/internal/models"
	"github.com/statusdeck/statusdeck/internal/observ"
	"github.com/statusdeck/statusdeck/internal/repository/postgres"
	"github.com/statusdeck/statusdeck/internal/ws"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	// A cache miss or a dead Redis only costs a database round trip, so
	// cache construction failures are fatal but runtime errors are not.
	slugs, err := cache.NewSlugCache(cfg.RedisURL, logger)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer slugs.Close()

	pool := database.Pool()
	orgRepo := postgres.NewOrganizationStore(pool)
	userRepo := postgres.NewUserStore(pool)
	teamRepo := postgres.NewTeamStore(pool)
	serviceRepo := postgres.NewServiceStore(pool)
	incidentRepo := postgres.NewIncidentStore(pool)

	hub := ws.NewHub(logger)
	wsHandler := ws.NewHandler(hub, userRepo, cfg.JWTSecret, cfg.CORSOrigins, logger)

	authHandler := api.NewAuthHandler(userRepo, orgRepo, cfg.JWTSecret, logger)
	orgHandler := api.NewOrganizationHandler(orgRepo, serviceRepo, incidentRepo, slugs, logger)
	teamHandler := api.NewTeamHandler(teamRepo, logger)
	serviceHandler := api.NewServiceHandler(serviceRepo, hub, logger)
	incidentHandler := api.NewIncidentHandler(incidentRepo, hub, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := gin.New()
	srv.Use(gin.Recovery(), middleware.CORS(cfg.CORSOrigins))

	// Health check stays public so load balancers can probe it.
	srv.GET("/v1/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := srv.Group("/v1")

	// Anonymous surface: status pages resolved by slug, plus the
	// websocket endpoint (which authenticates per connection itself).
	v1.GET("/public/:slug", orgHandler.PublicGet)
	v1.GET("/public/:slug/services", orgHandler.PublicServices)
	v1.GET("/public/:slug/incidents", orgHandler.PublicIncidents)
	v1.GET("/ws", wsHandler.Serve)

	v1.POST("/auth/signup", authHandler.Signup)
	v1.POST("/auth/login", authHandler.Login)

	staff := v1.Group("")
	staff.Use(middleware.Auth(cfg.JWTSecret))

	staff.GET("/organization", orgHandler.Get)
	staff.PUT("/organization", middleware.RequireRole(models.RoleAdmin), orgHandler.Update)

	staff.GET("/teams", teamHandler.List)
	staff.POST("/teams", middleware.RequireRole(models.RoleAdmin), teamHandler.Create)
	staff.DELETE("/teams/:id", middleware.RequireRole(models.RoleAdmin), teamHandler.Delete)

	editors := middleware.RequireRole(models.RoleAdmin, models.RoleEditor)

	staff.GET("/services", serviceHandler.List)
	staff.GET("/services/:id", serviceHandler.GetByID)
	staff.POST("/services", editors, serviceHandler.Create)
	staff.PUT("/services/:id", editors, serviceHandler.Update)
	staff.DELETE("/services/:id", middleware.RequireRole(models.RoleAdmin), serviceHandler.Delete)

	staff.GET("/incidents", incidentHandler.List)
	staff.GET("/incidents/:id", incidentHandler.GetByID)
	staff.POST("/incidents", editors, incidentHandler.Create)
	staff.PUT("/incidents/:id", editors, incidentHandler.Update)
	staff.POST("/incidents/:id/updates", editors, incidentHandler.AddUpdate)
	staff.DELETE("/incidents/:id", middleware.RequireRole(models.RoleAdmin), incidentHandler.Delete)

	logger.Info("starting statusdeck",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	if err := srv.Run(":" + cfg.Port); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
