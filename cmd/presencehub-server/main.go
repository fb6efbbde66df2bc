package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/presencehub/presencehub/pkg/presencehub/apikeys"
	"github.com/presencehub/presencehub/pkg/presencehub/auth"
	"github.com/presencehub/presencehub/pkg/presencehub/cache"
	"github.com/presencehub/presencehub/pkg/presencehub/config"
	"github.com/presencehub/presencehub/pkg/presencehub/connections"
	"github.com/presencehub/presencehub/pkg/presencehub/database"
	"github.com/presencehub/presencehub/pkg/presencehub/models"
	"github.com/presencehub/presencehub/pkg/presencehub/provider"
	"github.com/presencehub/presencehub/pkg/presencehub/resources"
	"github.com/presencehub/presencehub/pkg/presencehub/retention"
	syncsvc "github.com/presencehub/presencehub/pkg/presencehub/sync"

	_ "github.com/presencehub/presencehub/api/swagger"
)

// @title PresenceHub API
// @version 1.0
// @description Business-profile dashboard backend: connect an account, sync its locations, reviews, questions and posts, and manage retention after disconnect.

// @contact.name PresenceHub Support
// @contact.url https://github.com/presencehub/presencehub

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token or API key. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	auth.Configure(cfg.JWTSecret, time.Duration(cfg.JWTLifetimeHours)*time.Hour)

	// Connect to database
	if err := database.Connect(cfg.DBPath); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run auto-migrations
	if err := models.AutoMigrate(database.GetDB()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Create default admin user if no admin exists
	if err := ensureAdminExists(); err != nil {
		log.Fatalf("Failed to ensure admin user exists: %v", err)
	}

	prov := provider.New(database.GetDB(), provider.Config{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		RedirectURL:  cfg.BaseURL + "/api/connections/callback",
		AuthURL:      cfg.OAuthAuthURL,
		TokenURL:     cfg.OAuthTokenURL,
		IssuerURL:    cfg.OAuthIssuerURL,
		APIBaseURL:   cfg.ProviderAPIBase,
	})

	resourceCache := cache.NewNop()
	if cfg.RedisAddr != "" {
		resourceCache = cache.NewRedis(cfg.RedisAddr, "presencehub")
		log.Printf("Using Redis cache at %s", cfg.RedisAddr)
	}

	// Set up Gin router
	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"service": "presencehub",
			})
		})

		// Auth routes (public)
		authHandler := auth.NewHandler(database.GetDB())
		authHandler.RegisterRoutes(api.Group("/auth"))

		// Combined auth middleware (accepts JWT or API key)
		combinedAuth := apikeys.CombinedAuthMiddleware(database.GetDB())

		// API keys routes (JWT only - need to be logged in to manage keys)
		apiKeysHandler := apikeys.NewHandler(database.GetDB())
		apiKeysHandler.RegisterRoutes(api.Group("", auth.AuthMiddleware()))

		// Connection routes (protected - accepts JWT or API key), plus the
		// public OAuth callback which authenticates via state
		connectionsHandler := connections.NewHandler(database.GetDB(), prov, []byte(cfg.JWTSecret))
		connectionsHandler.RegisterRoutes(api.Group("", combinedAuth))
		connectionsHandler.RegisterPublicRoutes(api.Group(""))

		// Sync routes (protected)
		gate := syncsvc.NewGate(database.GetDB(), time.Duration(cfg.SyncCooldownSeconds)*time.Second)
		syncService := syncsvc.NewService(database.GetDB(), prov, gate, resourceCache)
		syncHandler := syncsvc.NewHandler(syncService)
		syncHandler.RegisterRoutes(api.Group("", combinedAuth))

		// Resource read routes (protected)
		resourcesHandler := resources.NewHandler(database.GetDB(), resourceCache, time.Duration(cfg.CacheTTLSeconds)*time.Second)
		resourcesHandler.RegisterRoutes(api.Group("", combinedAuth))

		// Disconnect and retention routes (protected)
		retentionManager := retention.NewManager(database.GetDB(), resourceCache)
		retentionHandler := retention.NewHandler(retentionManager)
		retentionHandler.RegisterRoutes(api.Group("", combinedAuth))

		// Admin routes (JWT only, admin role required)
		adminGroup := api.Group("/admin")
		adminGroup.Use(auth.AuthMiddleware(), auth.RequireAdmin())
		retentionHandler.RegisterAdminRoutes(adminGroup)
	}

	log.Printf("Starting PresenceHub server on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// ensureAdminExists creates a default admin user if no admin exists in the database.
func ensureAdminExists() error {
	db := database.GetDB()

	// Check if any admin user exists
	var count int64
	if err := db.Model(&models.User{}).Where("system_role = ?", models.SystemRoleAdmin).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil // Admin already exists
	}

	// Create default admin user
	hashedPassword, err := auth.HashPassword("changeme")
	if err != nil {
		return err
	}

	adminUser := models.User{
		Email:        "admin@presencehub.local",
		Name:         "Admin",
		PasswordHash: hashedPassword,
		SystemRole:   models.SystemRoleAdmin,
	}

	if err := db.Create(&adminUser).Error; err != nil {
		return err
	}

	log.Printf("Created default admin user: admin@presencehub.local (password: changeme)")
	return nil
}
