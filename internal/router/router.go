package router

import (
	"time"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Narimm/OpenVPMS-sub018/internal/config"
	"github.com/Narimm/OpenVPMS-sub018/internal/handler"
	"github.com/Narimm/OpenVPMS-sub018/internal/importer"
	"github.com/Narimm/OpenVPMS-sub018/internal/infra"
	"github.com/Narimm/OpenVPMS-sub018/internal/middleware"
	"github.com/Narimm/OpenVPMS-sub018/internal/repository"
	"github.com/Narimm/OpenVPMS-sub018/internal/service"
	"github.com/Narimm/OpenVPMS-sub018/internal/worker"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, groupsCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Infrastructure ───────────────────────────────────────────────────────
	groupsClient := infra.NewGroupsClient(cfg.GroupsServiceURL, groupsCB)

	// ── Repositories ─────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	priceRepo := repository.NewPriceRepository(db)
	batchRepo := repository.NewImportBatchRepository(db)
	logRepo := repository.NewChangeLogRepository(db)
	groupRepo := repository.NewPricingGroupRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(userRepo, cfg)
	productSvc := service.NewProductService(productRepo, priceRepo, logRepo)
	groupSvc := service.NewGroupService(groupRepo, groupsClient, rdb)

	// Worker dispatcher — injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)

	pipeline := importer.NewPipeline(batchRepo, productRepo, priceRepo, logRepo, groupRepo, cfg.PDFStoragePath)
	importSvc := service.NewImportService(batchRepo, pipeline, dispatcher, cfg)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	usersH := handler.NewUsersHandler(authSvc)
	productsH := handler.NewProductsHandler(productSvc)
	importsH := handler.NewImportsHandler(importSvc, cfg.MaxUploadBytes)
	groupsH := handler.NewGroupsHandler(groupSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))

	// Auth (public)
	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		// Roles: viewer, importer, admin — declared per-endpoint
		v1.GET("/products", middleware.RequireRole("viewer", "importer", "admin"), productsH.List)
		v1.GET("/products/:id", middleware.RequireRole("viewer", "importer", "admin"), productsH.Get)
		v1.GET("/products/:id/history", middleware.RequireRole("viewer", "importer", "admin"), productsH.History)
		v1.DELETE("/products/:id", middleware.RequireRole("admin"), productsH.Deactivate)

		imports := v1.Group("/imports", middleware.RequireRole("importer", "admin"))
		{
			imports.POST("", importsH.Upload)
			imports.GET("", importsH.List)
			imports.GET("/:id", importsH.Get)
		}

		v1.GET("/pricing-groups", middleware.RequireRole("viewer", "importer", "admin"), groupsH.List)
		v1.POST("/pricing-groups/sync", middleware.RequireRole("admin"), groupsH.Sync)

		users := v1.Group("/users", middleware.RequireRole("admin"))
		{
			users.POST("", usersH.Create)
			users.GET("", usersH.List)
			users.PUT("/:id", usersH.Update)
			users.DELETE("/:id", usersH.Deactivate)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
