package server

import (
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/lalocmtz/adbroll-backend/internal/handlers"
	"github.com/lalocmtz/adbroll-backend/internal/middleware"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log             *logger.Logger
	AnalysisHandler *handlers.AnalysisHandler
	CatalogHandler  *handlers.CatalogHandler
	VariantHandler  *handlers.VariantHandler
	VoiceHandler    *handlers.VoiceHandler
	SSEHandler      *handlers.SSEHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("adbroll-backend"))
	router.Use(middleware.RequestLogger(cfg.Log))

	allowOrigins := []string{"http://localhost:3000", "http://localhost:5173"}
	if env := os.Getenv("CORS_ALLOW_ORIGINS"); env != "" {
		allowOrigins = strings.Split(env, ",")
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// Brand catalog
		api.POST("/brands", cfg.CatalogHandler.CreateBrand)
		api.POST("/brands/:id/folders", cfg.CatalogHandler.CreateFolder)
		api.POST("/brands/:id/assets", cfg.CatalogHandler.UploadAsset)
		api.GET("/brands/:id/catalog", cfg.CatalogHandler.GetCatalog)
		api.POST("/assets/:id/move", cfg.CatalogHandler.MoveAsset)

		// Analysis pipeline
		api.POST("/analyses", cfg.AnalysisHandler.CreateAnalysis)
		api.GET("/analyses/:id", cfg.AnalysisHandler.GetAnalysis)
		api.GET("/analyses/:id/wait", cfg.AnalysisHandler.WaitAnalysis)
		api.PUT("/analyses/:id/sections/:sectionID", cfg.AnalysisHandler.UpdateSectionText)
		api.POST("/analyses/:id/sections/:sectionID/rewrite", cfg.AnalysisHandler.RewriteSection)
		api.POST("/analyses/:id/validate", cfg.AnalysisHandler.Validate)
		api.POST("/analyses/:id/approve-script", cfg.AnalysisHandler.ApproveScript)
		api.PUT("/analyses/:id/assignments", cfg.AnalysisHandler.SetAssignments)
		api.PUT("/analyses/:id/voice", cfg.AnalysisHandler.SetVoice)
		api.PUT("/analyses/:id/variants", cfg.AnalysisHandler.SetVariantCount)
		api.POST("/analyses/:id/approve", cfg.AnalysisHandler.Approve)

		// Voices
		api.GET("/voices", cfg.VoiceHandler.ListVoices)

		// Render progress
		api.GET("/variants/progress", cfg.VariantHandler.GetProgress)
		api.POST("/render/callback", cfg.VariantHandler.RenderCallback)

		// SSE
		api.GET("/sse/stream", cfg.SSEHandler.Stream)
		api.POST("/sse/subscribe", cfg.SSEHandler.Subscribe)
		api.POST("/sse/unsubscribe", cfg.SSEHandler.Unsubscribe)
	}

	return router
}
