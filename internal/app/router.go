package app

import (
	"github.com/gin-gonic/gin"

	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/server"
)

func wireRouter(log *logger.Logger, handlerset Handlers) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		Log:             log,
		AnalysisHandler: handlerset.Analysis,
		CatalogHandler:  handlerset.Catalog,
		VariantHandler:  handlerset.Variant,
		VoiceHandler:    handlerset.Voice,
		SSEHandler:      handlerset.SSE,
	})
}
