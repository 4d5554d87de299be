package app

import (
	"github.com/lalocmtz/adbroll-backend/internal/handlers"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/sse"
)

type Handlers struct {
	Analysis *handlers.AnalysisHandler
	Catalog  *handlers.CatalogHandler
	Variant  *handlers.VariantHandler
	Voice    *handlers.VoiceHandler
	SSE      *handlers.SSEHandler
}

func wireHandlers(log *logger.Logger, serviceset Services, reposet Repos, clientset Clients, hub *sse.Hub) Handlers {
	return Handlers{
		Analysis: handlers.NewAnalysisHandler(
			log,
			serviceset.Coordinator,
			serviceset.Catalog,
			serviceset.ScriptGen,
			reposet.Analysis,
			reposet.Section,
			reposet.Project,
		),
		Catalog: handlers.NewCatalogHandler(
			log,
			serviceset.Catalog,
			reposet.Brand,
			reposet.AssetFolder,
			reposet.Asset,
			clientset.Bucket,
		),
		Variant: handlers.NewVariantHandler(log, serviceset.Progress),
		Voice:   handlers.NewVoiceHandler(serviceset.Voiceover),
		SSE:     handlers.NewSSEHandler(log, hub, serviceset.Aggregator),
	}
}
