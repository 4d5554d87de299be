package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/lalocmtz/adbroll-backend/internal/jobs"
	"github.com/lalocmtz/adbroll-backend/internal/jobs/pipeline/videoanalyze"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/services"
	"github.com/lalocmtz/adbroll-backend/internal/sse"
)

type Services struct {
	Notifier    services.Notifier
	ScriptGen   services.ScriptGenService
	Catalog     services.CatalogService
	Voiceover   services.VoiceoverService
	Progress    services.ProgressService
	Fanout      services.FanoutService
	Aggregator  services.Aggregator
	Coordinator services.Coordinator

	JobRegistry *jobs.Registry
	JobWorker   *jobs.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, reposet Repos, clientset Clients, hub *sse.Hub) (Services, error) {
	notify := services.NewNotifier(log, hub)
	scriptGen := services.NewScriptGenService(log, clientset.AI)
	catalog := services.NewCatalogService(log, reposet.AssetFolder, reposet.Asset, reposet.Section)
	voiceover := services.NewVoiceoverService(log, clientset.TTS, clientset.Bucket)
	progress := services.NewProgressService(log, reposet.Variant, clientset.Bus, clientset.Bucket)
	fanout := services.NewFanoutService(log, reposet.Variant, reposet.Asset, clientset.Render, progress)
	coordinator := services.NewCoordinator(log, reposet.Analysis, reposet.Section, reposet.Project, reposet.JobRun, voiceover, fanout)
	// The coordinator doubles as the session completer: a finished batch moves
	// the workflow machine from rendering to done.
	aggregator := services.NewAggregator(log, reposet.Variant, reposet.Project, clientset.Bucket, notify, coordinator)

	registry := jobs.NewRegistry()
	analyzePipeline := videoanalyze.NewPipeline(
		db,
		log,
		reposet.Brand,
		reposet.Analysis,
		reposet.Section,
		clientset.Bucket,
		clientset.Speech,
		scriptGen,
	)
	if err := registry.Register(analyzePipeline); err != nil {
		return Services{}, fmt.Errorf("register analyze pipeline: %w", err)
	}
	worker := jobs.NewWorker(db, log, reposet.JobRun, registry, notify)

	return Services{
		Notifier:    notify,
		ScriptGen:   scriptGen,
		Catalog:     catalog,
		Voiceover:   voiceover,
		Progress:    progress,
		Fanout:      fanout,
		Aggregator:  aggregator,
		Coordinator: coordinator,
		JobRegistry: registry,
		JobWorker:   worker,
	}, nil
}
