package app

import (
	"fmt"

	"github.com/lalocmtz/adbroll-backend/internal/clients/elevenlabs"
	"github.com/lalocmtz/adbroll-backend/internal/clients/gcp"
	"github.com/lalocmtz/adbroll-backend/internal/clients/openai"
	redisbus "github.com/lalocmtz/adbroll-backend/internal/clients/redis"
	"github.com/lalocmtz/adbroll-backend/internal/clients/render"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
)

type Clients struct {
	Bucket gcp.BucketService
	Speech gcp.Speech
	AI     openai.Client
	TTS    elevenlabs.Client
	Render render.Client
	Bus    redisbus.ProgressBus
}

func wireClients(log *logger.Logger) (Clients, error) {
	bucket, err := gcp.NewBucketService(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init bucket service: %w", err)
	}
	speech, err := gcp.NewSpeech(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init speech client: %w", err)
	}
	ai, err := openai.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}
	tts, err := elevenlabs.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init elevenlabs client: %w", err)
	}
	renderClient, err := render.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init render client: %w", err)
	}
	bus, err := redisbus.NewProgressBus(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init progress bus: %w", err)
	}

	return Clients{
		Bucket: bucket,
		Speech: speech,
		AI:     ai,
		TTS:    tts,
		Render: renderClient,
		Bus:    bus,
	}, nil
}
