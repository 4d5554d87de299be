package app

import (
	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/utils"
)

type Config struct {
	Port          string
	WorkerEnabled bool
}

func LoadConfig(log *logger.Logger) Config {
	port := utils.GetEnv("PORT", "8080", log)
	workerEnabled := utils.GetEnvAsInt("WORKER_ENABLED", 1, log)
	return Config{
		Port:          port,
		WorkerEnabled: workerEnabled != 0,
	}
}
