package app

import (
	briefgen "github.com/yungbote/amicus-backend/internal/jobs/pipeline/brief_generate"
	"github.com/yungbote/amicus-backend/internal/jobs/worker"
	httpMW "github.com/yungbote/amicus-backend/internal/http/middleware"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/utils"
)

type Config struct {
	Env         string
	ServiceName string
	Version     string
	Port        string

	// RunServer and RunWorker let one binary act as API, worker or both.
	RunServer   bool
	RunWorker   bool
	AutoMigrate bool

	CORSOrigins []string
	MetricsAddr string
	FactsModel  string

	Worker   worker.Config
	Pipeline briefgen.Config
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Env:         utils.GetEnv("APP_ENV", "development", log),
		ServiceName: utils.GetEnv("OTEL_SERVICE_NAME", "amicus-api", log),
		Version:     utils.GetEnv("APP_VERSION", "dev", log),
		Port:        utils.GetEnv("PORT", "8080", log),
		RunServer:   utils.GetEnvAsBool("RUN_SERVER", true, log),
		RunWorker:   utils.GetEnvAsBool("RUN_WORKER", true, log),
		AutoMigrate: utils.GetEnvAsBool("DB_AUTO_MIGRATE", true, log),
		CORSOrigins: utils.GetEnvAsList("CORS_ALLOWED_ORIGINS", httpMW.DefaultAllowedOrigins, log),
		MetricsAddr: utils.GetEnv("METRICS_ADDR", "", log),
		FactsModel:  utils.GetEnv("FACTS_MODEL", "claude-sonnet-4-5", log),
		Worker:      worker.ConfigFromEnv(log),
		Pipeline:    briefgen.ConfigFromEnv(log),
	}
}
