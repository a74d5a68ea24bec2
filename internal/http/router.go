package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/amicus-backend/internal/http/handlers"
	httpMW "github.com/yungbote/amicus-backend/internal/http/middleware"
	"github.com/yungbote/amicus-backend/internal/observability"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	HealthHandler   *httpH.HealthHandler
	BriefHandler    *httpH.BriefHandler
	CaseHandler     *httpH.CaseHandler
	RealtimeHandler *httpH.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")

	// Briefs
	if cfg.BriefHandler != nil {
		api.POST("/briefs/generate", cfg.BriefHandler.Generate)
		api.GET("/briefs/jobs/:id", cfg.BriefHandler.GetJob)
		api.GET("/briefs/jobs/:id/logs", cfg.BriefHandler.GetLogs)
		api.GET("/briefs/jobs/:id/waves", cfg.BriefHandler.ListWaves)
		api.GET("/briefs/jobs/:id/waves/:wave", cfg.BriefHandler.GetWave)
		api.POST("/briefs/jobs/:id/cancel", cfg.BriefHandler.CancelJob)
		api.POST("/briefs/jobs/:id/restart", cfg.BriefHandler.RestartJob)
	}

	// Realtime (SSE)
	if cfg.RealtimeHandler != nil {
		api.GET("/briefs/jobs/:id/stream", cfg.RealtimeHandler.JobStream)
		api.GET("/cases/:id/stream", cfg.RealtimeHandler.CaseStream)
	}

	// Cases
	if cfg.CaseHandler != nil {
		api.POST("/cases/:id/facts/extract", cfg.CaseHandler.ExtractFacts)
	}

	return r
}
