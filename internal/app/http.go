package app

import (
	"context"

	"gorm.io/gorm"

	apphttp "github.com/yungbote/amicus-backend/internal/http"
	httpH "github.com/yungbote/amicus-backend/internal/http/handlers"
	"github.com/yungbote/amicus-backend/internal/observability"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/realtime"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Brief    *httpH.BriefHandler
	Case     *httpH.CaseHandler
	Realtime *httpH.RealtimeHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, clients Clients, svc Services, hub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if clients.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return clients.Redis.Ping(ctx).Err()
		}
	}
	return Handlers{
		Health:   httpH.NewHealthHandler(checks),
		Brief:    httpH.NewBriefHandler(svc.Briefs),
		Case:     httpH.NewCaseHandler(svc.CaseFacts),
		Realtime: httpH.NewRealtimeHandler(log, hub, svc.Briefs),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, h Handlers) *apphttp.Server {
	log.Info("Wiring router...")
	return apphttp.NewServer(apphttp.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		ServiceName:     cfg.ServiceName,
		CORSOrigins:     cfg.CORSOrigins,
		HealthHandler:   h.Health,
		BriefHandler:    h.Brief,
		CaseHandler:     h.Case,
		RealtimeHandler: h.Realtime,
	})
}
