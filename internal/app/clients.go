package app

import (
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/amicus-backend/internal/modules/briefs/waves"
	"github.com/yungbote/amicus-backend/internal/observability"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/platform/llm"
	"github.com/yungbote/amicus-backend/internal/platform/llm/router"
	"github.com/yungbote/amicus-backend/internal/realtime/bus"
	"github.com/yungbote/amicus-backend/internal/utils"
)

type Clients struct {
	SSEBus  bus.Bus
	Redis   *goredis.Client
	LLM     llm.Engine
	Catalog *waves.Catalog
}

func wireClients(log *logger.Logger, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis is optional; without it SSE events stay in this process.
	var sseBus bus.Bus
	if strings.TrimSpace(utils.GetEnv("REDIS_URL", "", log)) != "" || strings.TrimSpace(utils.GetEnv("REDIS_ADDR", "", log)) != "" {
		b, err := bus.NewRedisBus(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis SSE bus: %w", err)
		}
		sseBus = b
	}

	engine, err := router.NewFromEnv(log, metrics)
	if err != nil {
		if sseBus != nil {
			_ = sseBus.Close()
		}
		return Clients{}, fmt.Errorf("init llm router: %w", err)
	}

	catalog, err := waves.CatalogFromEnv(log)
	if err != nil {
		if sseBus != nil {
			_ = sseBus.Close()
		}
		return Clients{}, fmt.Errorf("load wave catalog: %w", err)
	}

	return Clients{
		SSEBus:  sseBus,
		Redis:   bus.Client(sseBus),
		LLM:     engine,
		Catalog: catalog,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.SSEBus != nil {
		_ = c.SSEBus.Close()
	}
}
