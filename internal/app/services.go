package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/amicus-backend/internal/jobs/pipeline/brief_generate"
	jobrt "github.com/yungbote/amicus-backend/internal/jobs/runtime"
	"github.com/yungbote/amicus-backend/internal/jobs/worker"
	"github.com/yungbote/amicus-backend/internal/modules/briefs/facts"
	"github.com/yungbote/amicus-backend/internal/modules/briefs/waves"
	"github.com/yungbote/amicus-backend/internal/observability"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/realtime"
	"github.com/yungbote/amicus-backend/internal/services"
)

type Services struct {
	Emitter   services.SSEEmitter
	Notifier  services.JobNotifier
	Briefs    services.BriefService
	CaseFacts services.CaseFactsService

	Registry *jobrt.Registry
	Worker   *worker.Worker
}

func wireServices(
	db *gorm.DB,
	log *logger.Logger,
	cfg Config,
	r Repos,
	clients Clients,
	hub *realtime.SSEHub,
	metrics *observability.Metrics,
) (Services, error) {
	log.Info("Wiring services...")

	// With a bus every replica forwards into its own hub; without one the
	// hub is fed directly.
	var emitter services.SSEEmitter = &services.HubEmitter{Hub: hub}
	if clients.SSEBus != nil {
		emitter = &services.RedisEmitter{Bus: clients.SSEBus, Log: log}
	}
	notify := services.NewJobNotifier(emitter)

	briefs := services.NewBriefService(db, log, services.BriefServiceDeps{
		Jobs:     r.JobRun,
		Events:   r.JobRunEvent,
		Cases:    r.Case,
		Briefs:   r.Brief,
		Waves:    r.BriefWave,
		WaveLogs: r.BriefWaveLog,
		Notify:   notify,
	})
	extractor := facts.NewExtractor(clients.LLM, cfg.FactsModel, log)
	caseFacts := services.NewCaseFactsService(db, log, r.Case, r.Document, extractor)

	registry := jobrt.NewRegistry()
	pipeline := brief_generate.New(db, log, brief_generate.Deps{
		Cases:      r.Case,
		Documents:  r.Document,
		Research:   r.Research,
		Justices:   r.Justice,
		References: r.Reference,
		Chat:       r.CaseChat,
		Briefs:     r.Brief,
		Waves:      r.BriefWave,
		WaveLogs:   r.BriefWaveLog,
		Executor:   waves.NewExecutor(clients.LLM, clients.Catalog, log),
		Notify:     notify,
		Metrics:    metrics,
	}, cfg.Pipeline)
	if err := registry.Register(pipeline); err != nil {
		return Services{}, fmt.Errorf("register %s: %w", pipeline.Type(), err)
	}

	var w *worker.Worker
	if cfg.RunWorker {
		w = worker.NewWorker(db, log, r.JobRun, r.JobRunEvent, registry, notify, metrics, cfg.Worker)
	}

	return Services{
		Emitter:   emitter,
		Notifier:  notify,
		Briefs:    briefs,
		CaseFacts: caseFacts,
		Registry:  registry,
		Worker:    w,
	}, nil
}
