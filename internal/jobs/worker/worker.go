package worker

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/amicus-backend/internal/data/repos"
	"github.com/yungbote/amicus-backend/internal/jobs/runtime"
	"github.com/yungbote/amicus-backend/internal/observability"
	"github.com/yungbote/amicus-backend/internal/pkg/dbctx"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/services"
	"github.com/yungbote/amicus-backend/internal/utils"
)

type Config struct {
	Concurrency  int
	PollInterval time.Duration
	// MaxAttempts bounds automatic re-claims of failed jobs. Zero leaves
	// failed jobs alone until they are restarted explicitly.
	MaxAttempts       int
	RetryDelay        time.Duration
	StaleRunning      time.Duration
	HeartbeatInterval time.Duration
}

func ConfigFromEnv(log *logger.Logger) Config {
	return Config{
		Concurrency:       utils.GetEnvAsInt("WORKER_CONCURRENCY", 4, log),
		PollInterval:      utils.GetEnvAsSeconds("WORKER_POLL_SECONDS", time.Second, log),
		MaxAttempts:       utils.GetEnvAsInt("JOB_MAX_ATTEMPTS", 0, log),
		RetryDelay:        utils.GetEnvAsSeconds("JOB_RETRY_DELAY_SECONDS", 30*time.Second, log),
		StaleRunning:      utils.GetEnvAsSeconds("JOB_STALE_RUNNING_SECONDS", 30*time.Minute, log),
		HeartbeatInterval: utils.GetEnvAsSeconds("JOB_HEARTBEAT_SECONDS", 30*time.Second, log),
	}
}

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	events   repos.JobRunEventRepo
	registry *runtime.Registry
	notify   services.JobNotifier
	metrics  *observability.Metrics
	cfg      Config
}

func NewWorker(
	db *gorm.DB,
	baseLog *logger.Logger,
	repo repos.JobRunRepo,
	events repos.JobRunEventRepo,
	registry *runtime.Registry,
	notify services.JobNotifier,
	metrics *observability.Metrics,
	cfg Config,
) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 30 * time.Second
	}
	if cfg.StaleRunning <= 0 {
		cfg.StaleRunning = 30 * time.Minute
	}
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		events:   events,
		registry: registry,
		notify:   notify,
		metrics:  metrics,
		cfg:      cfg,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency, "handlers", w.registry.Types())
	for i := 0; i < w.cfg.Concurrency; i++ {
		go w.runLoop(ctx, i+1)
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx, workerID); err != nil {
				w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
			}
		}
	}
}

// RunOnce claims at most one job and runs it to its next stopping point. It
// reports whether a job was claimed.
func (w *Worker) RunOnce(ctx context.Context, workerID int) (bool, error) {
	job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, w.cfg.MaxAttempts, w.cfg.RetryDelay, w.cfg.StaleRunning)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	jc := runtime.NewContext(ctx, runtime.Deps{
		DB:     w.db,
		Repo:   w.repo,
		Events: w.events,
		Notify: w.notify,
		Log:    w.log,
	}, job)

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		w.log.Warn("No handler registered for job_type",
			"worker_id", workerID,
			"job_type", job.JobType,
			"job_id", job.ID,
		)
		jc.Fail("dispatch", &missingHandlerError{JobType: job.JobType})
		w.metrics.IncJob(job.JobType, jc.Job.Status)
		return true, nil
	}

	stopHeartbeat := w.heartbeat(ctx, jc)
	defer stopHeartbeat()

	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("Job handler panic",
					"worker_id", workerID,
					"job_id", job.ID,
					"job_type", job.JobType,
					"panic", r,
				)
				jc.Fail("panic", &panicError{Val: r})
			}
		}()
		if runErr := h.Run(jc); runErr != nil {
			jc.Fail("run", runErr)
		}
	}()
	w.metrics.IncJob(job.JobType, jc.Job.Status)
	return true, nil
}

// heartbeat keeps a long stage from looking stale to other workers.
func (w *Worker) heartbeat(ctx context.Context, jc *runtime.Context) func() {
	if w.cfg.HeartbeatInterval <= 0 {
		return func() {}
	}
	hctx, cancel := context.WithCancel(ctx)
	go func() {
		t := time.NewTicker(w.cfg.HeartbeatInterval)
		defer t.Stop()
		for {
			select {
			case <-hctx.Done():
				return
			case <-t.C:
				if err := w.repo.Heartbeat(dbctx.Context{Ctx: hctx}, jc.Job.ID); err != nil {
					w.log.Warn("job heartbeat failed", "job_id", jc.Job.ID, "error", err)
				}
			}
		}
	}()
	return cancel
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
