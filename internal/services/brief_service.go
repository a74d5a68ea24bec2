package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/amicus-backend/internal/data/dberr"
	"github.com/yungbote/amicus-backend/internal/data/repos"
	types "github.com/yungbote/amicus-backend/internal/domain"
	"github.com/yungbote/amicus-backend/internal/modules/briefs/waves"
	"github.com/yungbote/amicus-backend/internal/pkg/ctxutil"
	"github.com/yungbote/amicus-backend/internal/pkg/dbctx"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/platform/apierr"
)

type StartBriefInput struct {
	CaseID             uuid.UUID   `json:"case_id"`
	ApprovedOutline    string      `json:"approved_outline"`
	Title              string      `json:"title,omitempty"`
	DocumentIDs        []uuid.UUID `json:"document_ids,omitempty"`
	ResearchIDs        []uuid.UUID `json:"research_ids,omitempty"`
	JusticeAnalysisIDs []uuid.UUID `json:"justice_analysis_ids,omitempty"`
	ReferenceBriefID   *uuid.UUID  `json:"reference_brief_id,omitempty"`

	IdempotencyKey string `json:"-"`
}

type BriefJobView struct {
	Job    *types.JobRun        `json:"job"`
	Brief  *types.Brief         `json:"brief"`
	Events []*types.JobRunEvent `json:"events"`
}

type BriefLogsView struct {
	JobID       uuid.UUID             `json:"job_id"`
	Status      string                `json:"status"`
	CurrentWave int                   `json:"current_wave"`
	Entries     []*types.BriefWaveLog `json:"entries"`
}

type BriefService interface {
	// Start enqueues a brief_generate job and its brief row. Replaying an
	// Idempotency-Key returns the original pair with created=false.
	Start(dbc dbctx.Context, in StartBriefInput) (job *types.JobRun, brief *types.Brief, created bool, err error)
	Get(dbc dbctx.Context, jobID uuid.UUID) (*BriefJobView, error)
	Logs(dbc dbctx.Context, jobID uuid.UUID, wave int) (*BriefLogsView, error)
	Waves(dbc dbctx.Context, jobID uuid.UUID, includeContent bool) ([]*types.BriefWave, error)
	Wave(dbc dbctx.Context, jobID uuid.UUID, wave int) (*types.BriefWave, error)
	Cancel(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error)
	Restart(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error)
}

type BriefServiceDeps struct {
	Jobs     repos.JobRunRepo
	Events   repos.JobRunEventRepo
	Cases    repos.CaseRepo
	Briefs   repos.BriefRepo
	Waves    repos.BriefWaveRepo
	WaveLogs repos.BriefWaveLogRepo
	Notify   JobNotifier
}

type briefService struct {
	db   *gorm.DB
	log  *logger.Logger
	deps BriefServiceDeps
}

const recentEventLimit = 50

func NewBriefService(db *gorm.DB, baseLog *logger.Logger, deps BriefServiceDeps) BriefService {
	return &briefService{db: db, log: baseLog.With("service", "BriefService"), deps: deps}
}

func (s *briefService) Start(dbc dbctx.Context, in StartBriefInput) (*types.JobRun, *types.Brief, bool, error) {
	if in.CaseID == uuid.Nil {
		return nil, nil, false, apierr.Invalid("missing_case_id", "case_id is required")
	}
	if strings.TrimSpace(in.ApprovedOutline) == "" {
		return nil, nil, false, apierr.Invalid("missing_outline", waves.ErrMissingOutline.Error())
	}
	key := strings.TrimSpace(in.IdempotencyKey)

	var (
		job     *types.JobRun
		brief   *types.Brief
		created bool
	)
	err := dbc.Conn(s.db).Transaction(func(tx *gorm.DB) error {
		inner := dbc.WithTx(tx)

		if key != "" {
			prev, err := s.deps.Jobs.GetByIdempotencyKey(inner, types.JobTypeBriefGenerate, key)
			if err != nil {
				return err
			}
			if prev != nil {
				b, err := s.deps.Briefs.GetByJobID(inner, prev.ID)
				if err != nil {
					return err
				}
				job, brief = prev, b
				return nil
			}
		}

		kase, err := s.deps.Cases.GetByID(inner, in.CaseID)
		if err != nil {
			return err
		}
		if kase == nil {
			return apierr.NotFound("case_not_found", "case "+in.CaseID.String())
		}

		payload, err := json.Marshal(s.payload(dbc, in))
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		now := time.Now().UTC()
		caseID := kase.ID
		job = &types.JobRun{
			ID:             uuid.New(),
			JobType:        types.JobTypeBriefGenerate,
			EntityType:     types.EntityTypeCase,
			EntityID:       &caseID,
			IdempotencyKey: key,
			Status:         types.JobStatusQueued,
			Stage:          "queued",
			Message:        "Queued",
			Payload:        datatypes.JSON(payload),
			Result:         datatypes.JSON([]byte(`{}`)),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if _, err := s.deps.Jobs.Create(inner, []*types.JobRun{job}); err != nil {
			return fmt.Errorf("create job: %w", err)
		}

		title := strings.TrimSpace(in.Title)
		if title == "" {
			title = "Brief of Amicus Curiae: " + kase.Title
		}
		brief = &types.Brief{
			CaseID:    kase.ID,
			JobID:     job.ID,
			Title:     title,
			Status:    types.BriefStatusQueued,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.deps.Briefs.Create(inner, brief); err != nil {
			return fmt.Errorf("create brief: %w", err)
		}
		s.recordEvent(inner, job, types.JobEventCreated, "Queued", map[string]any{"brief_id": brief.ID})
		created = true
		return nil
	})
	if err != nil && key != "" && dberr.IsUniqueViolation(err) {
		// a concurrent request with the same key committed first
		return s.replay(dbc, key)
	}
	if err != nil {
		return nil, nil, false, err
	}

	if created {
		s.log.Info("brief job queued", append([]interface{}{"job_id", job.ID, "brief_id", brief.ID, "case_id", in.CaseID}, ctxutil.TraceFields(dbc.Ctx)...)...)
		if s.deps.Notify != nil {
			s.deps.Notify.JobCreated(job)
		}
	}
	return job, brief, created, nil
}

func (s *briefService) replay(dbc dbctx.Context, key string) (*types.JobRun, *types.Brief, bool, error) {
	job, err := s.deps.Jobs.GetByIdempotencyKey(dbc, types.JobTypeBriefGenerate, key)
	if err != nil {
		return nil, nil, false, err
	}
	if job == nil {
		return nil, nil, false, apierr.Conflict("idempotency_conflict", "idempotency key "+key+" is in use")
	}
	brief, err := s.deps.Briefs.GetByJobID(dbc, job.ID)
	if err != nil {
		return nil, nil, false, err
	}
	s.log.Info("brief job replayed after concurrent create", append([]interface{}{"job_id", job.ID, "idempotency_key", key}, ctxutil.TraceFields(dbc.Ctx)...)...)
	return job, brief, false, nil
}

func (s *briefService) payload(dbc dbctx.Context, in StartBriefInput) types.GeneratePayload {
	pl := types.GeneratePayload{
		CaseID:             in.CaseID,
		ApprovedOutline:    in.ApprovedOutline,
		Title:              strings.TrimSpace(in.Title),
		DocumentIDs:        in.DocumentIDs,
		ResearchIDs:        in.ResearchIDs,
		JusticeAnalysisIDs: in.JusticeAnalysisIDs,
		ReferenceBriefID:   in.ReferenceBriefID,
	}
	if td := ctxutil.GetTraceData(dbc.Ctx); td != nil {
		pl.TraceID = td.TraceID
		pl.RequestID = td.RequestID
	}
	return pl
}

func (s *briefService) loadJob(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error) {
	if jobID == uuid.Nil {
		return nil, apierr.Invalid("invalid_job_id", "missing job id")
	}
	job, err := s.deps.Jobs.GetByID(dbc, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil || job.JobType != types.JobTypeBriefGenerate {
		return nil, apierr.NotFound("job_not_found", "job "+jobID.String())
	}
	return job, nil
}

func (s *briefService) Get(dbc dbctx.Context, jobID uuid.UUID) (*BriefJobView, error) {
	job, err := s.loadJob(dbc, jobID)
	if err != nil {
		return nil, err
	}
	brief, err := s.deps.Briefs.GetByJobID(dbc, job.ID)
	if err != nil {
		return nil, err
	}
	events, err := s.deps.Events.ListByJob(dbc, job.ID, recentEventLimit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*types.JobRunEvent{}
	}
	return &BriefJobView{Job: job, Brief: brief, Events: events}, nil
}

func (s *briefService) Logs(dbc dbctx.Context, jobID uuid.UUID, wave int) (*BriefLogsView, error) {
	if wave < 0 || wave > waves.WaveCount {
		return nil, apierr.Invalid("invalid_wave", fmt.Sprintf("%v: %d", waves.ErrInvalidWave, wave))
	}
	job, err := s.loadJob(dbc, jobID)
	if err != nil {
		return nil, err
	}
	entries, err := s.deps.WaveLogs.ListByJob(dbc, job.ID, wave)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*types.BriefWaveLog{}
	}
	view := &BriefLogsView{JobID: job.ID, Status: job.Status, Entries: entries}
	if brief, err := s.deps.Briefs.GetByJobID(dbc, job.ID); err != nil {
		return nil, err
	} else if brief != nil {
		view.CurrentWave = brief.CurrentWave
	}
	return view, nil
}

func (s *briefService) Waves(dbc dbctx.Context, jobID uuid.UUID, includeContent bool) ([]*types.BriefWave, error) {
	job, err := s.loadJob(dbc, jobID)
	if err != nil {
		return nil, err
	}
	rows, err := s.deps.Waves.ListByJob(dbc, job.ID, includeContent)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []*types.BriefWave{}
	}
	return rows, nil
}

func (s *briefService) Wave(dbc dbctx.Context, jobID uuid.UUID, wave int) (*types.BriefWave, error) {
	if wave < 1 || wave > waves.WaveCount {
		return nil, apierr.Invalid("invalid_wave", fmt.Sprintf("%v: %d", waves.ErrInvalidWave, wave))
	}
	job, err := s.loadJob(dbc, jobID)
	if err != nil {
		return nil, err
	}
	row, err := s.deps.Waves.Get(dbc, job.ID, wave)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apierr.NotFound("wave_not_found", fmt.Sprintf("wave %d has not completed", wave))
	}
	return row, nil
}

func isTerminal(status string) bool {
	switch status {
	case types.JobStatusSucceeded, types.JobStatusFailed, types.JobStatusCanceled:
		return true
	}
	return false
}

// Cancel marks the job canceled. The running worker notices before its next
// wave; terminal jobs are returned unchanged.
func (s *briefService) Cancel(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error) {
	var (
		updated      *types.JobRun
		shouldNotify bool
	)
	err := dbc.Conn(s.db).Transaction(func(tx *gorm.DB) error {
		inner := dbc.WithTx(tx)
		job, err := s.loadJob(inner, jobID)
		if err != nil {
			return err
		}
		if isTerminal(job.Status) {
			updated = job
			return nil
		}

		now := time.Now().UTC()
		if err := s.deps.Jobs.UpdateFields(inner, job.ID, map[string]interface{}{
			"status":       types.JobStatusCanceled,
			"message":      "Canceled",
			"locked_at":    nil,
			"heartbeat_at": now,
			"updated_at":   now,
		}); err != nil {
			return err
		}
		if brief, err := s.deps.Briefs.GetByJobID(inner, job.ID); err != nil {
			return err
		} else if brief != nil {
			if err := s.deps.Briefs.UpdateFields(inner, brief.ID, map[string]interface{}{"status": types.BriefStatusCanceled}); err != nil {
				return err
			}
		}

		job.Status = types.JobStatusCanceled
		job.Message = "Canceled"
		job.LockedAt = nil
		job.HeartbeatAt = &now
		job.UpdatedAt = now
		s.recordEvent(inner, job, types.JobEventCanceled, "Canceled", nil)
		updated = job
		shouldNotify = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if shouldNotify && s.deps.Notify != nil {
		s.deps.Notify.JobCanceled(updated)
	}
	return updated, nil
}

// Restart requeues a failed or canceled job. Persisted waves and the
// orchestrator state are kept, so generation resumes at the first wave that
// has no row.
func (s *briefService) Restart(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error) {
	var updated *types.JobRun
	err := dbc.Conn(s.db).Transaction(func(tx *gorm.DB) error {
		inner := dbc.WithTx(tx)
		job, err := s.loadJob(inner, jobID)
		if err != nil {
			return err
		}
		if job.Status != types.JobStatusFailed && job.Status != types.JobStatusCanceled {
			return apierr.Conflict("job_not_restartable", fmt.Sprintf("job is %s", job.Status))
		}

		now := time.Now().UTC()
		if err := s.deps.Jobs.UpdateFields(inner, job.ID, map[string]interface{}{
			"status":        types.JobStatusQueued,
			"stage":         "queued",
			"message":       "Restarting",
			"attempts":      0,
			"error":         "",
			"last_error_at": nil,
			"locked_at":     nil,
			"heartbeat_at":  now,
			"updated_at":    now,
		}); err != nil {
			return err
		}
		if brief, err := s.deps.Briefs.GetByJobID(inner, job.ID); err != nil {
			return err
		} else if brief != nil {
			if err := s.deps.Briefs.UpdateFields(inner, brief.ID, map[string]interface{}{"status": types.BriefStatusQueued}); err != nil {
				return err
			}
		}

		job.Status = types.JobStatusQueued
		job.Stage = "queued"
		job.Message = "Restarting"
		job.Attempts = 0
		job.Error = ""
		job.LastErrorAt = nil
		job.LockedAt = nil
		job.HeartbeatAt = &now
		job.UpdatedAt = now
		s.recordEvent(inner, job, types.JobEventRestarted, "Restarting", nil)
		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.deps.Notify != nil {
		s.deps.Notify.JobProgress(updated, updated.Stage, updated.Progress, updated.Message)
	}
	return updated, nil
}

func (s *briefService) recordEvent(dbc dbctx.Context, job *types.JobRun, kind types.JobEventKind, msg string, data map[string]any) {
	if s.deps.Events == nil {
		return
	}
	var raw datatypes.JSON
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			raw = datatypes.JSON(b)
		}
	}
	ev := &types.JobRunEvent{
		JobID:    job.ID,
		JobType:  job.JobType,
		Kind:     string(kind),
		Status:   job.Status,
		Stage:    job.Stage,
		Progress: job.Progress,
		Message:  msg,
		Data:     raw,
	}
	if err := s.deps.Events.Create(dbc, []*types.JobRunEvent{ev}); err != nil {
		s.log.Warn("job event write failed", "job_id", job.ID, "kind", kind, "error", err)
	}
}
