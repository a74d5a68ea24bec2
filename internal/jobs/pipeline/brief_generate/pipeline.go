package brief_generate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/amicus-backend/internal/domain"
	"github.com/yungbote/amicus-backend/internal/jobs/orchestrator"
	jobrt "github.com/yungbote/amicus-backend/internal/jobs/runtime"
	"github.com/yungbote/amicus-backend/internal/modules/briefs/waves"
	"github.com/yungbote/amicus-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/amicus-backend/internal/pkg/errors"
	"github.com/yungbote/amicus-backend/internal/platform/llm"
)

func StageName(wave int) string { return "wave_" + strconv.Itoa(wave) }

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	pl, err := DecodePayload(jc.Job.Payload)
	if err != nil {
		jc.Fail("validate", err)
		return nil
	}
	brief, err := p.deps.Briefs.GetByJobID(dbctx.Context{Ctx: jc.Ctx}, jc.Job.ID)
	if err != nil {
		jc.Fail("validate", fmt.Errorf("load brief: %w", err))
		return nil
	}
	if brief == nil {
		jc.Fail("validate", fmt.Errorf("%w: brief for job %s", apperrors.ErrNotFound, jc.Job.ID))
		return nil
	}
	p.setBriefStatus(jc, brief, types.BriefStatusGenerating)

	_ = p.engine.RunWithFinal(jc, p.stages(pl, brief), func(jc *jobrt.Context, _ *orchestrator.OrchestratorState) (map[string]any, error) {
		return p.finalize(jc, brief)
	})

	status := jc.Job.Status
	if status != types.JobStatusSucceeded && status != types.JobStatusFailed && jc.Canceled() {
		status = types.JobStatusCanceled
	}
	switch status {
	case types.JobStatusFailed:
		p.setBriefStatus(jc, brief, types.BriefStatusFailed)
	case types.JobStatusCanceled:
		p.setBriefStatus(jc, brief, types.BriefStatusCanceled)
	}
	return nil
}

// DecodePayload parses and validates a brief_generate payload.
func DecodePayload(raw datatypes.JSON) (*types.GeneratePayload, error) {
	var pl types.GeneratePayload
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", apperrors.ErrInvalidArgument)
	}
	if err := json.Unmarshal(raw, &pl); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", apperrors.ErrInvalidArgument, err)
	}
	if pl.CaseID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing case_id", apperrors.ErrInvalidArgument)
	}
	if strings.TrimSpace(pl.ApprovedOutline) == "" {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, waves.ErrMissingOutline)
	}
	return &pl, nil
}

func (p *Pipeline) stages(pl *types.GeneratePayload, brief *types.Brief) []orchestrator.Stage {
	catalog := p.deps.Executor.Catalog()
	out := make([]orchestrator.Stage, 0, waves.WaveCount)
	for n := 1; n <= waves.WaveCount; n++ {
		wave := n
		name := catalog.Name(wave)
		out = append(out, orchestrator.Stage{
			Name:     StageName(wave),
			Timeout:  p.cfg.WaveTimeout,
			StartPct: (wave - 1) * 100 / waves.WaveCount,
			EndPct:   wave * 100 / waves.WaveCount,
			StartMsg: fmt.Sprintf("Wave %d/%d: %s", wave, waves.WaveCount, name),
			DoneMsg:  fmt.Sprintf("%s complete", name),
			Retry: orchestrator.RetryPolicy{
				MaxAttempts: p.cfg.MaxAttempts,
				Retryable:   llm.IsRetryable,
				MinBackoff:  p.cfg.MinBackoff,
				MaxBackoff:  p.cfg.MaxBackoff,
				JitterFrac:  0.20,
			},
			IsDone: func(jc *jobrt.Context, _ *orchestrator.OrchestratorState) (bool, error) {
				return p.deps.Waves.Exists(dbctx.Context{Ctx: jc.Ctx}, jc.Job.ID, wave)
			},
			Run: func(jc *jobrt.Context, _ *orchestrator.OrchestratorState) (map[string]any, error) {
				return p.runWave(jc, pl, brief, wave)
			},
			FailMessage: func(err error) string {
				return fmt.Sprintf("%s failed: %s", name, failureReason(err))
			},
		})
	}
	return out
}

func (p *Pipeline) runWave(jc *jobrt.Context, pl *types.GeneratePayload, brief *types.Brief, wave int) (map[string]any, error) {
	dbc := dbctx.Context{Ctx: jc.Ctx}
	wc, err := p.loadContext(jc.Ctx, pl)
	if err != nil {
		return nil, err
	}

	current := ""
	if wave > 1 {
		prev, err := p.deps.Waves.Get(dbc, jc.Job.ID, wave-1)
		if err != nil {
			return nil, fmt.Errorf("load wave %d: %w", wave-1, err)
		}
		if prev == nil {
			return nil, fmt.Errorf("%w: wave %d has not completed", apperrors.ErrConflict, wave-1)
		}
		current = prev.Content
	}

	exec := p.deps.Executor
	if p.deps.Notify != nil {
		exec = exec.WithObserver(p.deps.Notify)
	}
	started := time.Now()
	res, err := exec.Execute(jc.Ctx, wave, wc, current, jc.Job.ID.String())
	if err != nil {
		p.deps.Metrics.ObserveWave(strconv.Itoa(wave), "failed", time.Since(started))
		return nil, err
	}
	p.deps.Metrics.ObserveWave(strconv.Itoa(wave), "succeeded", time.Since(started))
	res.BriefID = brief.ID.String()

	row, err := p.persistWave(jc, brief, res)
	if err != nil {
		return nil, err
	}
	if p.deps.Notify != nil && row != nil {
		p.deps.Notify.WaveCompleted(jc.Job, row)
	}
	jc.Log.Info("wave persisted",
		"wave", wave,
		"word_count", res.WordCount,
		"citations_added", res.CitationsAdded,
		"placeholders_remaining", res.PlaceholdersRemaining,
		"parse_fallback", res.ParseFallback,
	)
	return map[string]any{
		"word_count":             res.WordCount,
		"citations_added":        res.CitationsAdded,
		"placeholders_remaining": res.PlaceholdersRemaining,
		"parse_fallback":         res.ParseFallback,
		"model":                  res.Model,
	}, nil
}

// persistWave writes the wave row, its log lines and the brief update in one
// transaction. A wave already persisted by an earlier attempt is left as is
// and nil is returned.
func (p *Pipeline) persistWave(jc *jobrt.Context, brief *types.Brief, res *waves.WaveResult) (*types.BriefWave, error) {
	row, err := waveRow(jc.Job.ID, brief.ID, res)
	if err != nil {
		return nil, err
	}
	inserted := false
	err = p.db.WithContext(jc.Ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: jc.Ctx, Tx: tx}
		ok, err := p.deps.Waves.Insert(dbc, row)
		if err != nil {
			return fmt.Errorf("insert wave: %w", err)
		}
		if !ok {
			return nil
		}
		inserted = true
		if err := p.deps.WaveLogs.Append(dbc, jc.Job.ID, res.WaveNumber, logRows(res)); err != nil {
			return fmt.Errorf("append wave logs: %w", err)
		}
		return p.deps.Briefs.UpdateFields(dbc, brief.ID, map[string]interface{}{
			"content":        res.Content,
			"word_count":     res.WordCount,
			"citation_count": res.CitationCount,
			"current_wave":   res.WaveNumber,
			"source_map":     row.SourceMap,
			"status":         types.BriefStatusGenerating,
		})
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		jc.Log.Warn("wave already persisted; keeping first result", "wave", res.WaveNumber)
		return nil, nil
	}
	return row, nil
}

func waveRow(jobID, briefID uuid.UUID, res *waves.WaveResult) (*types.BriefWave, error) {
	enc := func(v any, empty string) (datatypes.JSON, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if string(b) == "null" {
			b = []byte(empty)
		}
		return datatypes.JSON(b), nil
	}
	sources, err := enc(res.SourcesUsed, "[]")
	if err != nil {
		return nil, err
	}
	changes, err := enc(res.Changes, "[]")
	if err != nil {
		return nil, err
	}
	sourceMap, err := enc(res.SourceMap, "{}")
	if err != nil {
		return nil, err
	}
	logs, err := enc(res.Logs, "[]")
	if err != nil {
		return nil, err
	}
	thoughts, err := enc(res.Thoughts, "[]")
	if err != nil {
		return nil, err
	}
	return &types.BriefWave{
		JobID:                 jobID,
		WaveNumber:            res.WaveNumber,
		BriefID:               briefID,
		WaveName:              res.WaveName,
		Model:                 res.Model,
		WordCount:             res.WordCount,
		CitationsAdded:        res.CitationsAdded,
		PlaceholdersRemaining: res.PlaceholdersRemaining,
		SourcesUsed:           sources,
		Changes:               changes,
		SourceMap:             sourceMap,
		Logs:                  logs,
		Thoughts:              thoughts,
		Content:               res.Content,
		ParseFallback:         res.ParseFallback,
		PromptFingerprint:     res.PromptFingerprint,
		StartedAt:             res.StartedAt,
		FinishedAt:            res.FinishedAt,
	}, nil
}

// logRows puts the wave's log lines ahead of its thoughts.
func logRows(res *waves.WaveResult) []*types.BriefWaveLog {
	out := make([]*types.BriefWaveLog, 0, len(res.Logs)+len(res.Thoughts))
	for _, line := range res.Logs {
		out = append(out, &types.BriefWaveLog{Kind: types.WaveLogKindLog, Message: line})
	}
	for _, t := range res.Thoughts {
		data, _ := json.Marshal(t)
		entry := &types.BriefWaveLog{Kind: types.WaveLogKindThought, Message: t.Text, Data: datatypes.JSON(data)}
		if ts, err := time.Parse(time.RFC3339Nano, t.Timestamp); err == nil {
			entry.CreatedAt = ts
		}
		out = append(out, entry)
	}
	return out
}

func (p *Pipeline) finalize(jc *jobrt.Context, brief *types.Brief) (map[string]any, error) {
	dbc := dbctx.Context{Ctx: jc.Ctx}
	cur, err := p.deps.Briefs.GetByID(dbc, brief.ID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, fmt.Errorf("%w: brief %s", apperrors.ErrNotFound, brief.ID)
	}
	if jc.Canceled() {
		return nil, orchestrator.ErrCanceled
	}
	if err := p.deps.Briefs.UpdateFields(dbc, brief.ID, map[string]interface{}{"status": types.BriefStatusCompleted}); err != nil {
		return nil, err
	}
	brief.Status = types.BriefStatusCompleted
	return map[string]any{
		"brief_id":       cur.ID.String(),
		"word_count":     cur.WordCount,
		"citation_count": cur.CitationCount,
	}, nil
}

func (p *Pipeline) setBriefStatus(jc *jobrt.Context, brief *types.Brief, status string) {
	if brief.Status == status {
		return
	}
	if err := p.deps.Briefs.UpdateFields(dbctx.Context{Ctx: jc.Ctx}, brief.ID, map[string]interface{}{"status": status}); err != nil {
		jc.Log.Warn("brief status update failed", "brief_id", brief.ID, "status", status, "error", err)
		return
	}
	brief.Status = status
}

// failureReason keeps the job error readable: adapter errors are reported by kind and message.
func failureReason(err error) string {
	var le *llm.Error
	if errors.As(err, &le) && le != nil {
		if le.Message != "" {
			return fmt.Sprintf("%s (%s)", le.Message, le.Kind)
		}
		return string(le.Kind)
	}
	return err.Error()
}
