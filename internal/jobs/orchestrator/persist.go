package orchestrator

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	types "github.com/yungbote/amicus-backend/internal/domain"
	jobrt "github.com/yungbote/amicus-backend/internal/jobs/runtime"
	"github.com/yungbote/amicus-backend/internal/pkg/dbctx"
)

const stateKey = "orchestrator"

// LoadState reads result["orchestrator"]. A missing or unreadable state
// starts fresh; the decode error is kept in Meta for inspection.
func LoadState(jc *jobrt.Context, version int) (*OrchestratorState, error) {
	st := &OrchestratorState{Version: version}
	st.ensure()
	if jc == nil || jc.Job == nil || len(jc.Job.Result) == 0 {
		return st, nil
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(jc.Job.Result, &wrapper); err != nil {
		return st, nil
	}
	raw, ok := wrapper[stateKey]
	if !ok || string(raw) == "null" {
		return st, nil
	}
	if err := json.Unmarshal(raw, st); err != nil {
		st.ensure()
		st.Meta["state_unmarshal_error"] = err.Error()
	}
	st.ensure()
	return st, nil
}

// SaveState writes the state under result["orchestrator"] and keeps the other
// result keys. A failed write is logged; the in-memory copy stays current.
func SaveState(jc *jobrt.Context, st *OrchestratorState) error {
	if jc == nil || jc.Job == nil || st == nil {
		return nil
	}
	st.ensure()
	merged := map[string]any{}
	if len(jc.Job.Result) > 0 {
		if err := json.Unmarshal(jc.Job.Result, &merged); err != nil || merged == nil {
			merged = map[string]any{}
		}
	}
	merged[stateKey] = st
	b, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	if err := jc.Update(map[string]any{"result": datatypes.JSON(b)}); err != nil {
		jc.Log.Warn("orchestrator state save failed", "error", err)
	}
	jc.Job.Result = datatypes.JSON(b)
	return nil
}

// yieldToQueue releases the job for another claim unless it was canceled
// in the meantime.
func yieldToQueue(jc *jobrt.Context, stage string, progress int) error {
	if jc == nil || jc.Job == nil || jc.Repo == nil {
		return nil
	}
	now := time.Now().UTC()
	updated, err := jc.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: jc.Ctx}, jc.Job.ID, []string{types.JobStatusCanceled}, map[string]interface{}{
		"status":       types.JobStatusQueued,
		"stage":        stage,
		"progress":     progress,
		"locked_at":    nil,
		"heartbeat_at": now,
		"updated_at":   now,
	})
	if err != nil {
		return err
	}
	if updated {
		jc.Job.Status = types.JobStatusQueued
		jc.Job.Stage = stage
	}
	return nil
}
