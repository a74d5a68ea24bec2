package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/amicus-backend/internal/data/repos"
	types "github.com/yungbote/amicus-backend/internal/domain"
	"github.com/yungbote/amicus-backend/internal/pkg/ctxutil"
	"github.com/yungbote/amicus-backend/internal/pkg/dbctx"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/services"
)

/*
Context is the execution handle for a single claimed job run. Pipelines never
touch job_run directly; lifecycle writes go through Progress, Fail and Succeed,
which refuse to overwrite a canceled job.
*/
type Context struct {
	Ctx         context.Context
	DB          *gorm.DB
	Job         *types.JobRun
	Repo        repos.JobRunRepo
	Events      repos.JobRunEventRepo
	Notify      services.JobNotifier
	Log         *logger.Logger
	LastMessage string
	payload     map[string]any
}

// Deps groups the collaborators shared by every job run.
type Deps struct {
	DB     *gorm.DB
	Repo   repos.JobRunRepo
	Events repos.JobRunEventRepo
	Notify services.JobNotifier
	Log    *logger.Logger
}

func NewContext(ctx context.Context, deps Deps, job *types.JobRun) *Context {
	c := &Context{
		Ctx:    ctx,
		DB:     deps.DB,
		Job:    job,
		Repo:   deps.Repo,
		Events: deps.Events,
		Notify: deps.Notify,
		Log:    deps.Log,
	}
	if c.Log == nil {
		c.Log = logger.Nop()
	}
	if job != nil {
		c.Log = c.Log.With("job_id", job.ID, "job_type", job.JobType)
	}
	if err := c.decodePayload(); err != nil {
		c.Log.Warn("job payload decode failed", "error", err)
	}
	c.applyTraceData()
	return c
}

/*
decodePayload parses Job.Payload into a map. An empty or malformed payload
yields an empty map; the decode error is returned so callers may log it.
*/
func (c *Context) decodePayload() error {
	if c.Job == nil {
		return nil
	}
	if len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

// applyTraceData carries the enqueuing request's ids into the job context so
// worker logs can be joined with the API request that created the job.
func (c *Context) applyTraceData() {
	if c == nil || c.Ctx == nil || c.Job == nil {
		return
	}
	payload := c.Payload()
	c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{
		TraceID:   payloadString(payload, "trace_id"),
		RequestID: payloadString(payload, "request_id"),
		JobID:     c.Job.ID.String(),
	})
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadString(key string) string {
	return payloadString(c.Payload(), key)
}

func payloadString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	s := c.PayloadString(key)
	if s == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// PayloadUUIDs parses a list of uuids, skipping entries that do not parse.
func (c *Context) PayloadUUIDs(key string) []uuid.UUID {
	raw, ok := c.Payload()[key].([]any)
	if !ok {
		return nil
	}
	out := make([]uuid.UUID, 0, len(raw))
	for _, v := range raw {
		if id, err := uuid.Parse(strings.TrimSpace(fmt.Sprint(v))); err == nil && id != uuid.Nil {
			out = append(out, id)
		}
	}
	return out
}

func (c *Context) ctx() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

func (c *Context) hasRow() bool {
	return c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil
}

// Update writes raw fields unless the job has been canceled.
func (c *Context) Update(updates map[string]any) error {
	if !c.hasRow() {
		return nil
	}
	_, err := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: c.ctx()}, c.Job.ID, []string{types.JobStatusCanceled}, toIfaceMap(updates))
	return err
}

// Canceled reloads the job status. Lookup errors are reported as not canceled.
func (c *Context) Canceled() bool {
	if !c.hasRow() {
		return false
	}
	row, err := c.Repo.GetByID(dbctx.Context{Ctx: c.ctx()}, c.Job.ID)
	if err != nil || row == nil {
		return false
	}
	if row.Status == types.JobStatusCanceled {
		c.Job.Status = types.JobStatusCanceled
		return true
	}
	return false
}

func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil {
		return
	}
	now := time.Now().UTC()

	if c.hasRow() {
		ok, err := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: c.ctx()}, c.Job.ID, []string{types.JobStatusCanceled}, map[string]interface{}{
			"stage":        stage,
			"progress":     pct,
			"message":      msg,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if err != nil {
			c.Log.Warn("job progress write failed", "error", err, "stage", stage)
		}
		if !ok {
			return
		}
	}

	if c.Job != nil {
		c.Job.Stage = stage
		c.Job.Progress = pct
		c.Job.Message = msg
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}
	c.LastMessage = msg
	c.recordEvent(types.JobEventProgress, msg, nil)

	if c.Notify != nil && c.Job != nil {
		c.Notify.JobProgress(c.Job, stage, pct, msg)
	}
}

func (c *Context) Fail(stage string, err error) {
	if c == nil {
		return
	}
	now := time.Now().UTC()
	msg := ""
	if err != nil {
		msg = err.Error()
	}

	if c.hasRow() {
		ok, uerr := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: c.ctx()}, c.Job.ID, []string{types.JobStatusCanceled}, map[string]interface{}{
			"status":        types.JobStatusFailed,
			"stage":         stage,
			"message":       "",
			"error":         msg,
			"last_error_at": now,
			"locked_at":     nil,
			"updated_at":    now,
		})
		if uerr != nil {
			c.Log.Error("job fail write failed", "error", uerr, "stage", stage)
		}
		if !ok {
			return
		}
	}

	if c.Job != nil {
		c.Job.Status = types.JobStatusFailed
		c.Job.Stage = stage
		c.Job.Message = ""
		c.Job.Error = msg
		c.Job.LastErrorAt = &now
		c.Job.LockedAt = nil
		c.Job.UpdatedAt = now
	}
	c.recordEvent(types.JobEventFailed, msg, nil)

	if c.Notify != nil && c.Job != nil {
		c.Notify.JobFailed(c.Job, stage, msg)
	}
}

func (c *Context) Succeed(finalStage string, result any) {
	if c == nil {
		return
	}
	now := time.Now().UTC()
	var res datatypes.JSON
	if result != nil {
		b, _ := json.Marshal(result)
		res = datatypes.JSON(b)
	}

	if c.hasRow() {
		ok, err := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: c.ctx()}, c.Job.ID, []string{types.JobStatusCanceled}, map[string]interface{}{
			"status":       types.JobStatusSucceeded,
			"stage":        finalStage,
			"progress":     100,
			"message":      "",
			"error":        "",
			"result":       res,
			"locked_at":    nil,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if err != nil {
			c.Log.Error("job succeed write failed", "error", err)
		}
		if !ok {
			return
		}
	}

	if c.Job != nil {
		c.Job.Status = types.JobStatusSucceeded
		c.Job.Stage = finalStage
		c.Job.Progress = 100
		c.Job.Message = ""
		c.Job.Error = ""
		c.Job.Result = res
		c.Job.LockedAt = nil
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}
	c.recordEvent(types.JobEventSucceeded, "", result)

	if c.Notify != nil && c.Job != nil {
		c.Notify.JobDone(c.Job)
	}
}

// recordEvent appends to the job timeline. Timeline writes never fail the job.
func (c *Context) recordEvent(kind types.JobEventKind, msg string, data any) {
	if c.Events == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return
	}
	var raw datatypes.JSON
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			raw = datatypes.JSON(b)
		}
	}
	ev := &types.JobRunEvent{
		JobID:    c.Job.ID,
		JobType:  c.Job.JobType,
		Kind:     string(kind),
		Status:   c.Job.Status,
		Stage:    c.Job.Stage,
		Progress: c.Job.Progress,
		Message:  msg,
		Data:     raw,
	}
	if err := c.Events.Create(dbctx.Context{Ctx: c.ctx()}, []*types.JobRunEvent{ev}); err != nil {
		c.Log.Warn("job event write failed", "error", err, "kind", kind)
	}
}

func toIfaceMap(in map[string]any) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
