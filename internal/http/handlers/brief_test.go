package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/amicus-backend/internal/domain"
	"github.com/yungbote/amicus-backend/internal/pkg/dbctx"
	"github.com/yungbote/amicus-backend/internal/platform/apierr"
	"github.com/yungbote/amicus-backend/internal/services"
)

type fakeBriefs struct {
	lastStart services.StartBriefInput
	lastWave  int
	job       *types.JobRun
	brief     *types.Brief
	created   bool
	err       error
}

func (f *fakeBriefs) Start(_ dbctx.Context, in services.StartBriefInput) (*types.JobRun, *types.Brief, bool, error) {
	f.lastStart = in
	return f.job, f.brief, f.created, f.err
}

func (f *fakeBriefs) Get(_ dbctx.Context, id uuid.UUID) (*services.BriefJobView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.BriefJobView{Job: f.job, Brief: f.brief, Events: []*types.JobRunEvent{}}, nil
}

func (f *fakeBriefs) Logs(_ dbctx.Context, id uuid.UUID, wave int) (*services.BriefLogsView, error) {
	f.lastWave = wave
	return &services.BriefLogsView{JobID: id, Entries: []*types.BriefWaveLog{}}, f.err
}

func (f *fakeBriefs) Waves(dbctx.Context, uuid.UUID, bool) ([]*types.BriefWave, error) {
	return []*types.BriefWave{}, f.err
}

func (f *fakeBriefs) Wave(_ dbctx.Context, _ uuid.UUID, n int) (*types.BriefWave, error) {
	f.lastWave = n
	if f.err != nil {
		return nil, f.err
	}
	return &types.BriefWave{WaveNumber: n}, nil
}

func (f *fakeBriefs) Cancel(dbctx.Context, uuid.UUID) (*types.JobRun, error)  { return f.job, f.err }
func (f *fakeBriefs) Restart(dbctx.Context, uuid.UUID) (*types.JobRun, error) { return f.job, f.err }

func briefRouter(svc services.BriefService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewBriefHandler(svc)
	r := gin.New()
	r.POST("/api/briefs/generate", h.Generate)
	r.GET("/api/briefs/jobs/:id", h.GetJob)
	r.GET("/api/briefs/jobs/:id/logs", h.GetLogs)
	r.GET("/api/briefs/jobs/:id/waves/:wave", h.GetWave)
	r.POST("/api/briefs/jobs/:id/restart", h.RestartJob)
	return r
}

func do(r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func TestGenerateAccepted(t *testing.T) {
	job := &types.JobRun{ID: uuid.New(), Status: types.JobStatusQueued}
	brief := &types.Brief{ID: uuid.New()}
	svc := &fakeBriefs{job: job, brief: brief, created: true}
	caseID := uuid.New()

	rec := do(briefRouter(svc), http.MethodPost, "/api/briefs/generate",
		map[string]any{"case_id": caseID, "approved_outline": "I. Argument"},
		map[string]string{"Idempotency-Key": " key-1 "})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out["job_id"] != job.ID.String() || out["brief_id"] != brief.ID.String() {
		t.Fatalf("body=%v", out)
	}
	if svc.lastStart.CaseID != caseID || svc.lastStart.IdempotencyKey != "key-1" {
		t.Fatalf("input=%+v", svc.lastStart)
	}

	svc.created = false
	if rec := do(briefRouter(svc), http.MethodPost, "/api/briefs/generate",
		map[string]any{"case_id": caseID, "approved_outline": "I."}, nil); rec.Code != http.StatusOK {
		t.Fatalf("replay status=%d", rec.Code)
	}
}

func TestGenerateMapsServiceErrors(t *testing.T) {
	svc := &fakeBriefs{err: apierr.Invalid("missing_outline", "approved outline required")}
	rec := do(briefRouter(svc), http.MethodPost, "/api/briefs/generate", map[string]any{"case_id": uuid.New()}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil || env.Error.Code != "missing_outline" || env.Error.Message == "" {
		t.Fatalf("envelope=%+v err=%v", env, err)
	}

	if rec := do(briefRouter(svc), http.MethodPost, "/api/briefs/generate", "not an object", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad body status=%d", rec.Code)
	}
}

func TestJobRoutesValidateParams(t *testing.T) {
	svc := &fakeBriefs{job: &types.JobRun{ID: uuid.New()}}
	r := briefRouter(svc)

	rec := do(r, http.MethodGet, "/api/briefs/jobs/not-a-uuid", nil, nil)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	if rec.Code != http.StatusBadRequest || env.Error.Code != "invalid_job_id" {
		t.Fatalf("status=%d code=%s", rec.Code, env.Error.Code)
	}

	id := uuid.New().String()
	if rec := do(r, http.MethodGet, "/api/briefs/jobs/"+id+"/waves/x", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("wave param status=%d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/api/briefs/jobs/"+id+"/logs?wave=3", nil, nil); rec.Code != http.StatusOK || svc.lastWave != 3 {
		t.Fatalf("logs status=%d wave=%d", rec.Code, svc.lastWave)
	}
	if rec := do(r, http.MethodGet, "/api/briefs/jobs/"+id+"/waves/5", nil, nil); rec.Code != http.StatusOK || svc.lastWave != 5 {
		t.Fatalf("wave status=%d wave=%d", rec.Code, svc.lastWave)
	}
}

func TestRestartConflict(t *testing.T) {
	svc := &fakeBriefs{err: apierr.Conflict("job_not_restartable", "job is running")}
	rec := do(briefRouter(svc), http.MethodPost, "/api/briefs/jobs/"+uuid.New().String()+"/restart", nil, nil)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	if rec.Code != http.StatusConflict || env.Error.Code != "job_not_restartable" {
		t.Fatalf("status=%d code=%s", rec.Code, env.Error.Code)
	}
}
