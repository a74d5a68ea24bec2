package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/amicus-backend/internal/data/repos"
	"github.com/yungbote/amicus-backend/internal/data/repos/testutil"
	types "github.com/yungbote/amicus-backend/internal/domain"
	jobrt "github.com/yungbote/amicus-backend/internal/jobs/runtime"
	"github.com/yungbote/amicus-backend/internal/pkg/dbctx"
)

type harness struct {
	t    *testing.T
	db   *gorm.DB
	repo repos.JobRunRepo
	job  *types.JobRun
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)
	job := testutil.SeedJob(t, context.Background(), db, "test_job", types.JobStatusRunning, "")
	return &harness{t: t, db: db, repo: repos.NewJobRunRepo(db, testutil.Logger(t)), job: job}
}

// claim reloads the job row, as a worker claim would.
func (h *harness) claim() *jobrt.Context {
	h.t.Helper()
	row, err := h.repo.GetByID(dbctx.Context{Ctx: context.Background()}, h.job.ID)
	if err != nil || row == nil {
		h.t.Fatalf("reload job: %v", err)
	}
	return jobrt.NewContext(context.Background(), jobrt.Deps{DB: h.db, Repo: h.repo, Log: testutil.Logger(h.t)}, row)
}

func (h *harness) row() *types.JobRun {
	h.t.Helper()
	row, err := h.repo.GetByID(dbctx.Context{Ctx: context.Background()}, h.job.ID)
	if err != nil || row == nil {
		h.t.Fatalf("reload job: %v", err)
	}
	return row
}

func testEngine() *Engine {
	return &Engine{StateVersion: 1}
}

func countingStage(name string, start, end int, calls *[]string, err func() error) Stage {
	return Stage{
		Name:     name,
		StartPct: start,
		EndPct:   end,
		Run: func(ctx *jobrt.Context, st *OrchestratorState) (map[string]any, error) {
			*calls = append(*calls, name)
			if err != nil {
				if e := err(); e != nil {
					return nil, e
				}
			}
			return map[string]any{"ran": name}, nil
		},
	}
}

func TestEngineRunsStagesInOrder(t *testing.T) {
	h := newHarness(t)
	var calls []string
	stages := []Stage{
		countingStage("a", 0, 30, &calls, nil),
		countingStage("b", 30, 60, &calls, nil),
		countingStage("c", 60, 100, &calls, nil),
	}
	if err := testEngine().Run(h.claim(), stages, map[string]any{"answer": 42}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(calls) != 3 || calls[0] != "a" || calls[2] != "c" {
		t.Fatalf("calls=%v", calls)
	}
	row := h.row()
	if row.Status != types.JobStatusSucceeded || row.Progress != 100 || row.Stage != "c" {
		t.Fatalf("status=%s progress=%d stage=%s", row.Status, row.Progress, row.Stage)
	}
	var res map[string]any
	if err := json.Unmarshal(row.Result, &res); err != nil {
		t.Fatalf("result json: %v", err)
	}
	if res["answer"] != float64(42) || res["orchestrator"] == nil {
		t.Fatalf("result=%v", res)
	}
}

func TestEngineResumesAfterTerminalFailure(t *testing.T) {
	h := newHarness(t)
	var calls []string
	failB := true
	stages := []Stage{
		countingStage("a", 0, 50, &calls, nil),
		countingStage("b", 50, 100, &calls, func() error {
			if failB {
				return errors.New("upstream exploded")
			}
			return nil
		}),
	}
	stages[1].FailMessage = func(err error) string { return "Stage B failed: " + err.Error() }

	_ = testEngine().Run(h.claim(), stages, nil)
	row := h.row()
	if row.Status != types.JobStatusFailed || row.Stage != "b" {
		t.Fatalf("status=%s stage=%s", row.Status, row.Stage)
	}
	if row.Error != "Stage B failed: upstream exploded" {
		t.Fatalf("error=%q", row.Error)
	}

	failB = false
	calls = nil
	_ = testEngine().Run(h.claim(), stages, nil)
	if len(calls) != 1 || calls[0] != "b" {
		t.Fatalf("resume should only rerun b, calls=%v", calls)
	}
	if h.row().Status != types.JobStatusSucceeded {
		t.Fatalf("status=%s", h.row().Status)
	}
}

func TestEngineRetriesRetryableErrorsByYielding(t *testing.T) {
	h := newHarness(t)
	var calls []string
	attempt := 0
	stages := []Stage{
		countingStage("only", 0, 100, &calls, func() error {
			attempt++
			if attempt == 1 {
				return errors.New("rate limited")
			}
			return nil
		}),
	}
	stages[0].Retry = RetryPolicy{MaxAttempts: 3, MinBackoff: time.Millisecond, MaxBackoff: time.Millisecond}

	_ = testEngine().Run(h.claim(), stages, nil)
	row := h.row()
	if row.Status != types.JobStatusQueued || row.Stage != "retry_only" {
		t.Fatalf("after first attempt status=%s stage=%s", row.Status, row.Stage)
	}

	time.Sleep(10 * time.Millisecond)
	_ = testEngine().Run(h.claim(), stages, nil)
	if h.row().Status != types.JobStatusSucceeded {
		t.Fatalf("status=%s", h.row().Status)
	}
	if attempt != 2 {
		t.Fatalf("attempts=%d", attempt)
	}
}

func TestEngineDoesNotRetryNonRetryable(t *testing.T) {
	h := newHarness(t)
	var calls []string
	stages := []Stage{countingStage("only", 0, 100, &calls, func() error { return errors.New("bad key") })}
	stages[0].Retry = RetryPolicy{MaxAttempts: 3, Retryable: func(error) bool { return false }}

	_ = testEngine().Run(h.claim(), stages, nil)
	if h.row().Status != types.JobStatusFailed || len(calls) != 1 {
		t.Fatalf("status=%s calls=%v", h.row().Status, calls)
	}
}

func TestEngineStopsWhenCanceled(t *testing.T) {
	h := newHarness(t)
	if err := h.repo.UpdateFields(dbctx.Context{Ctx: context.Background()}, h.job.ID, map[string]interface{}{"status": types.JobStatusCanceled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	var calls []string
	stages := []Stage{countingStage("only", 0, 100, &calls, nil)}
	_ = testEngine().Run(h.claim(), stages, nil)
	if len(calls) != 0 {
		t.Fatalf("canceled job ran stages: %v", calls)
	}
	if h.row().Status != types.JobStatusCanceled {
		t.Fatalf("status=%s", h.row().Status)
	}
}

func TestEngineSkipsStagesAlreadyDone(t *testing.T) {
	h := newHarness(t)
	var calls []string
	stages := []Stage{countingStage("only", 0, 100, &calls, nil)}
	stages[0].IsDone = func(*jobrt.Context, *OrchestratorState) (bool, error) { return true, nil }
	_ = testEngine().Run(h.claim(), stages, nil)
	if len(calls) != 0 || h.row().Status != types.JobStatusSucceeded {
		t.Fatalf("calls=%v status=%s", calls, h.row().Status)
	}
}

func TestEngineStageTimeout(t *testing.T) {
	h := newHarness(t)
	stages := []Stage{{
		Name:    "slow",
		EndPct:  100,
		Timeout: 10 * time.Millisecond,
		Run: func(ctx *jobrt.Context, st *OrchestratorState) (map[string]any, error) {
			<-ctx.Ctx.Done()
			return nil, ctx.Ctx.Err()
		},
	}}
	_ = testEngine().Run(h.claim(), stages, nil)
	row := h.row()
	if row.Status != types.JobStatusFailed {
		t.Fatalf("status=%s", row.Status)
	}
}

func TestValidateStages(t *testing.T) {
	cases := []struct {
		name   string
		stages []Stage
	}{
		{"empty name", []Stage{{Name: ""}}},
		{"duplicate", []Stage{{Name: "a"}, {Name: "a"}}},
		{"range", []Stage{{Name: "a", EndPct: 101}}},
		{"backwards", []Stage{{Name: "a", StartPct: 50, EndPct: 40}}},
		{"regress", []Stage{{Name: "a", EndPct: 50}, {Name: "b", StartPct: 10, EndPct: 20}}},
	}
	for _, tc := range cases {
		if err := validateStages(tc.stages); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestRetryDelayBounds(t *testing.T) {
	r := RetryPolicy{MinBackoff: time.Second, MaxBackoff: 4 * time.Second, JitterFrac: 0.2}
	for attempt := 1; attempt <= 6; attempt++ {
		d := r.delay(attempt)
		if d < 800*time.Millisecond || d > 4800*time.Millisecond {
			t.Fatalf("attempt %d backoff %s out of range", attempt, d)
		}
	}
}

func TestResetFailedStages(t *testing.T) {
	when := time.Now().Add(time.Minute)
	st := &OrchestratorState{Stages: map[string]*StageState{
		"a": {Name: "a", Status: StageSucceeded},
		"b": {Name: "b", Status: StageFailed, Attempts: 3},
		"c": {Name: "c", Status: StageFailed, Attempts: 1, NextRunAt: &when},
	}}
	reset := st.ResetFailedStages()
	if len(reset) != 1 || reset[0] != "b" {
		t.Fatalf("reset=%v", reset)
	}
	if st.Stages["b"].Attempts != 0 || st.Stages["b"].Status != StagePending {
		t.Fatalf("b=%+v", st.Stages["b"])
	}
	if !st.Succeeded("a") || st.Succeeded("b") {
		t.Fatalf("Succeeded mismatch")
	}
}
