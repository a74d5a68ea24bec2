// Package orchestrator runs an ordered list of stages for one job, persisting
// per-stage state in job_run.result so a reclaimed job resumes where it left off.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jobrt "github.com/yungbote/amicus-backend/internal/jobs/runtime"
)

// ErrCanceled is returned by stage code that notices the job was canceled.
var ErrCanceled = errors.New("job canceled")

type Stage struct {
	Name     string
	Timeout  time.Duration
	StartPct int
	EndPct   int
	StartMsg string
	DoneMsg  string
	Retry    RetryPolicy
	// IsDone lets a stage detect work persisted by an earlier attempt whose
	// state write was lost.
	IsDone func(ctx *jobrt.Context, st *OrchestratorState) (bool, error)
	Run    func(ctx *jobrt.Context, st *OrchestratorState) (map[string]any, error)
	// FailMessage formats the terminal job error for this stage.
	FailMessage func(err error) string
}

// Finalizer computes extra keys for the job result once every stage has succeeded.
type Finalizer func(ctx *jobrt.Context, st *OrchestratorState) (map[string]any, error)

type Engine struct {
	// A job parked on a retry sleeps between these bounds before yielding so
	// an idle queue does not spin.
	MinPollInterval time.Duration
	MaxPollInterval time.Duration

	StateVersion int
}

func NewEngine() *Engine {
	return &Engine{
		MinPollInterval: 2 * time.Second,
		MaxPollInterval: 10 * time.Second,
		StateVersion:    1,
	}
}

// Run is RunWithFinal with a fixed extra result.
func (e *Engine) Run(jc *jobrt.Context, stages []Stage, finalResult map[string]any) error {
	return e.RunWithFinal(jc, stages, func(*jobrt.Context, *OrchestratorState) (map[string]any, error) {
		return finalResult, nil
	})
}

// RunWithFinal drives the stages of one claimed job. It always returns nil:
// success, failure, retry and cancellation are written through jc.
func (e *Engine) RunWithFinal(jc *jobrt.Context, stages []Stage, final Finalizer) error {
	st, ok := e.prepare(jc, stages, final)
	if !ok {
		return nil
	}
	if e.parked(jc, st, &st.WaitUntil, "waiting") {
		return nil
	}
	for _, def := range stages {
		ss := st.EnsureStage(def.Name)
		if st.Succeeded(def.Name) {
			continue
		}
		if jc.Canceled() {
			jc.Log.Info("job canceled; stopping before stage", "stage", def.Name)
			return nil
		}
		if e.parked(jc, st, &ss.NextRunAt, "waiting_"+def.Name) {
			return nil
		}
		if !e.runStage(jc, st, def, ss) {
			return nil
		}
	}
	e.complete(jc, st, stages, final)
	return nil
}

// prepare validates the stage list and loads state. Stages that failed for
// good on an earlier run get a fresh set of attempts, which is how a restarted
// job resumes.
func (e *Engine) prepare(jc *jobrt.Context, stages []Stage, final Finalizer) (*OrchestratorState, bool) {
	if jc == nil || jc.Job == nil {
		return nil, false
	}
	if len(stages) == 0 {
		var res map[string]any
		if final != nil {
			res, _ = final(jc, nil)
		}
		jc.Succeed("done", res)
		return nil, false
	}
	if err := validateStages(stages); err != nil {
		jc.Fail("validate", err)
		return nil, false
	}
	st, _ := LoadState(jc, e.StateVersion)
	if reset := st.ResetFailedStages(); len(reset) > 0 {
		jc.Log.Info("resuming failed stages", "stages", reset)
		_ = SaveState(jc, st)
	}
	return st, true
}

// parked reports whether the job is still waiting on *until. A waiting job
// is handed back to the queue; an elapsed wait is cleared.
func (e *Engine) parked(jc *jobrt.Context, st *OrchestratorState, until **time.Time, stage string) bool {
	if *until == nil {
		return false
	}
	remaining := time.Until(**until)
	if remaining <= 0 {
		*until = nil
		_ = SaveState(jc, st)
		return false
	}
	if d := clampDuration(remaining, e.MinPollInterval, e.MaxPollInterval); d > 0 {
		time.Sleep(d)
	}
	_ = SaveState(jc, st)
	_ = yieldToQueue(jc, stage, st.LastProgress)
	return true
}

// runStage reports whether the job may move on to the next stage.
func (e *Engine) runStage(jc *jobrt.Context, st *OrchestratorState, def Stage, ss *StageState) bool {
	e.progress(jc, st, def.Name, def.StartPct, msgOr(def.StartMsg, "Starting "+def.Name))
	ss.Status = StageRunning
	if ss.StartedAt == nil {
		now := time.Now().UTC()
		ss.StartedAt = &now
	}
	_ = SaveState(jc, st)

	if def.IsDone != nil {
		done, err := checkDone(def, jc, st)
		if err != nil {
			e.stageFailed(jc, st, def, ss, err)
			return false
		}
		if done {
			e.stageSucceeded(jc, st, def, ss, nil)
			return true
		}
	}

	outs, err := attempt(def, jc, st)
	switch {
	case err == nil:
		e.stageSucceeded(jc, st, def, ss, outs)
		return true
	case errors.Is(err, ErrCanceled) || jc.Canceled():
		ss.Status = StagePending
		_ = SaveState(jc, st)
	default:
		e.stageFailed(jc, st, def, ss, err)
	}
	return false
}

func (e *Engine) stageSucceeded(jc *jobrt.Context, st *OrchestratorState, def Stage, ss *StageState, outs map[string]any) {
	for k, v := range outs {
		ss.Outputs[k] = v
	}
	now := time.Now().UTC()
	ss.Status = StageSucceeded
	ss.LastError = ""
	ss.FinishedAt = &now
	e.progress(jc, st, def.Name, def.EndPct, msgOr(def.DoneMsg, "Done "+def.Name))
	_ = SaveState(jc, st)
}

// stageFailed either schedules a retry and yields, or fails the job.
func (e *Engine) stageFailed(jc *jobrt.Context, st *OrchestratorState, def Stage, ss *StageState, err error) {
	now := time.Now().UTC()
	ss.Attempts++
	ss.Status = StageFailed
	ss.LastError = err.Error()
	ss.FinishedAt = &now

	if def.Retry.allows(ss.Attempts, err) {
		delay := def.Retry.delay(ss.Attempts)
		when := now.Add(delay)
		ss.NextRunAt = &when
		st.WaitUntil = &when
		_ = SaveState(jc, st)
		jc.Log.Warn("stage failed; retry scheduled", "stage", def.Name, "attempt", ss.Attempts, "delay", delay, "error", err)
		_ = yieldToQueue(jc, "retry_"+def.Name, st.LastProgress)
		return
	}

	ss.NextRunAt = nil
	_ = SaveState(jc, st)
	if def.FailMessage != nil {
		err = errors.New(def.FailMessage(err))
	}
	jc.Fail(def.Name, err)
}

func (e *Engine) complete(jc *jobrt.Context, st *OrchestratorState, stages []Stage, final Finalizer) {
	last := stages[len(stages)-1].Name
	result := map[string]any{"orchestrator": st}
	outputs := map[string]any{}
	for _, def := range stages {
		if ss := st.Stages[def.Name]; ss != nil && len(ss.Outputs) > 0 {
			outputs[def.Name] = ss.Outputs
		}
	}
	result["outputs"] = outputs
	if final != nil {
		extra, err := final(jc, st)
		if err != nil {
			jc.Fail(last, fmt.Errorf("finalize: %w", err))
			return
		}
		for k, v := range extra {
			result[k] = v
		}
	}
	jc.Succeed(last, result)
}

// progress is monotonic across the whole job, including resumed runs.
func (e *Engine) progress(jc *jobrt.Context, st *OrchestratorState, stage string, pct int, msg string) {
	if pct < st.LastProgress {
		pct = st.LastProgress
	}
	st.LastProgress = pct
	jc.Progress(stage, pct, msg)
}

func checkDone(def Stage, jc *jobrt.Context, st *OrchestratorState) (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			done, err = false, fmt.Errorf("stage %q: IsDone panic: %v", def.Name, r)
		}
	}()
	return def.IsDone(jc, st)
}

// attempt runs the stage once under its own deadline, which the stage sees
// through ctx.Ctx.
func attempt(def Stage, jc *jobrt.Context, st *OrchestratorState) (outs map[string]any, err error) {
	if def.Run == nil {
		return nil, fmt.Errorf("stage %q: Run is nil", def.Name)
	}
	defer func() {
		if r := recover(); r != nil {
			outs, err = nil, fmt.Errorf("stage %q: panic: %v", def.Name, r)
		}
	}()
	if def.Timeout <= 0 {
		return def.Run(jc, st)
	}
	tctx, cancel := context.WithTimeout(jc.Ctx, def.Timeout)
	defer cancel()
	scoped := *jc
	scoped.Ctx = tctx
	outs, err = def.Run(&scoped, st)
	if err != nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("stage %q timed out after %s: %w", def.Name, def.Timeout, err)
	}
	return outs, err
}

func validateStages(stages []Stage) error {
	seen := make(map[string]bool, len(stages))
	prevEnd := -1
	for _, s := range stages {
		switch {
		case strings.TrimSpace(s.Name) == "":
			return fmt.Errorf("stage missing Name")
		case seen[s.Name]:
			return fmt.Errorf("duplicate stage name %q", s.Name)
		case s.StartPct < 0 || s.EndPct > 100:
			return fmt.Errorf("stage %q: progress must be 0..100", s.Name)
		case s.EndPct < s.StartPct:
			return fmt.Errorf("stage %q: EndPct must be >= StartPct", s.Name)
		case s.EndPct < prevEnd:
			return fmt.Errorf("stage %q: EndPct must be >= previous stage EndPct", s.Name)
		}
		seen[s.Name] = true
		prevEnd = s.EndPct
	}
	return nil
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	switch {
	case d <= 0:
		return 0
	case lo > 0 && d < lo:
		return lo
	case hi > 0 && d > hi:
		return hi
	}
	return d
}

func msgOr(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
