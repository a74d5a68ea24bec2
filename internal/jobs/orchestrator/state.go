package orchestrator

import (
	"time"
)

type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

type StageState struct {
	Name       string         `json:"name"`
	Status     StageStatus    `json:"status"`
	Attempts   int            `json:"attempts"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	LastError  string         `json:"last_error,omitempty"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	NextRunAt  *time.Time     `json:"next_run_at,omitempty"`
}

// OrchestratorState is persisted under job_run.result["orchestrator"].
type OrchestratorState struct {
	Version      int                    `json:"version"`
	Stages       map[string]*StageState `json:"stages"`
	WaitUntil    *time.Time             `json:"wait_until,omitempty"`
	LastProgress int                    `json:"last_progress"`
	Meta         map[string]any         `json:"meta,omitempty"`
}

func (s *OrchestratorState) ensure() {
	if s.Version <= 0 {
		s.Version = 1
	}
	if s.Stages == nil {
		s.Stages = map[string]*StageState{}
	}
	if s.Meta == nil {
		s.Meta = map[string]any{}
	}
}

func (s *OrchestratorState) EnsureStage(name string) *StageState {
	s.ensure()
	ss := s.Stages[name]
	if ss == nil {
		ss = &StageState{
			Name:    name,
			Status:  StagePending,
			Outputs: map[string]any{},
		}
		s.Stages[name] = ss
	}
	if ss.Outputs == nil {
		ss.Outputs = map[string]any{}
	}
	return ss
}

// ResetFailedStages gives terminally failed stages a fresh set of attempts. A
// stage still waiting on a scheduled retry has NextRunAt set and is left alone.
// It returns the names of the stages that were reset.
func (s *OrchestratorState) ResetFailedStages() []string {
	s.ensure()
	var reset []string
	for name, ss := range s.Stages {
		if ss == nil || ss.Status != StageFailed || ss.NextRunAt != nil {
			continue
		}
		ss.Status = StagePending
		ss.Attempts = 0
		reset = append(reset, name)
	}
	return reset
}

// Succeeded reports whether the named stage has completed.
func (s *OrchestratorState) Succeeded(name string) bool {
	if s == nil || s.Stages == nil {
		return false
	}
	ss := s.Stages[name]
	return ss != nil && (ss.Status == StageSucceeded || ss.Status == StageSkipped)
}
