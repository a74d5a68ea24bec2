package domain

import (
	"github.com/yungbote/amicus-backend/internal/domain/briefs"
	"github.com/yungbote/amicus-backend/internal/domain/jobs"
)

type JobRun = jobs.JobRun
type JobRunEvent = jobs.JobRunEvent
type JobEventKind = jobs.JobEventKind

type Case = briefs.Case
type CaseDocument = briefs.CaseDocument
type ResearchResult = briefs.ResearchResult
type JusticeAnalysis = briefs.JusticeAnalysis
type ReferenceBrief = briefs.ReferenceBrief
type CaseChatMessage = briefs.CaseChatMessage

type Brief = briefs.Brief
type BriefWave = briefs.BriefWave
type BriefWaveLog = briefs.BriefWaveLog

const (
	JobStatusQueued    = jobs.StatusQueued
	JobStatusRunning   = jobs.StatusRunning
	JobStatusSucceeded = jobs.StatusSucceeded
	JobStatusFailed    = jobs.StatusFailed
	JobStatusCanceled  = jobs.StatusCanceled

	JobEventCreated   = jobs.JobEventCreated
	JobEventProgress  = jobs.JobEventProgress
	JobEventFailed    = jobs.JobEventFailed
	JobEventSucceeded = jobs.JobEventSucceeded
	JobEventCanceled  = jobs.JobEventCanceled
	JobEventRestarted = jobs.JobEventRestarted
)

// Models lists every table the service migrates.
func Models() []interface{} {
	return []interface{}{
		&jobs.JobRun{},
		&jobs.JobRunEvent{},
		&briefs.Case{},
		&briefs.CaseDocument{},
		&briefs.ResearchResult{},
		&briefs.JusticeAnalysis{},
		&briefs.ReferenceBrief{},
		&briefs.CaseChatMessage{},
		&briefs.Brief{},
		&briefs.BriefWave{},
		&briefs.BriefWaveLog{},
	}
}

type GeneratePayload = briefs.GeneratePayload

const (
	JobTypeBriefGenerate = briefs.JobTypeBriefGenerate
	EntityTypeCase       = briefs.EntityTypeCase

	BriefStatusQueued     = briefs.BriefStatusQueued
	BriefStatusGenerating = briefs.BriefStatusGenerating
	BriefStatusCompleted  = briefs.BriefStatusCompleted
	BriefStatusFailed     = briefs.BriefStatusFailed
	BriefStatusCanceled   = briefs.BriefStatusCanceled

	WaveLogKindLog     = briefs.WaveLogKindLog
	WaveLogKindThought = briefs.WaveLogKindThought

	ResearchHistorical = briefs.ResearchHistorical
)
