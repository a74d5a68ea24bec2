package services

import (
	"context"

	types "github.com/yungbote/amicus-backend/internal/domain"
	"github.com/yungbote/amicus-backend/internal/modules/briefs/waves"
	"github.com/yungbote/amicus-backend/internal/realtime"
)

type JobNotifier interface {
	JobCreated(job *types.JobRun)
	JobProgress(job *types.JobRun, stage string, progress int, message string)
	JobFailed(job *types.JobRun, stage string, errorMessage string)
	JobDone(job *types.JobRun)
	JobCanceled(job *types.JobRun)
	WaveCompleted(job *types.JobRun, wave *types.BriefWave)

	waves.Observer
}

type jobNotifier struct {
	emit SSEEmitter
}

func NewJobNotifier(emit SSEEmitter) JobNotifier {
	return &jobNotifier{emit: emit}
}

// channels returns the job channel and, when the job belongs to a case, the case channel.
func channels(job *types.JobRun) []string {
	out := []string{realtime.JobChannel(job.ID.String())}
	if job.EntityID != nil {
		out = append(out, realtime.CaseChannel(job.EntityID.String()))
	}
	return out
}

func (n *jobNotifier) send(job *types.JobRun, event realtime.SSEEvent, data map[string]any) {
	if n == nil || n.emit == nil || job == nil {
		return
	}
	for _, ch := range channels(job) {
		n.emit.Emit(context.Background(), realtime.SSEMessage{Channel: ch, Event: event, Data: data})
	}
}

func (n *jobNotifier) JobCreated(job *types.JobRun) {
	n.send(job, realtime.SSEEventJobCreated, map[string]any{"job": job})
}

func (n *jobNotifier) JobProgress(job *types.JobRun, stage string, progress int, message string) {
	n.send(job, realtime.SSEEventJobProgress, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"stage":    stage,
		"progress": progress,
		"message":  message,
		"job":      job,
	})
}

func (n *jobNotifier) JobFailed(job *types.JobRun, stage string, errorMessage string) {
	n.send(job, realtime.SSEEventJobFailed, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"stage":    stage,
		"error":    errorMessage,
		"job":      job,
	})
}

func (n *jobNotifier) JobDone(job *types.JobRun) {
	n.send(job, realtime.SSEEventJobDone, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"job":      job,
	})
}

func (n *jobNotifier) JobCanceled(job *types.JobRun) {
	n.send(job, realtime.SSEEventJobCanceled, map[string]any{
		"job_id":   job.ID,
		"job_type": job.JobType,
		"job":      job,
	})
}

func (n *jobNotifier) WaveCompleted(job *types.JobRun, wave *types.BriefWave) {
	if wave == nil {
		return
	}
	n.send(job, realtime.SSEEventWaveCompleted, map[string]any{
		"job_id":          job.ID,
		"wave_number":     wave.WaveNumber,
		"wave_name":       wave.WaveName,
		"word_count":      wave.WordCount,
		"citations_added": wave.CitationsAdded,
	})
}

// Thoughts and log lines only go to the job channel.
func (n *jobNotifier) OnThought(jobID string, wave int, t waves.ThoughtEntry) {
	if n == nil || n.emit == nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: realtime.JobChannel(jobID),
		Event:   realtime.SSEEventWaveThought,
		Data:    map[string]any{"job_id": jobID, "wave_number": wave, "thought": t},
	})
}

func (n *jobNotifier) OnLog(jobID string, wave int, line string) {
	if n == nil || n.emit == nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: realtime.JobChannel(jobID),
		Event:   realtime.SSEEventWaveLog,
		Data:    map[string]any{"job_id": jobID, "wave_number": wave, "line": line},
	})
}

func (n *jobNotifier) OnDelta(jobID string, wave int, text string) {
	if n == nil || n.emit == nil || text == "" {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: realtime.JobChannel(jobID),
		Event:   realtime.SSEEventWaveDelta,
		Data:    map[string]any{"job_id": jobID, "wave_number": wave, "text": text},
	})
}
