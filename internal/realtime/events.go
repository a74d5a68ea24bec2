package realtime

type SSEEvent string

const (
	SSEEventJobCreated  SSEEvent = "JobCreated"
	SSEEventJobProgress SSEEvent = "JobProgress"
	SSEEventJobFailed   SSEEvent = "JobFailed"
	SSEEventJobDone     SSEEvent = "JobDone"
	SSEEventJobCanceled SSEEvent = "JobCanceled"

	SSEEventWaveThought   SSEEvent = "WaveThought"
	SSEEventWaveLog       SSEEvent = "WaveLog"
	SSEEventWaveDelta     SSEEvent = "WaveDelta"
	SSEEventWaveCompleted SSEEvent = "WaveCompleted"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// JobChannel carries every event of one job. CaseChannel carries job
// lifecycle events for all jobs of a case.
func JobChannel(jobID string) string   { return "job:" + jobID }
func CaseChannel(caseID string) string { return "case:" + caseID }
