package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	types "github.com/yungbote/amicus-backend/internal/domain"
	"github.com/yungbote/amicus-backend/internal/modules/briefs/waves"
	"github.com/yungbote/amicus-backend/internal/realtime"
)

type recordingEmitter struct {
	mu   sync.Mutex
	msgs []realtime.SSEMessage
}

func (r *recordingEmitter) Emit(_ context.Context, msg realtime.SSEMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func TestJobNotifierFansOutToJobAndCase(t *testing.T) {
	rec := &recordingEmitter{}
	n := NewJobNotifier(rec)
	caseID := uuid.New()
	job := &types.JobRun{ID: uuid.New(), JobType: "brief_generate", EntityID: &caseID}

	n.JobProgress(job, "wave_2", 20, "Historical Research")
	if len(rec.msgs) != 2 {
		t.Fatalf("msgs=%d", len(rec.msgs))
	}
	if rec.msgs[0].Channel != "job:"+job.ID.String() || rec.msgs[1].Channel != "case:"+caseID.String() {
		t.Fatalf("channels=%s,%s", rec.msgs[0].Channel, rec.msgs[1].Channel)
	}
	if rec.msgs[0].Event != realtime.SSEEventJobProgress {
		t.Fatalf("event=%s", rec.msgs[0].Event)
	}
}

func TestJobNotifierNarrationStaysOnJobChannel(t *testing.T) {
	rec := &recordingEmitter{}
	n := NewJobNotifier(rec)
	jobID := uuid.NewString()

	n.OnLog(jobID, 3, "Loaded 4 documents")
	n.OnThought(jobID, 3, waves.ThoughtEntry{Type: waves.ThoughtThinking, Text: "reading"})
	n.OnDelta(jobID, 3, `{"brief": "# Brief`)
	n.OnDelta(jobID, 3, "")
	if len(rec.msgs) != 3 {
		t.Fatalf("msgs=%d", len(rec.msgs))
	}
	for _, m := range rec.msgs {
		if m.Channel != "job:"+jobID {
			t.Fatalf("channel=%s", m.Channel)
		}
	}
	if rec.msgs[1].Event != realtime.SSEEventWaveThought || rec.msgs[2].Event != realtime.SSEEventWaveDelta {
		t.Fatalf("events=%s,%s", rec.msgs[1].Event, rec.msgs[2].Event)
	}
}

func TestJobNotifierWithoutCase(t *testing.T) {
	rec := &recordingEmitter{}
	n := NewJobNotifier(rec)
	n.JobDone(&types.JobRun{ID: uuid.New()})
	n.WaveCompleted(&types.JobRun{ID: uuid.New()}, nil)
	if len(rec.msgs) != 1 {
		t.Fatalf("msgs=%d", len(rec.msgs))
	}
}
