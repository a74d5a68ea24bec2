package waves

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type ThoughtType string

const (
	ThoughtThinking  ThoughtType = "thinking"
	ThoughtPlanning  ThoughtType = "planning"
	ThoughtWorking   ThoughtType = "working"
	ThoughtCompleted ThoughtType = "completed"
	ThoughtInsight   ThoughtType = "insight"
	ThoughtBreak     ThoughtType = "break"
)

// ThoughtEntry is narration for the progress UI. It never affects control flow.
type ThoughtEntry struct {
	ID        string      `json:"id"`
	Timestamp string      `json:"timestamp"`
	Type      ThoughtType `json:"type"`
	Wave      int         `json:"wave,omitempty"`
	WaveName  string      `json:"wave_name,omitempty"`
	Text      string      `json:"thought"`
	Details   string      `json:"details,omitempty"`
	Mood      string      `json:"mood,omitempty"`
}

type ThoughtOptions struct {
	Wave     int
	WaveName string
	Details  string
	Mood     string
}

var nowUTC = func() time.Time { return time.Now().UTC() }

// AddThought appends a new entry and returns the extended list with the entry.
// Timestamps never go backwards within a list.
func AddThought(list []ThoughtEntry, typ ThoughtType, text string, opts ThoughtOptions) ([]ThoughtEntry, ThoughtEntry) {
	ts := nowUTC()
	if n := len(list); n > 0 {
		if last, err := time.Parse(time.RFC3339Nano, list[n-1].Timestamp); err == nil && ts.Before(last) {
			ts = last
		}
	}
	e := ThoughtEntry{
		ID:        fmt.Sprintf("thought_%d_%s", ts.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8]),
		Timestamp: ts.Format(time.RFC3339Nano),
		Type:      typ,
		Wave:      opts.Wave,
		WaveName:  opts.WaveName,
		Text:      text,
		Details:   opts.Details,
		Mood:      opts.Mood,
	}
	return append(list, e), e
}

// Recorder is a concurrency-safe thought list scoped to one wave.
type Recorder struct {
	mu       sync.Mutex
	wave     int
	waveName string
	entries  []ThoughtEntry
	onAdd    func(ThoughtEntry)
}

// NewRecorder stamps every entry with the wave. onAdd may be nil.
func NewRecorder(wave int, waveName string, onAdd func(ThoughtEntry)) *Recorder {
	return &Recorder{wave: wave, waveName: waveName, onAdd: onAdd}
}

func (r *Recorder) Add(typ ThoughtType, text string, details string, mood string) ThoughtEntry {
	r.mu.Lock()
	var e ThoughtEntry
	r.entries, e = AddThought(r.entries, typ, text, ThoughtOptions{
		Wave:     r.wave,
		WaveName: r.waveName,
		Details:  details,
		Mood:     mood,
	})
	r.mu.Unlock()
	if r.onAdd != nil {
		r.onAdd(e)
	}
	return e
}

func (r *Recorder) Entries() []ThoughtEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ThoughtEntry(nil), r.entries...)
}
