package briefs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	BriefStatusQueued     = "queued"
	BriefStatusGenerating = "generating"
	BriefStatusCompleted  = "completed"
	BriefStatusFailed     = "failed"
	BriefStatusCanceled   = "canceled"
)

// Brief holds the evolving text for one generation job.
type Brief struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"case_id"`
	JobID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"job_id"`
	Title         string         `gorm:"column:title" json:"title"`
	Status        string         `gorm:"column:status;not null;index" json:"status"`
	Content       string         `gorm:"column:content;type:text" json:"content,omitempty"`
	WordCount     int            `gorm:"column:word_count;not null;default:0" json:"word_count"`
	CitationCount int            `gorm:"column:citation_count;not null;default:0" json:"citation_count"`
	CurrentWave   int            `gorm:"column:current_wave;not null;default:0" json:"current_wave"`
	SourceMap     datatypes.JSON `gorm:"column:source_map;type:jsonb" json:"source_map,omitempty"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
}

func (Brief) TableName() string { return "brief" }

// BriefWave is the persisted, write-once result of one wave.
type BriefWave struct {
	ID                    uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	JobID                 uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_brief_wave_job_wave" json:"job_id"`
	WaveNumber            int            `gorm:"column:wave_number;not null;uniqueIndex:idx_brief_wave_job_wave" json:"wave_number"`
	BriefID               uuid.UUID      `gorm:"type:uuid;not null;index" json:"brief_id"`
	WaveName              string         `gorm:"column:wave_name;not null" json:"wave_name"`
	Model                 string         `gorm:"column:model" json:"model,omitempty"`
	WordCount             int            `gorm:"column:word_count;not null" json:"word_count"`
	CitationsAdded        int            `gorm:"column:citations_added;not null" json:"citations_added"`
	PlaceholdersRemaining int            `gorm:"column:placeholders_remaining;not null" json:"placeholders_remaining"`
	SourcesUsed           datatypes.JSON `gorm:"column:sources_used;type:jsonb" json:"sources_used"`
	Changes               datatypes.JSON `gorm:"column:changes;type:jsonb" json:"changes"`
	SourceMap             datatypes.JSON `gorm:"column:source_map;type:jsonb" json:"source_map"`
	Logs                  datatypes.JSON `gorm:"column:logs;type:jsonb" json:"logs"`
	Thoughts              datatypes.JSON `gorm:"column:thoughts;type:jsonb" json:"thoughts"`
	Content               string         `gorm:"column:content;type:text" json:"content,omitempty"`
	ParseFallback         bool           `gorm:"column:parse_fallback;not null;default:false" json:"parse_fallback"`
	PromptFingerprint     string         `gorm:"column:prompt_fingerprint" json:"prompt_fingerprint,omitempty"`
	StartedAt             time.Time      `gorm:"column:started_at" json:"started_at"`
	FinishedAt            time.Time      `gorm:"column:finished_at" json:"finished_at"`
	CreatedAt             time.Time      `gorm:"not null" json:"created_at"`
}

func (BriefWave) TableName() string { return "brief_wave" }

const (
	WaveLogKindLog     = "log"
	WaveLogKindThought = "thought"
)

// BriefWaveLog is one ordered line of a wave's narration.
type BriefWaveLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	JobID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_brief_wave_log_job_wave" json:"job_id"`
	WaveNumber int            `gorm:"column:wave_number;not null;index:idx_brief_wave_log_job_wave" json:"wave_number"`
	Seq        int            `gorm:"column:seq;not null" json:"seq"`
	Kind       string         `gorm:"column:kind;not null" json:"kind"`
	Message    string         `gorm:"column:message;type:text" json:"message"`
	Data       datatypes.JSON `gorm:"column:data;type:jsonb" json:"data,omitempty"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
}

func (BriefWaveLog) TableName() string { return "brief_wave_log" }
