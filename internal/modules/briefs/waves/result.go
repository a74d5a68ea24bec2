package waves

import "time"

const (
	ChangeAdded    = "added"
	ChangeModified = "modified"
	ChangeRemoved  = "removed"
	ChangeNote     = "note"
)

type SectionChange struct {
	Section string `json:"section"`
	Type    string `json:"type"`
	Summary string `json:"summary,omitempty"`
	// Origin is "diff" for computed changes and "model" for reported ones.
	Origin string `json:"origin"`
}

// SourceLocation places one source marker in the brief. Paragraph is 1-based
// within the section.
type SourceLocation struct {
	Section   string `json:"section"`
	Paragraph int    `json:"paragraph"`
}

// WaveResult is the immutable output of one wave.
type WaveResult struct {
	WaveNumber            int                         `json:"wave_number"`
	WaveName              string                      `json:"wave_name"`
	Model                 string                      `json:"model"`
	WordCount             int                         `json:"word_count"`
	CitationsAdded        int                         `json:"citations_added"`
	CitationCount         int                         `json:"citation_count"`
	PlaceholdersRemaining int                         `json:"placeholders_remaining"`
	SourcesUsed           []string                    `json:"sources_used"`
	Changes               []SectionChange             `json:"changes"`
	BriefID               string                      `json:"brief_id,omitempty"`
	Content               string                      `json:"content"`
	SourceMap             map[string][]SourceLocation `json:"source_map"`
	Logs                  []string                    `json:"logs"`
	Thoughts              []ThoughtEntry              `json:"thoughts,omitempty"`
	ParseFallback         bool                        `json:"parse_fallback"`
	PromptFingerprint     string                      `json:"prompt_fingerprint"`
	StartedAt             time.Time                   `json:"started_at"`
	FinishedAt            time.Time                   `json:"finished_at"`
}
