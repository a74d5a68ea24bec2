package briefs

import "github.com/google/uuid"

const (
	JobTypeBriefGenerate = "brief_generate"
	EntityTypeCase       = "case"
)

// GeneratePayload is the job_run.payload of a brief_generate job. Empty id
// lists mean every row attached to the case.
type GeneratePayload struct {
	CaseID             uuid.UUID   `json:"case_id"`
	BriefID            uuid.UUID   `json:"brief_id"`
	ApprovedOutline    string      `json:"approved_outline"`
	Title              string      `json:"title,omitempty"`
	DocumentIDs        []uuid.UUID `json:"document_ids,omitempty"`
	ResearchIDs        []uuid.UUID `json:"research_ids,omitempty"`
	JusticeAnalysisIDs []uuid.UUID `json:"justice_analysis_ids,omitempty"`
	ReferenceBriefID   *uuid.UUID  `json:"reference_brief_id,omitempty"`
	TraceID            string      `json:"trace_id,omitempty"`
	RequestID          string      `json:"request_id,omitempty"`
}
