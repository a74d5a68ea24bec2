package briefs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Case rows and their attachments are written by the case workspace;
// the brief pipeline only reads them.
type Case struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Title             string         `gorm:"column:title;not null" json:"title"`
	DocketNumber      string         `gorm:"column:docket_number;index" json:"docket_number,omitempty"`
	Court             string         `gorm:"column:court" json:"court,omitempty"`
	ClientName        string         `gorm:"column:client_name" json:"client_name,omitempty"`
	Position          string         `gorm:"column:position" json:"position,omitempty"`
	QuestionPresented string         `gorm:"column:question_presented;type:text" json:"question_presented,omitempty"`
	Description       string         `gorm:"column:description;type:text" json:"description,omitempty"`
	Facts             datatypes.JSON `gorm:"column:facts;type:jsonb" json:"facts,omitempty"`
	FactsExtractedAt  *time.Time     `gorm:"column:facts_extracted_at" json:"facts_extracted_at,omitempty"`
	CreatedAt         time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null" json:"updated_at"`
}

func (Case) TableName() string { return "case_record" }

type CaseDocument struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID    uuid.UUID `gorm:"type:uuid;not null;index" json:"case_id"`
	Title     string    `gorm:"column:title;not null" json:"title"`
	DocType   string    `gorm:"column:doc_type" json:"doc_type,omitempty"`
	Citation  string    `gorm:"column:citation" json:"citation,omitempty"`
	Summary   string    `gorm:"column:summary;type:text" json:"summary,omitempty"`
	Content   string    `gorm:"column:content;type:text" json:"content,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (CaseDocument) TableName() string { return "case_document" }

const (
	ResearchHistorical  = "historical"
	ResearchPrecedent   = "precedent"
	ResearchStatute     = "statute"
	ResearchScholarship = "scholarship"
)

type ResearchResult struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID    uuid.UUID `gorm:"type:uuid;not null;index" json:"case_id"`
	Category  string    `gorm:"column:category;not null;index" json:"category"`
	Title     string    `gorm:"column:title;not null" json:"title"`
	Citation  string    `gorm:"column:citation" json:"citation,omitempty"`
	Summary   string    `gorm:"column:summary;type:text" json:"summary,omitempty"`
	Content   string    `gorm:"column:content;type:text" json:"content,omitempty"`
	Relevance float64   `gorm:"column:relevance" json:"relevance"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (ResearchResult) TableName() string { return "research_result" }

type JusticeAnalysis struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID    uuid.UUID `gorm:"type:uuid;not null;index" json:"case_id"`
	Justice   string    `gorm:"column:justice;not null" json:"justice"`
	Alignment string    `gorm:"column:alignment" json:"alignment,omitempty"`
	Score     float64   `gorm:"column:score" json:"score"`
	Analysis  string    `gorm:"column:analysis;type:text" json:"analysis,omitempty"`
	Strategy  string    `gorm:"column:strategy;type:text" json:"strategy,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (JusticeAnalysis) TableName() string { return "justice_analysis" }

type ReferenceBrief struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID    *uuid.UUID `gorm:"type:uuid;index" json:"case_id,omitempty"`
	Title     string     `gorm:"column:title;not null" json:"title"`
	Court     string     `gorm:"column:court" json:"court,omitempty"`
	Content   string     `gorm:"column:content;type:text" json:"content,omitempty"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
}

func (ReferenceBrief) TableName() string { return "reference_brief" }

// CaseChatMessage is one turn of the attorney strategy session transcript.
type CaseChatMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID    uuid.UUID `gorm:"type:uuid;not null;index" json:"case_id"`
	Role      string    `gorm:"column:role;not null" json:"role"`
	Speaker   string    `gorm:"column:speaker" json:"speaker,omitempty"`
	Content   string    `gorm:"column:content;type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (CaseChatMessage) TableName() string { return "case_chat_message" }
