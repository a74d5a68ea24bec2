package services

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/amicus-backend/internal/data/repos"
	"github.com/yungbote/amicus-backend/internal/modules/briefs/facts"
	"github.com/yungbote/amicus-backend/internal/pkg/dbctx"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/platform/apierr"
)

type CaseFactsResult struct {
	CaseID   uuid.UUID   `json:"case_id"`
	Facts    facts.Facts `json:"facts"`
	Fallback bool        `json:"fallback"`
}

type CaseFactsService interface {
	// Extract runs one model call over the case and its documents and stores
	// the result on the case. Unparseable output stores the empty default.
	Extract(dbc dbctx.Context, caseID uuid.UUID) (*CaseFactsResult, error)
}

type caseFactsService struct {
	db        *gorm.DB
	log       *logger.Logger
	cases     repos.CaseRepo
	documents repos.CaseDocumentRepo
	extractor *facts.Extractor
}

func NewCaseFactsService(db *gorm.DB, baseLog *logger.Logger, cases repos.CaseRepo, documents repos.CaseDocumentRepo, extractor *facts.Extractor) CaseFactsService {
	return &caseFactsService{
		db:        db,
		log:       baseLog.With("service", "CaseFactsService"),
		cases:     cases,
		documents: documents,
		extractor: extractor,
	}
}

func (s *caseFactsService) Extract(dbc dbctx.Context, caseID uuid.UUID) (*CaseFactsResult, error) {
	if caseID == uuid.Nil {
		return nil, apierr.Invalid("invalid_case_id", "missing case id")
	}
	kase, err := s.cases.GetByID(dbc, caseID)
	if err != nil {
		return nil, err
	}
	if kase == nil {
		return nil, apierr.NotFound("case_not_found", "case "+caseID.String())
	}
	docs, err := s.documents.ListByCase(dbc, caseID, nil)
	if err != nil {
		return nil, err
	}

	in := facts.Input{
		Title:             kase.Title,
		DocketNumber:      kase.DocketNumber,
		Court:             kase.Court,
		QuestionPresented: kase.QuestionPresented,
		Description:       kase.Description,
	}
	for _, d := range docs {
		in.Documents = append(in.Documents, facts.Document{Title: d.Title, Summary: d.Summary, Content: d.Content})
	}

	// The model call runs outside any transaction.
	f, fallback, err := s.extractor.Extract(dbc.Ctx, in)
	if err != nil {
		s.log.Warn("case facts extraction failed", "case_id", caseID, "error", err)
		return nil, err
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode facts: %w", err)
	}
	if err := s.cases.UpdateFacts(dbc, caseID, datatypes.JSON(raw)); err != nil {
		return nil, fmt.Errorf("store facts: %w", err)
	}
	s.log.Info("case facts extracted",
		"case_id", caseID,
		"parties", len(f.Parties),
		"key_facts", len(f.KeyFacts),
		"fallback", fallback,
	)
	return &CaseFactsResult{CaseID: caseID, Facts: f, Fallback: fallback}, nil
}
