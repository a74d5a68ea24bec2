package briefs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/amicus-backend/internal/domain"
	"github.com/yungbote/amicus-backend/internal/pkg/dbctx"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
)

type CaseRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Case, error)
	UpdateFacts(dbc dbctx.Context, id uuid.UUID, facts datatypes.JSON) error
}

type caseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCaseRepo(db *gorm.DB, baseLog *logger.Logger) CaseRepo {
	return &caseRepo{db: db, log: baseLog.With("repo", "CaseRepo")}
}

// GetByID returns nil, nil when the case does not exist.
func (r *caseRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Case, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var c types.Case
	if err := dbc.Conn(r.db).Where("id = ?", id).Limit(1).Find(&c).Error; err != nil {
		return nil, err
	}
	if c.ID == uuid.Nil {
		return nil, nil
	}
	return &c, nil
}

func (r *caseRepo) UpdateFacts(dbc dbctx.Context, id uuid.UUID, facts datatypes.JSON) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	return dbc.Conn(r.db).
		Model(&types.Case{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"facts":              facts,
			"facts_extracted_at": now,
			"updated_at":         now,
		}).Error
}

type CaseDocumentRepo interface {
	ListByCase(dbc dbctx.Context, caseID uuid.UUID, ids []uuid.UUID) ([]*types.CaseDocument, error)
}

type caseDocumentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCaseDocumentRepo(db *gorm.DB, baseLog *logger.Logger) CaseDocumentRepo {
	return &caseDocumentRepo{db: db, log: baseLog.With("repo", "CaseDocumentRepo")}
}

// ListByCase narrows to ids when any are given.
func (r *caseDocumentRepo) ListByCase(dbc dbctx.Context, caseID uuid.UUID, ids []uuid.UUID) ([]*types.CaseDocument, error) {
	var out []*types.CaseDocument
	if caseID == uuid.Nil {
		return out, nil
	}
	q := dbc.Conn(r.db).Where("case_id = ?", caseID)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	if err := q.Order("created_at ASC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type ResearchResultRepo interface {
	ListByCase(dbc dbctx.Context, caseID uuid.UUID, ids []uuid.UUID) ([]*types.ResearchResult, error)
}

type researchResultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResearchResultRepo(db *gorm.DB, baseLog *logger.Logger) ResearchResultRepo {
	return &researchResultRepo{db: db, log: baseLog.With("repo", "ResearchResultRepo")}
}

func (r *researchResultRepo) ListByCase(dbc dbctx.Context, caseID uuid.UUID, ids []uuid.UUID) ([]*types.ResearchResult, error) {
	var out []*types.ResearchResult
	if caseID == uuid.Nil {
		return out, nil
	}
	q := dbc.Conn(r.db).Where("case_id = ?", caseID)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	if err := q.Order("relevance DESC").Order("created_at ASC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type JusticeAnalysisRepo interface {
	ListByCase(dbc dbctx.Context, caseID uuid.UUID, ids []uuid.UUID) ([]*types.JusticeAnalysis, error)
}

type justiceAnalysisRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJusticeAnalysisRepo(db *gorm.DB, baseLog *logger.Logger) JusticeAnalysisRepo {
	return &justiceAnalysisRepo{db: db, log: baseLog.With("repo", "JusticeAnalysisRepo")}
}

func (r *justiceAnalysisRepo) ListByCase(dbc dbctx.Context, caseID uuid.UUID, ids []uuid.UUID) ([]*types.JusticeAnalysis, error) {
	var out []*types.JusticeAnalysis
	if caseID == uuid.Nil {
		return out, nil
	}
	q := dbc.Conn(r.db).Where("case_id = ?", caseID)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	if err := q.Order("justice ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type ReferenceBriefRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ReferenceBrief, error)
	GetLatestForCase(dbc dbctx.Context, caseID uuid.UUID) (*types.ReferenceBrief, error)
}

type referenceBriefRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReferenceBriefRepo(db *gorm.DB, baseLog *logger.Logger) ReferenceBriefRepo {
	return &referenceBriefRepo{db: db, log: baseLog.With("repo", "ReferenceBriefRepo")}
}

func (r *referenceBriefRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ReferenceBrief, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var b types.ReferenceBrief
	if err := dbc.Conn(r.db).Where("id = ?", id).Limit(1).Find(&b).Error; err != nil {
		return nil, err
	}
	if b.ID == uuid.Nil {
		return nil, nil
	}
	return &b, nil
}

func (r *referenceBriefRepo) GetLatestForCase(dbc dbctx.Context, caseID uuid.UUID) (*types.ReferenceBrief, error) {
	if caseID == uuid.Nil {
		return nil, nil
	}
	var b types.ReferenceBrief
	if err := dbc.Conn(r.db).
		Where("case_id = ?", caseID).
		Order("created_at DESC").
		Limit(1).
		Find(&b).Error; err != nil {
		return nil, err
	}
	if b.ID == uuid.Nil {
		return nil, nil
	}
	return &b, nil
}

type CaseChatMessageRepo interface {
	ListByCase(dbc dbctx.Context, caseID uuid.UUID, limit int) ([]*types.CaseChatMessage, error)
}

type caseChatMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCaseChatMessageRepo(db *gorm.DB, baseLog *logger.Logger) CaseChatMessageRepo {
	return &caseChatMessageRepo{db: db, log: baseLog.With("repo", "CaseChatMessageRepo")}
}

// ListByCase returns the transcript oldest first. limit <= 0 returns everything.
func (r *caseChatMessageRepo) ListByCase(dbc dbctx.Context, caseID uuid.UUID, limit int) ([]*types.CaseChatMessage, error) {
	var out []*types.CaseChatMessage
	if caseID == uuid.Nil {
		return out, nil
	}
	q := dbc.Conn(r.db).Where("case_id = ?", caseID).Order("created_at ASC").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
