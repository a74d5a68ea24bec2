package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/amicus-backend/internal/data/repos/briefs"
	"github.com/yungbote/amicus-backend/internal/data/repos/jobs"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
)

type JobRunRepo = jobs.JobRunRepo
type JobRunEventRepo = jobs.JobRunEventRepo

type CaseRepo = briefs.CaseRepo
type CaseDocumentRepo = briefs.CaseDocumentRepo
type ResearchResultRepo = briefs.ResearchResultRepo
type JusticeAnalysisRepo = briefs.JusticeAnalysisRepo
type ReferenceBriefRepo = briefs.ReferenceBriefRepo
type CaseChatMessageRepo = briefs.CaseChatMessageRepo

type BriefRepo = briefs.BriefRepo
type BriefWaveRepo = briefs.BriefWaveRepo
type BriefWaveLogRepo = briefs.BriefWaveLogRepo

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}
func NewJobRunEventRepo(db *gorm.DB, baseLog *logger.Logger) JobRunEventRepo {
	return jobs.NewJobRunEventRepo(db, baseLog)
}

func NewCaseRepo(db *gorm.DB, baseLog *logger.Logger) CaseRepo { return briefs.NewCaseRepo(db, baseLog) }
func NewCaseDocumentRepo(db *gorm.DB, baseLog *logger.Logger) CaseDocumentRepo {
	return briefs.NewCaseDocumentRepo(db, baseLog)
}
func NewResearchResultRepo(db *gorm.DB, baseLog *logger.Logger) ResearchResultRepo {
	return briefs.NewResearchResultRepo(db, baseLog)
}
func NewJusticeAnalysisRepo(db *gorm.DB, baseLog *logger.Logger) JusticeAnalysisRepo {
	return briefs.NewJusticeAnalysisRepo(db, baseLog)
}
func NewReferenceBriefRepo(db *gorm.DB, baseLog *logger.Logger) ReferenceBriefRepo {
	return briefs.NewReferenceBriefRepo(db, baseLog)
}
func NewCaseChatMessageRepo(db *gorm.DB, baseLog *logger.Logger) CaseChatMessageRepo {
	return briefs.NewCaseChatMessageRepo(db, baseLog)
}

func NewBriefRepo(db *gorm.DB, baseLog *logger.Logger) BriefRepo { return briefs.NewBriefRepo(db, baseLog) }
func NewBriefWaveRepo(db *gorm.DB, baseLog *logger.Logger) BriefWaveRepo {
	return briefs.NewBriefWaveRepo(db, baseLog)
}
func NewBriefWaveLogRepo(db *gorm.DB, baseLog *logger.Logger) BriefWaveLogRepo {
	return briefs.NewBriefWaveLogRepo(db, baseLog)
}
