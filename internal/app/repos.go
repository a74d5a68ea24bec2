package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/amicus-backend/internal/data/repos"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
)

type Repos struct {
	JobRun      repos.JobRunRepo
	JobRunEvent repos.JobRunEventRepo

	Case         repos.CaseRepo
	Document     repos.CaseDocumentRepo
	Research     repos.ResearchResultRepo
	Justice      repos.JusticeAnalysisRepo
	Reference    repos.ReferenceBriefRepo
	CaseChat     repos.CaseChatMessageRepo
	Brief        repos.BriefRepo
	BriefWave    repos.BriefWaveRepo
	BriefWaveLog repos.BriefWaveLogRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		JobRun:       repos.NewJobRunRepo(db, log),
		JobRunEvent:  repos.NewJobRunEventRepo(db, log),
		Case:         repos.NewCaseRepo(db, log),
		Document:     repos.NewCaseDocumentRepo(db, log),
		Research:     repos.NewResearchResultRepo(db, log),
		Justice:      repos.NewJusticeAnalysisRepo(db, log),
		Reference:    repos.NewReferenceBriefRepo(db, log),
		CaseChat:     repos.NewCaseChatMessageRepo(db, log),
		Brief:        repos.NewBriefRepo(db, log),
		BriefWave:    repos.NewBriefWaveRepo(db, log),
		BriefWaveLog: repos.NewBriefWaveLogRepo(db, log),
	}
}
