package brief_generate

import (
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/amicus-backend/internal/data/repos"
	types "github.com/yungbote/amicus-backend/internal/domain"
	"github.com/yungbote/amicus-backend/internal/jobs/orchestrator"
	"github.com/yungbote/amicus-backend/internal/modules/briefs/waves"
	"github.com/yungbote/amicus-backend/internal/observability"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/services"
	"github.com/yungbote/amicus-backend/internal/utils"
)

type Deps struct {
	Cases      repos.CaseRepo
	Documents  repos.CaseDocumentRepo
	Research   repos.ResearchResultRepo
	Justices   repos.JusticeAnalysisRepo
	References repos.ReferenceBriefRepo
	Chat       repos.CaseChatMessageRepo
	Briefs     repos.BriefRepo
	Waves      repos.BriefWaveRepo
	WaveLogs   repos.BriefWaveLogRepo

	Executor *waves.Executor
	Notify   services.JobNotifier
	Metrics  *observability.Metrics
}

type Config struct {
	WaveTimeout time.Duration
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	// ChatLimit caps the transcript handed to the prompts; zero keeps all of it.
	ChatLimit int
}

func ConfigFromEnv(log *logger.Logger) Config {
	return Config{
		WaveTimeout: utils.GetEnvAsSeconds("WAVE_TIMEOUT_SECONDS", 300*time.Second, log),
		MaxAttempts: utils.GetEnvAsInt("WAVE_MAX_ATTEMPTS", 3, log),
		MinBackoff:  utils.GetEnvAsSeconds("WAVE_MIN_BACKOFF_SECONDS", 2*time.Second, log),
		MaxBackoff:  utils.GetEnvAsSeconds("WAVE_MAX_BACKOFF_SECONDS", 60*time.Second, log),
		ChatLimit:   utils.GetEnvAsInt("BRIEF_CHAT_LIMIT", 200, log),
	}
}

type Pipeline struct {
	db     *gorm.DB
	log    *logger.Logger
	deps   Deps
	cfg    Config
	engine *orchestrator.Engine
}

func New(db *gorm.DB, baseLog *logger.Logger, deps Deps, cfg Config) *Pipeline {
	return &Pipeline{
		db:     db,
		log:    baseLog.With("job", types.JobTypeBriefGenerate),
		deps:   deps,
		cfg:    cfg,
		engine: orchestrator.NewEngine(),
	}
}

func (p *Pipeline) Type() string { return types.JobTypeBriefGenerate }
