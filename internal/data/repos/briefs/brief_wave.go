package briefs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/amicus-backend/internal/data/dberr"
	types "github.com/yungbote/amicus-backend/internal/domain"
	"github.com/yungbote/amicus-backend/internal/pkg/dbctx"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
)

type BriefWaveRepo interface {
	// Insert is idempotent on (job_id, wave_number): a second write for the
	// same wave keeps the first row and reports inserted=false.
	Insert(dbc dbctx.Context, w *types.BriefWave) (inserted bool, err error)
	Get(dbc dbctx.Context, jobID uuid.UUID, waveNumber int) (*types.BriefWave, error)
	Exists(dbc dbctx.Context, jobID uuid.UUID, waveNumber int) (bool, error)
	ListByJob(dbc dbctx.Context, jobID uuid.UUID, includeContent bool) ([]*types.BriefWave, error)
	LatestWaveNumber(dbc dbctx.Context, jobID uuid.UUID) (int, error)
}

type briefWaveRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBriefWaveRepo(db *gorm.DB, baseLog *logger.Logger) BriefWaveRepo {
	return &briefWaveRepo{db: db, log: baseLog.With("repo", "BriefWaveRepo")}
}

func (r *briefWaveRepo) Insert(dbc dbctx.Context, w *types.BriefWave) (bool, error) {
	if w == nil || w.JobID == uuid.Nil {
		return false, nil
	}
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	res := dbc.Conn(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}, {Name: "wave_number"}},
			DoNothing: true,
		}).
		Create(w)
	if res.Error != nil {
		if dberr.IsUniqueViolation(res.Error) {
			r.log.Debug("wave already persisted", "job_id", w.JobID, "wave", w.WaveNumber)
			return false, nil
		}
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		r.log.Debug("wave already persisted", "job_id", w.JobID, "wave", w.WaveNumber)
		return false, nil
	}
	return true, nil
}

func (r *briefWaveRepo) Get(dbc dbctx.Context, jobID uuid.UUID, waveNumber int) (*types.BriefWave, error) {
	if jobID == uuid.Nil {
		return nil, nil
	}
	var w types.BriefWave
	if err := dbc.Conn(r.db).
		Where("job_id = ? AND wave_number = ?", jobID, waveNumber).
		Limit(1).
		Find(&w).Error; err != nil {
		return nil, err
	}
	if w.ID == uuid.Nil {
		return nil, nil
	}
	return &w, nil
}

func (r *briefWaveRepo) Exists(dbc dbctx.Context, jobID uuid.UUID, waveNumber int) (bool, error) {
	if jobID == uuid.Nil {
		return false, nil
	}
	var count int64
	if err := dbc.Conn(r.db).
		Model(&types.BriefWave{}).
		Where("job_id = ? AND wave_number = ?", jobID, waveNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *briefWaveRepo) ListByJob(dbc dbctx.Context, jobID uuid.UUID, includeContent bool) ([]*types.BriefWave, error) {
	var out []*types.BriefWave
	if jobID == uuid.Nil {
		return out, nil
	}
	q := dbc.Conn(r.db).Where("job_id = ?", jobID).Order("wave_number ASC")
	if !includeContent {
		q = q.Omit("content")
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// LatestWaveNumber returns 0 when no wave has been persisted.
func (r *briefWaveRepo) LatestWaveNumber(dbc dbctx.Context, jobID uuid.UUID) (int, error) {
	if jobID == uuid.Nil {
		return 0, nil
	}
	var n int64
	if err := dbc.Conn(r.db).
		Model(&types.BriefWave{}).
		Where("job_id = ?", jobID).
		Select("COALESCE(MAX(wave_number), 0)").
		Scan(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}
