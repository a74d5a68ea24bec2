package briefs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/amicus-backend/internal/domain"
	"github.com/yungbote/amicus-backend/internal/pkg/dbctx"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
)

type BriefWaveLogRepo interface {
	// Append numbers entries after the wave's current last seq.
	Append(dbc dbctx.Context, jobID uuid.UUID, waveNumber int, entries []*types.BriefWaveLog) error
	// ListByJob returns entries in (wave, seq) order. waveNumber <= 0 lists all waves.
	ListByJob(dbc dbctx.Context, jobID uuid.UUID, waveNumber int) ([]*types.BriefWaveLog, error)
}

type briefWaveLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBriefWaveLogRepo(db *gorm.DB, baseLog *logger.Logger) BriefWaveLogRepo {
	return &briefWaveLogRepo{db: db, log: baseLog.With("repo", "BriefWaveLogRepo")}
}

func (r *briefWaveLogRepo) Append(dbc dbctx.Context, jobID uuid.UUID, waveNumber int, entries []*types.BriefWaveLog) error {
	if jobID == uuid.Nil || len(entries) == 0 {
		return nil
	}
	conn := dbc.Conn(r.db)
	var maxSeq int64
	if err := conn.Model(&types.BriefWaveLog{}).
		Where("job_id = ? AND wave_number = ?", jobID, waveNumber).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error; err != nil {
		return err
	}
	next := int(maxSeq) + 1
	now := time.Now().UTC()
	for _, e := range entries {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		e.JobID = jobID
		e.WaveNumber = waveNumber
		e.Seq = next
		next++
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
	}
	return conn.Create(&entries).Error
}

func (r *briefWaveLogRepo) ListByJob(dbc dbctx.Context, jobID uuid.UUID, waveNumber int) ([]*types.BriefWaveLog, error) {
	var out []*types.BriefWaveLog
	if jobID == uuid.Nil {
		return out, nil
	}
	q := dbc.Conn(r.db).Where("job_id = ?", jobID)
	if waveNumber > 0 {
		q = q.Where("wave_number = ?", waveNumber)
	}
	if err := q.Order("wave_number ASC").Order("seq ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
