package briefs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/amicus-backend/internal/domain"
	"github.com/yungbote/amicus-backend/internal/pkg/dbctx"
	"github.com/yungbote/amicus-backend/internal/pkg/logger"
)

type BriefRepo interface {
	Create(dbc dbctx.Context, b *types.Brief) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Brief, error)
	GetByJobID(dbc dbctx.Context, jobID uuid.UUID) (*types.Brief, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type briefRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBriefRepo(db *gorm.DB, baseLog *logger.Logger) BriefRepo {
	return &briefRepo{db: db, log: baseLog.With("repo", "BriefRepo")}
}

func (r *briefRepo) Create(dbc dbctx.Context, b *types.Brief) error {
	if b == nil {
		return nil
	}
	now := time.Now().UTC()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now
	}
	return dbc.Conn(r.db).Create(b).Error
}

func (r *briefRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Brief, error) {
	return r.first(dbc, "id = ?", id)
}

func (r *briefRepo) GetByJobID(dbc dbctx.Context, jobID uuid.UUID) (*types.Brief, error) {
	return r.first(dbc, "job_id = ?", jobID)
}

func (r *briefRepo) first(dbc dbctx.Context, where string, id uuid.UUID) (*types.Brief, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var b types.Brief
	if err := dbc.Conn(r.db).Where(where, id).Limit(1).Find(&b).Error; err != nil {
		return nil, err
	}
	if b.ID == uuid.Nil {
		return nil, nil
	}
	return &b, nil
}

func (r *briefRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.Conn(r.db).Model(&types.Brief{}).Where("id = ?", id).Updates(updates).Error
}
