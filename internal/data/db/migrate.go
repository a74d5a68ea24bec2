package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/amicus-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return EnsureJobIndexes(db)
}

// EnsureJobIndexes adds indexes gorm tags cannot express portably. An
// idempotency key names at most one job per job type; empty keys are exempt.
func EnsureJobIndexes(db *gorm.DB) error {
	stmts := []struct {
		name string
		sql  string
	}{
		{
			name: "idx_job_run_claim",
			sql:  `CREATE INDEX IF NOT EXISTS idx_job_run_claim ON job_run(status, created_at);`,
		},
		{
			name: "idx_job_run_idempotency",
			sql:  `DROP INDEX IF EXISTS idx_job_run_idempotency;`,
		},
		{
			name: "uq_job_run_idempotency",
			sql:  `CREATE UNIQUE INDEX IF NOT EXISTS uq_job_run_idempotency ON job_run(job_type, idempotency_key) WHERE idempotency_key <> '';`,
		},
		{
			name: "idx_brief_wave_log_order",
			sql:  `CREATE INDEX IF NOT EXISTS idx_brief_wave_log_order ON brief_wave_log(job_id, wave_number, seq);`,
		},
	}
	for _, s := range stmts {
		if err := db.Exec(s.sql).Error; err != nil {
			return fmt.Errorf("ensure %s: %w", s.name, err)
		}
	}
	return nil
}
