package _202501201130_ledgerJobRuns

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS ledger_job_runs (
			idempotency_key varchar primary key,
			epoch_id bigint not null,
			operation varchar not null,
			status varchar not null,
			completed_at timestamp with time zone not null
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_job_runs_epoch ON ledger_job_runs (epoch_id)`,
	}
	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			return res.Error
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202501201130_ledgerJobRuns"
}
