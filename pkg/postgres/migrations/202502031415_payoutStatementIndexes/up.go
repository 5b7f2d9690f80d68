package _202502031415_payoutStatementIndexes

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

// Up adds the node scoped lookups used by the public read routes.
func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	queries := []string{
		`CREATE INDEX IF NOT EXISTS idx_payout_statements_node_epoch ON payout_statements (node_id, epoch_id)`,
		`CREATE INDEX IF NOT EXISTS idx_allocations_node_epoch ON allocations (node_id, epoch_id)`,
		`CREATE INDEX IF NOT EXISTS idx_curations_node_epoch_included ON curations (node_id, epoch_id, included)`,
	}
	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			return res.Error
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202502031415_payoutStatementIndexes"
}
