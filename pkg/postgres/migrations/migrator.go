package migrations

import (
	"database/sql"
	"fmt"
	"time"

	_202501150910_ledgerTables "github.com/epochledger/epochledger/pkg/postgres/migrations/202501150910_ledgerTables"
	_202501201130_ledgerJobRuns "github.com/epochledger/epochledger/pkg/postgres/migrations/202501201130_ledgerJobRuns"
	_202502031415_payoutStatementIndexes "github.com/epochledger/epochledger/pkg/postgres/migrations/202502031415_payoutStatementIndexes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Migration interface {
	Up(db *sql.DB, grm *gorm.DB) error
	GetName() string
}

type Migrator struct {
	Db     *sql.DB
	GDb    *gorm.DB
	Logger *zap.Logger
}

func NewMigrator(db *sql.DB, gDb *gorm.DB, l *zap.Logger) *Migrator {
	_ = gDb.AutoMigrate(&Migrations{})
	return &Migrator{
		Db:     db,
		GDb:    gDb,
		Logger: l,
	}
}

func (m *Migrator) MigrateAll() error {
	migrations := []Migration{
		&_202501150910_ledgerTables.Migration{},
		&_202501201130_ledgerJobRuns.Migration{},
		&_202502031415_payoutStatementIndexes.Migration{},
	}

	for _, migration := range migrations {
		if err := m.Migrate(migration); err != nil {
			return fmt.Errorf("migration '%s' failed: %w", migration.GetName(), err)
		}
	}
	return nil
}

func (m *Migrator) Migrate(migration Migration) error {
	name := migration.GetName()

	// find migration by name
	var migrationRecord Migrations
	result := m.GDb.Limit(1).Find(&migrationRecord, "name = ?", name)

	if result.Error == nil && result.RowsAffected == 0 {
		m.Logger.Sugar().Infow("Running migration", "name", name)
		// run migration
		err := migration.Up(m.Db, m.GDb)
		if err != nil {
			m.Logger.Sugar().Errorw(fmt.Sprintf("Failed to run migration '%s'", name), zap.Error(err))
			return err
		}

		// record migration
		migrationRecord = Migrations{
			Name: name,
		}
		result = m.GDb.Create(&migrationRecord)
		if result.Error != nil {
			m.Logger.Sugar().Errorw(fmt.Sprintf("Failed to record migration '%s'", name), zap.Error(result.Error))
			return result.Error
		}
	} else if result.Error != nil {
		m.Logger.Sugar().Errorw(fmt.Sprintf("Failed to find migration '%s'", name), zap.Error(result.Error))
		return result.Error
	} else if result.RowsAffected > 0 {
		m.Logger.Sugar().Debugw("Migration already run", "name", name)
		return nil
	}
	return nil
}

type Migrations struct {
	Name      string    `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"default:current_timestamp;type:timestamp with time zone"`
	UpdatedAt time.Time `gorm:"default:null;type:timestamp with time zone"`
}
