package cmd

import (
	"database/sql"

	"github.com/epochledger/epochledger/internal/config"
	"github.com/epochledger/epochledger/internal/metrics"
	"github.com/epochledger/epochledger/pkg/eventBus"
	"github.com/epochledger/epochledger/pkg/ledger"
	"github.com/epochledger/epochledger/pkg/postgres"
	"github.com/epochledger/epochledger/pkg/postgres/migrations"
	pgStorage "github.com/epochledger/epochledger/pkg/storage/postgres"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// setupDatabase opens the configured postgres database and applies any pending migrations.
func setupDatabase(cfg *config.Config, l *zap.Logger, createIfNotExists bool) (*sql.DB, *gorm.DB, error) {
	pgConfig := postgres.PostgresConfigFromDbConfig(&cfg.DatabaseConfig)
	pgConfig.CreateDbIfNotExists = createIfNotExists

	pg, err := postgres.NewPostgres(pgConfig)
	if err != nil {
		l.Sugar().Errorw("Failed to setup postgres connection", zap.Error(err))
		return nil, nil, err
	}

	grm, err := postgres.NewGormFromPostgresConnection(pg.Db)
	if err != nil {
		l.Sugar().Errorw("Failed to create gorm instance", zap.Error(err))
		return nil, nil, err
	}

	migrator := migrations.NewMigrator(pg.Db, grm, l)
	if err = migrator.MigrateAll(); err != nil {
		l.Sugar().Errorw("Failed to migrate", zap.Error(err))
		return nil, nil, err
	}
	return pg.Db, grm, nil
}

func setupMetricsSink(cfg *config.Config, l *zap.Logger) (*metrics.MetricsSink, error) {
	metricsClients, err := metrics.InitMetricsSinksFromConfig(cfg, l)
	if err != nil {
		l.Sugar().Errorw("Failed to setup metrics sink", zap.Error(err))
		return nil, err
	}
	return metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, metricsClients)
}

type ledgerComponents struct {
	db       *sql.DB
	store    *pgStorage.PostgresLedgerStore
	sink     *metrics.MetricsSink
	eventBus *eventBus.EventBus
	ledger   *ledger.LedgerService
}

// setupLedger wires the storage, metrics and ledger service used by both the long running
// node and the one-shot commands.
func setupLedger(cfg *config.Config, l *zap.Logger) (*ledgerComponents, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sink, err := setupMetricsSink(cfg, l)
	if err != nil {
		return nil, err
	}
	db, grm, err := setupDatabase(cfg, l, false)
	if err != nil {
		return nil, err
	}

	store := pgStorage.NewPostgresLedgerStore(grm, l, cfg)
	eb := eventBus.NewEventBus(l)

	return &ledgerComponents{
		db:       db,
		store:    store,
		sink:     sink,
		eventBus: eb,
		ledger:   ledger.NewLedgerService(store, sink, eb, l, cfg),
	}, nil
}
