package _202501150910_ledgerTables

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS epochs (
			id bigserial primary key,
			node_id varchar not null,
			scope_id varchar not null,
			period_start timestamp with time zone not null,
			period_end timestamp with time zone not null,
			weight_config jsonb not null,
			status varchar not null default 'open',
			pool_total_credits bigint,
			closed_at timestamp with time zone,
			created_at timestamp with time zone default current_timestamp,
			updated_at timestamp with time zone default current_timestamp,
			constraint epochs_period_check check (period_start < period_end),
			constraint epochs_status_check check (status in ('open', 'closed'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_epochs_node_status ON epochs (node_id, status)`,
		`CREATE TABLE IF NOT EXISTS activity_events (
			id varchar primary key,
			node_id varchar not null,
			scope_id varchar not null,
			source varchar not null,
			event_type varchar not null,
			platform_user_id varchar not null,
			platform_login varchar,
			artifact_url varchar,
			payload_hash varchar not null,
			producer varchar not null,
			producer_version varchar not null,
			event_time timestamp with time zone not null,
			retrieved_at timestamp with time zone not null,
			created_at timestamp with time zone default current_timestamp
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_events_window ON activity_events (node_id, scope_id, event_time)`,
		`CREATE TABLE IF NOT EXISTS curations (
			id bigserial primary key,
			epoch_id bigint not null references epochs(id),
			event_id varchar not null references activity_events(id),
			node_id varchar not null,
			user_id varchar,
			included boolean not null,
			created_at timestamp with time zone default current_timestamp,
			updated_at timestamp with time zone default current_timestamp
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_curations_epoch_event ON curations (epoch_id, event_id)`,
		`CREATE TABLE IF NOT EXISTS allocations (
			id bigserial primary key,
			epoch_id bigint not null references epochs(id),
			user_id varchar not null,
			node_id varchar not null,
			proposed_units bigint not null,
			activity_count bigint not null
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_allocations_epoch_user ON allocations (epoch_id, user_id)`,
		`CREATE TABLE IF NOT EXISTS pool_components (
			id bigserial primary key,
			epoch_id bigint not null references epochs(id),
			component_id varchar not null,
			node_id varchar not null,
			algorithm_version varchar not null,
			inputs_json jsonb not null,
			amount_credits bigint not null,
			created_at timestamp with time zone default current_timestamp,
			constraint pool_components_amount_check check (amount_credits >= 0)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_pool_components_epoch_component ON pool_components (epoch_id, component_id)`,
		`CREATE TABLE IF NOT EXISTS payout_statements (
			id bigserial primary key,
			epoch_id bigint not null references epochs(id),
			node_id varchar not null,
			allocation_set_hash varchar not null,
			pool_total_credits bigint not null,
			payouts jsonb not null,
			created_at timestamp with time zone default current_timestamp
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_payout_statements_epoch ON payout_statements (epoch_id)`,
	}
	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			return res.Error
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202501150910_ledgerTables"
}
