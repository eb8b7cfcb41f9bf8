package database

import (
	"context"
	"fmt"

	"github.com/paiban/banbiao/pkg/logger"
)

// 日期一律存为 ISO 文本（YYYY-MM-DD），与哈希输入保持一致。
// default_demands.weekday 用 -1 表示回退模板（星期无关）。
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS locations (
		id          BIGSERIAL PRIMARY KEY,
		tenant      TEXT NOT NULL,
		name        TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (tenant, name)
	)`,
	`CREATE TABLE IF NOT EXISTS employees (
		id           BIGSERIAL PRIMARY KEY,
		tenant       TEXT NOT NULL,
		employee_id  TEXT NOT NULL,
		name         TEXT NOT NULL DEFAULT '',
		email        TEXT NOT NULL DEFAULT '',
		experienced  BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (tenant, employee_id)
	)`,
	`CREATE TABLE IF NOT EXISTS availability (
		id              BIGSERIAL PRIMARY KEY,
		tenant          TEXT NOT NULL,
		employee_id     TEXT NOT NULL,
		date            TEXT NOT NULL,
		experienced     BOOLEAN NOT NULL DEFAULT FALSE,
		hours_min       INTEGER NOT NULL DEFAULT 0,
		hours_max       INTEGER NOT NULL DEFAULT 0,
		available_slots JSONB NOT NULL DEFAULT '[]',
		assigned_shift  JSONB,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (tenant, employee_id, date)
	)`,
	`CREATE TABLE IF NOT EXISTS demands (
		id                 BIGSERIAL PRIMARY KEY,
		tenant             TEXT NOT NULL,
		content_hash       TEXT NOT NULL,
		raw_payload        JSONB NOT NULL DEFAULT '[]',
		date_from          TEXT NOT NULL,
		date_to            TEXT NOT NULL,
		schedule_generated BOOLEAN NOT NULL DEFAULT FALSE,
		solved_at          TIMESTAMPTZ,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (tenant, content_hash)
	)`,
	`CREATE TABLE IF NOT EXISTS day_demand_index (
		id         BIGSERIAL PRIMARY KEY,
		tenant     TEXT NOT NULL,
		date       TEXT NOT NULL,
		location   TEXT NOT NULL,
		day_hash   TEXT NOT NULL,
		demand_id  BIGINT NOT NULL REFERENCES demands(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (tenant, date, location, day_hash)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_day_demand_index_lookup
		ON day_demand_index (tenant, date, location, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS default_demands (
		id         BIGSERIAL PRIMARY KEY,
		tenant     TEXT NOT NULL,
		location   TEXT NOT NULL,
		weekday    INTEGER NOT NULL DEFAULT -1,
		items      JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (tenant, location, weekday)
	)`,
	`CREATE TABLE IF NOT EXISTS schedule_shifts (
		id                 BIGSERIAL PRIMARY KEY,
		tenant             TEXT NOT NULL,
		demand_id          BIGINT NOT NULL REFERENCES demands(id) ON DELETE CASCADE,
		shift_uid          TEXT NOT NULL,
		date               TEXT NOT NULL,
		location           TEXT NOT NULL,
		start_time         TEXT NOT NULL,
		end_time           TEXT NOT NULL,
		demand_count       INTEGER NOT NULL DEFAULT 0,
		needs_experienced  BOOLEAN NOT NULL DEFAULT FALSE,
		assigned_employees JSONB NOT NULL DEFAULT '[]',
		missing_minutes    INTEGER NOT NULL DEFAULT 0,
		meta               JSONB NOT NULL DEFAULT '{}',
		user_edited        BOOLEAN NOT NULL DEFAULT FALSE,
		confirmed          BOOLEAN NOT NULL DEFAULT FALSE,
		approved_by        TEXT NOT NULL DEFAULT '',
		approved_at        TIMESTAMPTZ,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (tenant, shift_uid),
		UNIQUE (demand_id, date, location, start_time, end_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_schedule_shifts_day
		ON schedule_shifts (tenant, date, location)`,
	`CREATE TABLE IF NOT EXISTS event_rules (
		id                        BIGSERIAL PRIMARY KEY,
		tenant                    TEXT NOT NULL,
		name                      TEXT NOT NULL,
		mode                      TEXT NOT NULL,
		value                     DOUBLE PRECISION NOT NULL DEFAULT 1,
		needs_experienced_default BOOLEAN NOT NULL DEFAULT FALSE,
		min_demand                INTEGER,
		max_demand                INTEGER,
		active                    BOOLEAN NOT NULL DEFAULT TRUE,
		created_at                TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS special_days (
		id         BIGSERIAL PRIMARY KEY,
		tenant     TEXT NOT NULL,
		date       TEXT NOT NULL,
		location   TEXT NOT NULL DEFAULT '',
		rule_id    BIGINT NOT NULL REFERENCES event_rules(id) ON DELETE CASCADE,
		active     BOOLEAN NOT NULL DEFAULT TRUE,
		note       TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_special_days_date
		ON special_days (tenant, date)`,
	`CREATE TABLE IF NOT EXISTS shift_transfer_requests (
		id              UUID PRIMARY KEY,
		tenant          TEXT NOT NULL,
		shift_uid       TEXT NOT NULL,
		requested_by    TEXT NOT NULL,
		action          TEXT NOT NULL,
		target_employee TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL DEFAULT 'pending',
		note            TEXT NOT NULL DEFAULT '',
		manager_note    TEXT NOT NULL DEFAULT '',
		approved_by     TEXT NOT NULL DEFAULT '',
		approved_at     TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate 建立缺失的表结构
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("初始化表结构失败: %w", err)
		}
	}
	logger.Info().Int("statements", len(schemaStatements)).Msg("数据库表结构就绪")
	return nil
}
