package config

import (
	"fmt"
	"strings"
)

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS datasources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			default_endpoint TEXT NOT NULL DEFAULT '',
			dsn TEXT NOT NULL,
			private_key_path TEXT NOT NULL DEFAULT '',
			schema_name TEXT NOT NULL DEFAULT '',
			table_name TEXT NOT NULL,
			is_featured INTEGER NOT NULL DEFAULT 0,
			filter_select_enabled INTEGER NOT NULL DEFAULT 0,
			"offset" INTEGER NOT NULL DEFAULT 0,
			cache_timeout INTEGER,
			params TEXT NOT NULL DEFAULT '',
			perm TEXT NOT NULL DEFAULT '',
			main_dttm_col TEXT NOT NULL DEFAULT '',
			max_open_conns INTEGER NOT NULL DEFAULT 25,
			max_idle_conns INTEGER NOT NULL DEFAULT 5,
			conn_max_lifetime_ms INTEGER NOT NULL DEFAULT 300000,
			conn_max_idle_time_ms INTEGER NOT NULL DEFAULT 60000,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_by TEXT NOT NULL DEFAULT '',
			updated_by TEXT NOT NULL DEFAULT '',
			UNIQUE(type, name)
		)`,

		`CREATE TABLE IF NOT EXISTS columns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			datasource_id INTEGER NOT NULL REFERENCES datasources(id) ON DELETE CASCADE,
			column_name TEXT NOT NULL,
			verbose_name TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL DEFAULT 1,
			type TEXT NOT NULL DEFAULT '',
			groupby INTEGER NOT NULL DEFAULT 0,
			count_distinct INTEGER NOT NULL DEFAULT 0,
			sum INTEGER NOT NULL DEFAULT 0,
			avg INTEGER NOT NULL DEFAULT 0,
			max INTEGER NOT NULL DEFAULT 0,
			min INTEGER NOT NULL DEFAULT 0,
			filterable INTEGER NOT NULL DEFAULT 0,
			description TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_by TEXT NOT NULL DEFAULT '',
			updated_by TEXT NOT NULL DEFAULT '',
			UNIQUE(datasource_id, column_name)
		)`,

		`CREATE TABLE IF NOT EXISTS metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			datasource_id INTEGER NOT NULL REFERENCES datasources(id) ON DELETE CASCADE,
			metric_name TEXT NOT NULL,
			verbose_name TEXT NOT NULL DEFAULT '',
			metric_type TEXT NOT NULL DEFAULT '',
			expression TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			is_restricted INTEGER NOT NULL DEFAULT 0,
			d3format TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_by TEXT NOT NULL DEFAULT '',
			updated_by TEXT NOT NULL DEFAULT '',
			UNIQUE(datasource_id, metric_name)
		)`,

		`CREATE TABLE IF NOT EXISTS admins (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL DEFAULT 1,
			is_super_admin INTEGER NOT NULL DEFAULT 0,
			last_login_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS roles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS role_access (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			role_id INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
			datasource_uid TEXT NOT NULL DEFAULT '*',
			component TEXT NOT NULL DEFAULT '*',
			verb_mask INTEGER NOT NULL DEFAULT 31,
			allow_restricted INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS api_keys (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key_hash TEXT UNIQUE NOT NULL,
			key_prefix TEXT NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			role_id INTEGER NOT NULL REFERENCES roles(id),
			is_active INTEGER NOT NULL DEFAULT 1,
			expires_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_used DATETIME
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL DEFAULT ''
		)`,

		// Column snapshots back drift detection on refresh: the columns as
		// last introspected from the backing table.
		`CREATE TABLE IF NOT EXISTS column_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			datasource_uid TEXT UNIQUE NOT NULL,
			columns_json TEXT NOT NULL,
			taken_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_api_keys_hash ON api_keys(key_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_role_access_role_id ON role_access(role_id)`,
		`CREATE INDEX IF NOT EXISTS idx_columns_datasource ON columns(datasource_id)`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_datasource ON metrics(datasource_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// SQLite ALTER TABLE ADD COLUMN fails if column already exists;
			// treat "duplicate column" as a no-op for idempotent migrations.
			if strings.Contains(err.Error(), "duplicate column") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
