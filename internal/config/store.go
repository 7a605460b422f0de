package config

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/prismbi/prism/internal/model"
)

// ErrNotFound is returned by lookups (datasource by UID or name, role,
// admin, API key, snapshot, setting) when no matching row exists.
var ErrNotFound = errors.New("not found")

// Store manages Prism's metadata state backed by SQLite. It persists
// datasources with their columns and metrics, plus roles, API keys, and
// admin accounts.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new metadata store. Pass empty string for in-memory.
func NewStore(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "prism.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open metadata database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate metadata database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Datasource CRUD
// ---------------------------------------------------------------------------

// datasourceRow is a flat struct that maps 1:1 to the datasources table
// columns. We use it for sqlx scanning because model.Datasource has a nested
// Pool struct and owned collections that don't map directly to columns.
type datasourceRow struct {
	ID                  int64     `db:"id"`
	Type                string    `db:"type"`
	Name                string    `db:"name"`
	Description         string    `db:"description"`
	DefaultEndpoint     string    `db:"default_endpoint"`
	DSN                 string    `db:"dsn"`
	PrivateKeyPath      string    `db:"private_key_path"`
	SchemaName          string    `db:"schema_name"`
	TableName           string    `db:"table_name"`
	IsFeatured          bool      `db:"is_featured"`
	FilterSelectEnabled bool      `db:"filter_select_enabled"`
	Offset              int       `db:"offset"`
	CacheTimeout        *int      `db:"cache_timeout"`
	Params              string    `db:"params"`
	Perm                string    `db:"perm"`
	MainDttmCol         string    `db:"main_dttm_col"`
	MaxOpenConns        int       `db:"max_open_conns"`
	MaxIdleConns        int       `db:"max_idle_conns"`
	ConnMaxLifetimeMs   int64     `db:"conn_max_lifetime_ms"`
	ConnMaxIdleTimeMs   int64     `db:"conn_max_idle_time_ms"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
	CreatedBy           string    `db:"created_by"`
	UpdatedBy           string    `db:"updated_by"`
}

func datasourceRowFromModel(ds *model.Datasource) datasourceRow {
	return datasourceRow{
		ID:                  ds.ID,
		Type:                ds.Type,
		Name:                ds.Name,
		Description:         ds.Description,
		DefaultEndpoint:     ds.DefaultEndpoint,
		DSN:                 ds.DSN,
		PrivateKeyPath:      ds.PrivateKeyPath,
		SchemaName:          ds.Schema,
		TableName:           ds.TableName,
		IsFeatured:          ds.IsFeatured,
		FilterSelectEnabled: ds.FilterSelectEnabled,
		Offset:              ds.Offset,
		CacheTimeout:        ds.CacheTimeout,
		Params:              ds.Params,
		Perm:                ds.Perm,
		MainDttmCol:         ds.MainDatetimeColumn,
		MaxOpenConns:        ds.Pool.MaxOpenConns,
		MaxIdleConns:        ds.Pool.MaxIdleConns,
		ConnMaxLifetimeMs:   ds.Pool.ConnMaxLifetime.Milliseconds(),
		ConnMaxIdleTimeMs:   ds.Pool.ConnMaxIdleTime.Milliseconds(),
		CreatedAt:           ds.CreatedAt,
		UpdatedAt:           ds.UpdatedAt,
		CreatedBy:           ds.CreatedBy,
		UpdatedBy:           ds.UpdatedBy,
	}
}

func (r datasourceRow) toModel() model.Datasource {
	pool := model.DefaultPoolConfig()
	pool.MaxOpenConns = r.MaxOpenConns
	pool.MaxIdleConns = r.MaxIdleConns
	pool.ConnMaxLifetime = time.Duration(r.ConnMaxLifetimeMs) * time.Millisecond
	pool.ConnMaxIdleTime = time.Duration(r.ConnMaxIdleTimeMs) * time.Millisecond

	return model.Datasource{
		ID:                  r.ID,
		Type:                r.Type,
		Name:                r.Name,
		Description:         r.Description,
		DefaultEndpoint:     r.DefaultEndpoint,
		DSN:                 r.DSN,
		PrivateKeyPath:      r.PrivateKeyPath,
		Schema:              r.SchemaName,
		TableName:           r.TableName,
		IsFeatured:          r.IsFeatured,
		FilterSelectEnabled: r.FilterSelectEnabled,
		Offset:              r.Offset,
		CacheTimeout:        r.CacheTimeout,
		Params:              r.Params,
		Perm:                r.Perm,
		MainDatetimeColumn:  r.MainDttmCol,
		Pool:                pool,
		AuditFields: model.AuditFields{
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
			CreatedBy: r.CreatedBy,
			UpdatedBy: r.UpdatedBy,
		},
	}
}

// CreateDatasource inserts a new datasource together with its columns and
// metrics in one transaction. The ID and audit fields on ds are populated
// after a successful insert.
func (s *Store) CreateDatasource(ctx context.Context, ds *model.Datasource) error {
	ds.StampCreated(ds.CreatedBy, time.Now().UTC())

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := datasourceRowFromModel(ds)

	const q = `INSERT INTO datasources
		(type, name, description, default_endpoint, dsn, private_key_path, schema_name, table_name,
		 is_featured, filter_select_enabled, "offset", cache_timeout, params, perm, main_dttm_col,
		 max_open_conns, max_idle_conns, conn_max_lifetime_ms, conn_max_idle_time_ms,
		 created_at, updated_at, created_by, updated_by)
		VALUES
		(:type, :name, :description, :default_endpoint, :dsn, :private_key_path, :schema_name, :table_name,
		 :is_featured, :filter_select_enabled, :offset, :cache_timeout, :params, :perm, :main_dttm_col,
		 :max_open_conns, :max_idle_conns, :conn_max_lifetime_ms, :conn_max_idle_time_ms,
		 :created_at, :updated_at, :created_by, :updated_by)`

	result, err := tx.NamedExecContext(ctx, q, row)
	if err != nil {
		return fmt.Errorf("insert datasource: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get datasource id: %w", err)
	}
	ds.ID = id

	if err := insertColumns(ctx, tx, id, ds.Columns, ds.CreatedBy); err != nil {
		return err
	}
	if err := insertMetrics(ctx, tx, id, ds.Metrics, ds.CreatedBy); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit datasource: %w", err)
	}

	for i := range ds.Columns {
		ds.Columns[i].DatasourceID = id
	}
	for i := range ds.Metrics {
		ds.Metrics[i].DatasourceID = id
	}
	return nil
}

func insertColumns(ctx context.Context, tx *sqlx.Tx, datasourceID int64, cols []model.Column, by string) error {
	const q = `INSERT INTO columns
		(datasource_id, column_name, verbose_name, is_active, type, groupby, count_distinct,
		 sum, avg, max, min, filterable, description, created_at, updated_at, created_by, updated_by)
		VALUES
		(:datasource_id, :column_name, :verbose_name, :is_active, :type, :groupby, :count_distinct,
		 :sum, :avg, :max, :min, :filterable, :description, :created_at, :updated_at, :created_by, :updated_by)`

	now := time.Now().UTC()
	for i := range cols {
		cols[i].DatasourceID = datasourceID
		if cols[i].CreatedAt.IsZero() {
			cols[i].StampCreated(by, now)
		}
		if _, err := tx.NamedExecContext(ctx, q, cols[i]); err != nil {
			return fmt.Errorf("insert column %q: %w", cols[i].Name, err)
		}
	}
	return nil
}

func insertMetrics(ctx context.Context, tx *sqlx.Tx, datasourceID int64, metrics []model.Metric, by string) error {
	const q = `INSERT INTO metrics
		(datasource_id, metric_name, verbose_name, metric_type, expression, description,
		 is_restricted, d3format, created_at, updated_at, created_by, updated_by)
		VALUES
		(:datasource_id, :metric_name, :verbose_name, :metric_type, :expression, :description,
		 :is_restricted, :d3format, :created_at, :updated_at, :created_by, :updated_by)`

	now := time.Now().UTC()
	for i := range metrics {
		metrics[i].DatasourceID = datasourceID
		if metrics[i].CreatedAt.IsZero() {
			metrics[i].StampCreated(by, now)
		}
		if _, err := tx.NamedExecContext(ctx, q, metrics[i]); err != nil {
			return fmt.Errorf("insert metric %q: %w", metrics[i].MetricName, err)
		}
	}
	return nil
}

// loadChildren attaches the owned column and metric collections to a
// datasource loaded from its flat row.
func (s *Store) loadChildren(ctx context.Context, ds *model.Datasource) error {
	var cols []model.Column
	if err := s.db.SelectContext(ctx, &cols,
		"SELECT * FROM columns WHERE datasource_id = ? ORDER BY column_name", ds.ID); err != nil {
		return fmt.Errorf("load columns: %w", err)
	}
	var metrics []model.Metric
	if err := s.db.SelectContext(ctx, &metrics,
		"SELECT * FROM metrics WHERE datasource_id = ? ORDER BY metric_name", ds.ID); err != nil {
		return fmt.Errorf("load metrics: %w", err)
	}
	if cols == nil {
		cols = []model.Column{}
	}
	if metrics == nil {
		metrics = []model.Metric{}
	}
	ds.Columns = cols
	ds.Metrics = metrics
	return nil
}

// GetDatasource returns a datasource by numeric ID and type tag, with its
// columns and metrics attached.
func (s *Store) GetDatasource(ctx context.Context, id int64, dsType string) (*model.Datasource, error) {
	var row datasourceRow
	if err := s.db.GetContext(ctx, &row,
		"SELECT * FROM datasources WHERE id = ? AND type = ?", id, dsType); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get datasource: %w", err)
	}
	ds := row.toModel()
	if err := s.loadChildren(ctx, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// GetDatasourceByUID returns a datasource addressed by its "{id}__{type}"
// identifier.
func (s *Store) GetDatasourceByUID(ctx context.Context, uid string) (*model.Datasource, error) {
	id, dsType, err := model.ParseUID(uid)
	if err != nil {
		return nil, err
	}
	return s.GetDatasource(ctx, id, dsType)
}

// GetDatasourceByName returns a datasource by type and name, which together
// are unique.
func (s *Store) GetDatasourceByName(ctx context.Context, dsType, name string) (*model.Datasource, error) {
	var row datasourceRow
	if err := s.db.GetContext(ctx, &row,
		"SELECT * FROM datasources WHERE type = ? AND name = ?", dsType, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get datasource by name: %w", err)
	}
	ds := row.toModel()
	if err := s.loadChildren(ctx, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// ListDatasources returns all datasources with columns and metrics attached,
// ordered by name then type.
func (s *Store) ListDatasources(ctx context.Context) ([]model.Datasource, error) {
	var rows []datasourceRow
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM datasources ORDER BY name, type"); err != nil {
		return nil, fmt.Errorf("list datasources: %w", err)
	}

	out := make([]model.Datasource, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
		if err := s.loadChildren(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpdateDatasource updates a datasource and replaces its columns and metrics
// in one transaction. The UpdatedAt field on ds is refreshed automatically.
func (s *Store) UpdateDatasource(ctx context.Context, ds *model.Datasource) error {
	ds.StampUpdated(ds.UpdatedBy, time.Now().UTC())

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := datasourceRowFromModel(ds)

	const q = `UPDATE datasources SET
		name = :name, description = :description, default_endpoint = :default_endpoint,
		dsn = :dsn, private_key_path = :private_key_path, schema_name = :schema_name,
		table_name = :table_name, is_featured = :is_featured,
		filter_select_enabled = :filter_select_enabled, "offset" = :offset,
		cache_timeout = :cache_timeout, params = :params, perm = :perm,
		main_dttm_col = :main_dttm_col, max_open_conns = :max_open_conns,
		max_idle_conns = :max_idle_conns, conn_max_lifetime_ms = :conn_max_lifetime_ms,
		conn_max_idle_time_ms = :conn_max_idle_time_ms,
		updated_at = :updated_at, updated_by = :updated_by
		WHERE id = :id AND type = :type`

	result, err := tx.NamedExecContext(ctx, q, row)
	if err != nil {
		return fmt.Errorf("update datasource: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update datasource rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM columns WHERE datasource_id = ?", ds.ID); err != nil {
		return fmt.Errorf("delete existing columns: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM metrics WHERE datasource_id = ?", ds.ID); err != nil {
		return fmt.Errorf("delete existing metrics: %w", err)
	}
	if err := insertColumns(ctx, tx, ds.ID, ds.Columns, ds.UpdatedBy); err != nil {
		return err
	}
	if err := insertMetrics(ctx, tx, ds.ID, ds.Metrics, ds.UpdatedBy); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceColumns swaps the stored column set of a datasource for a freshly
// introspected one, used by the refresh flow.
func (s *Store) ReplaceColumns(ctx context.Context, ds *model.Datasource, columns []model.Column) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM columns WHERE datasource_id = ?", ds.ID); err != nil {
		return fmt.Errorf("delete existing columns: %w", err)
	}
	if err := insertColumns(ctx, tx, ds.ID, columns, ds.UpdatedBy); err != nil {
		return err
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		"UPDATE datasources SET updated_at = ? WHERE id = ? AND type = ?", now, ds.ID, ds.Type); err != nil {
		return fmt.Errorf("touch datasource: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	ds.Columns = columns
	ds.UpdatedAt = now
	return nil
}

// DeleteDatasource removes a datasource. Columns and metrics cascade.
func (s *Store) DeleteDatasource(ctx context.Context, id int64, dsType string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM datasources WHERE id = ? AND type = ?", id, dsType)
	if err != nil {
		return fmt.Errorf("delete datasource: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete datasource rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Role CRUD
// ---------------------------------------------------------------------------

// CreateRole inserts a new role. The ID, CreatedAt, and UpdatedAt fields are
// populated after a successful insert.
func (s *Store) CreateRole(ctx context.Context, role *model.Role) error {
	now := time.Now().UTC()
	role.CreatedAt = now
	role.UpdatedAt = now

	const q = `INSERT INTO roles (name, description, is_active, created_at, updated_at)
		VALUES (:name, :description, :is_active, :created_at, :updated_at)`

	result, err := s.db.NamedExecContext(ctx, q, role)
	if err != nil {
		return fmt.Errorf("insert role: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get role id: %w", err)
	}
	role.ID = id
	return nil
}

// GetRole returns a role by ID, including its access rules.
func (s *Store) GetRole(ctx context.Context, id int64) (*model.Role, error) {
	var role model.Role
	if err := s.db.GetContext(ctx, &role, "SELECT * FROM roles WHERE id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get role: %w", err)
	}

	access, err := s.GetRoleAccess(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get role access: %w", err)
	}
	role.Access = access
	return &role, nil
}

// GetRoleByName returns a role by its unique name.
func (s *Store) GetRoleByName(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	if err := s.db.GetContext(ctx, &role, "SELECT * FROM roles WHERE name = ?", name); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get role by name: %w", err)
	}
	access, err := s.GetRoleAccess(ctx, role.ID)
	if err != nil {
		return nil, fmt.Errorf("get role access: %w", err)
	}
	role.Access = access
	return &role, nil
}

// ListRoles returns all configured roles with their access rules.
func (s *Store) ListRoles(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	if err := s.db.SelectContext(ctx, &roles, "SELECT * FROM roles ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}

	for i := range roles {
		access, err := s.GetRoleAccess(ctx, roles[i].ID)
		if err != nil {
			return nil, fmt.Errorf("get role access for role %d: %w", roles[i].ID, err)
		}
		roles[i].Access = access
	}
	return roles, nil
}

// UpdateRole updates an existing role. The UpdatedAt field is refreshed
// automatically.
func (s *Store) UpdateRole(ctx context.Context, role *model.Role) error {
	role.UpdatedAt = time.Now().UTC()

	const q = `UPDATE roles SET
		name = :name, description = :description, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`

	result, err := s.db.NamedExecContext(ctx, q, role)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update role rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRole removes a role by ID. Associated role_access rows are cascade
// deleted by the foreign key constraint.
func (s *Store) DeleteRole(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM roles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete role rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRoleAccess replaces all access rules for a role within a transaction.
func (s *Store) SetRoleAccess(ctx context.Context, roleID int64, access []model.RoleAccess) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM role_access WHERE role_id = ?", roleID); err != nil {
		return fmt.Errorf("delete existing role access: %w", err)
	}

	const insertQ = `INSERT INTO role_access
		(role_id, datasource_uid, component, verb_mask, allow_restricted)
		VALUES (:role_id, :datasource_uid, :component, :verb_mask, :allow_restricted)`

	for _, a := range access {
		a.RoleID = roleID
		if _, err := tx.NamedExecContext(ctx, insertQ, a); err != nil {
			return fmt.Errorf("insert role access: %w", err)
		}
	}

	return tx.Commit()
}

// GetRoleAccess returns all access rules for a role.
func (s *Store) GetRoleAccess(ctx context.Context, roleID int64) ([]model.RoleAccess, error) {
	var access []model.RoleAccess
	if err := s.db.SelectContext(ctx, &access,
		"SELECT * FROM role_access WHERE role_id = ? ORDER BY id", roleID); err != nil {
		return nil, fmt.Errorf("get role access: %w", err)
	}
	if access == nil {
		access = []model.RoleAccess{}
	}
	return access, nil
}

// ---------------------------------------------------------------------------
// Admin CRUD
// ---------------------------------------------------------------------------

// CreateAdmin inserts a new admin account. The ID, CreatedAt, and UpdatedAt
// fields are populated after a successful insert.
func (s *Store) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	now := time.Now().UTC()
	admin.CreatedAt = now
	admin.UpdatedAt = now

	const q = `INSERT INTO admins
		(email, password_hash, name, is_active, is_super_admin, created_at, updated_at)
		VALUES
		(:email, :password_hash, :name, :is_active, :is_super_admin, :created_at, :updated_at)`

	result, err := s.db.NamedExecContext(ctx, q, admin)
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get admin id: %w", err)
	}
	admin.ID = id
	return nil
}

// GetAdminByEmail returns an admin by email address.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var admin model.Admin
	if err := s.db.GetContext(ctx, &admin, "SELECT * FROM admins WHERE email = ?", email); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	return &admin, nil
}

// ListAdmins returns all admin accounts.
func (s *Store) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	var admins []model.Admin
	if err := s.db.SelectContext(ctx, &admins, "SELECT * FROM admins ORDER BY email"); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// HasAnyAdmin reports whether at least one admin account exists. This is used
// for first-run detection to trigger the initial setup flow.
func (s *Store) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM admins"); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count > 0, nil
}

// UpdateAdminLastLogin sets the last_login_at timestamp for an admin.
func (s *Store) UpdateAdminLastLogin(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		"UPDATE admins SET last_login_at = ?, updated_at = ? WHERE id = ?", now, now, id)
	if err != nil {
		return fmt.Errorf("update admin last login: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update admin last login rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// API Key management
// ---------------------------------------------------------------------------

// CreateAPIKey inserts a new API key record. The key_hash must already be set
// (use HashAPIKey). The ID and CreatedAt fields are populated after insert.
func (s *Store) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	key.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO api_keys
		(key_hash, key_prefix, label, role_id, is_active, expires_at, created_at)
		VALUES
		(:key_hash, :key_prefix, :label, :role_id, :is_active, :expires_at, :created_at)`

	result, err := s.db.NamedExecContext(ctx, q, key)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get api key id: %w", err)
	}
	key.ID = id
	return nil
}

// GetAPIKeyByHash looks up an API key by its SHA-256 hash.
func (s *Store) GetAPIKeyByHash(ctx context.Context, hash string) (*model.APIKey, error) {
	var key model.APIKey
	if err := s.db.GetContext(ctx, &key, "SELECT * FROM api_keys WHERE key_hash = ?", hash); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key by hash: %w", err)
	}
	return &key, nil
}

// ListAPIKeys returns all API keys.
func (s *Store) ListAPIKeys(ctx context.Context) ([]model.APIKey, error) {
	var keys []model.APIKey
	if err := s.db.SelectContext(ctx, &keys, "SELECT * FROM api_keys ORDER BY created_at DESC"); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey marks an API key as inactive by ID.
func (s *Store) RevokeAPIKey(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE api_keys SET is_active = 0 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke api key rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeAPIKeyByPrefix marks an API key as inactive by its prefix.
func (s *Store) RevokeAPIKeyByPrefix(ctx context.Context, prefix string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE api_keys SET is_active = 0 WHERE key_prefix = ? AND is_active = 1", prefix)
	if err != nil {
		return fmt.Errorf("revoke api key by prefix: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke api key rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAPIKeyLastUsed sets the last_used timestamp for an API key.
func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		"UPDATE api_keys SET last_used = ? WHERE id = ?", now, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update api key last used rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// GetSetting returns a settings value by key, or ErrNotFound.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	if err := s.db.GetContext(ctx, &value, "SELECT value FROM settings WHERE key = ?", key); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// SetSetting upserts a settings key/value pair.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	const q = `INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Utility
// ---------------------------------------------------------------------------

// HashAPIKey returns the hex-encoded SHA-256 hash of a raw API key string.
func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
