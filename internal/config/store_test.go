package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prismbi/prism/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore("") // in-memory
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testDatasource() *model.Datasource {
	return &model.Datasource{
		Type:               "postgres",
		Name:               "sales",
		DSN:                "postgres://localhost/sales",
		Schema:             "public",
		TableName:          "orders",
		MainDatetimeColumn: "ordered_at",
		Pool:               model.DefaultPoolConfig(),
		Columns: []model.Column{
			{Name: "country", Type: "VARCHAR", IsActive: true, Groupby: true, Filterable: true},
			{Name: "amount", Type: "NUMERIC", IsActive: true, Sum: true, Avg: true},
			{Name: "ordered_at", Type: "TIMESTAMP", IsActive: true},
		},
		Metrics: []model.Metric{
			{MetricName: "revenue", MetricType: "sum", Expression: "SUM(amount)", D3Format: ",.2f"},
			{MetricName: "cnt", MetricType: "count", Expression: "COUNT(*)"},
		},
	}
}

func TestDatasourceCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ds := testDatasource()
	if err := s.CreateDatasource(ctx, ds); err != nil {
		t.Fatalf("CreateDatasource: %v", err)
	}
	if ds.ID == 0 {
		t.Fatal("expected non-zero ID after create")
	}

	got, err := s.GetDatasource(ctx, ds.ID, "postgres")
	if err != nil {
		t.Fatalf("GetDatasource: %v", err)
	}
	if got.Name != "sales" || got.TableName != "orders" {
		t.Errorf("got %q/%q", got.Name, got.TableName)
	}
	if len(got.Columns) != 3 {
		t.Errorf("got %d columns, want 3", len(got.Columns))
	}
	if len(got.Metrics) != 2 {
		t.Errorf("got %d metrics, want 2", len(got.Metrics))
	}
	if got.MainDttmCol() != "ordered_at" {
		t.Errorf("MainDttmCol = %q", got.MainDttmCol())
	}

	byUID, err := s.GetDatasourceByUID(ctx, got.UID())
	if err != nil {
		t.Fatalf("GetDatasourceByUID: %v", err)
	}
	if byUID.ID != ds.ID {
		t.Errorf("got ID %d, want %d", byUID.ID, ds.ID)
	}

	byName, err := s.GetDatasourceByName(ctx, "postgres", "sales")
	if err != nil {
		t.Fatalf("GetDatasourceByName: %v", err)
	}
	if byName.ID != ds.ID {
		t.Errorf("got ID %d, want %d", byName.ID, ds.ID)
	}

	list, err := s.ListDatasources(ctx)
	if err != nil {
		t.Fatalf("ListDatasources: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("got %d datasources, want 1", len(list))
	}

	ds.Description = "Orders by country"
	ds.Metrics = append(ds.Metrics, model.Metric{
		MetricName: "avg_amount", MetricType: "avg", Expression: "AVG(amount)",
	})
	if err := s.UpdateDatasource(ctx, ds); err != nil {
		t.Fatalf("UpdateDatasource: %v", err)
	}
	updated, _ := s.GetDatasource(ctx, ds.ID, "postgres")
	if updated.Description != "Orders by country" {
		t.Errorf("description = %q", updated.Description)
	}
	if len(updated.Metrics) != 3 {
		t.Errorf("got %d metrics after update, want 3", len(updated.Metrics))
	}

	if err := s.DeleteDatasource(ctx, ds.ID, "postgres"); err != nil {
		t.Fatalf("DeleteDatasource: %v", err)
	}
	if _, err := s.GetDatasource(ctx, ds.ID, "postgres"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDatasourceNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetDatasource(ctx, 999, "postgres"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDatasource: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetDatasourceByUID(ctx, "999__postgres"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDatasourceByUID: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetDatasourceByUID(ctx, "garbage"); err == nil {
		t.Error("GetDatasourceByUID: expected error for malformed uid")
	}
	if err := s.DeleteDatasource(ctx, 999, "postgres"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteDatasource: expected ErrNotFound, got %v", err)
	}
}

func TestDatasourceSameIDDifferentType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pg := testDatasource()
	if err := s.CreateDatasource(ctx, pg); err != nil {
		t.Fatalf("create postgres: %v", err)
	}

	// Same name under a different type is allowed; lookups must not cross.
	lite := testDatasource()
	lite.Type = "sqlite"
	lite.DSN = "file:sales.db"
	if err := s.CreateDatasource(ctx, lite); err != nil {
		t.Fatalf("create sqlite: %v", err)
	}

	got, err := s.GetDatasource(ctx, pg.ID, "postgres")
	if err != nil {
		t.Fatalf("GetDatasource: %v", err)
	}
	if got.Type != "postgres" {
		t.Errorf("type = %q", got.Type)
	}
	if _, err := s.GetDatasource(ctx, lite.ID, "sqlite"); err != nil {
		t.Fatalf("GetDatasource sqlite: %v", err)
	}
}

func TestReplaceColumns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ds := testDatasource()
	if err := s.CreateDatasource(ctx, ds); err != nil {
		t.Fatalf("CreateDatasource: %v", err)
	}

	fresh := []model.Column{
		{Name: "country", Type: "VARCHAR", IsActive: true, Groupby: true, Filterable: true},
		{Name: "amount", Type: "DOUBLE", IsActive: true, Sum: true},
		{Name: "region", Type: "VARCHAR", IsActive: true, Groupby: true},
	}
	if err := s.ReplaceColumns(ctx, ds, fresh); err != nil {
		t.Fatalf("ReplaceColumns: %v", err)
	}

	got, err := s.GetDatasource(ctx, ds.ID, "postgres")
	if err != nil {
		t.Fatalf("GetDatasource: %v", err)
	}
	if len(got.Columns) != 3 {
		t.Fatalf("got %d columns, want 3", len(got.Columns))
	}
	if got.ColumnByName("region") == nil {
		t.Error("expected refreshed column set to contain region")
	}
	if got.ColumnByName("ordered_at") != nil {
		t.Error("expected refreshed column set to drop ordered_at")
	}
	// Metrics survive a column refresh.
	if len(got.Metrics) != 2 {
		t.Errorf("got %d metrics, want 2", len(got.Metrics))
	}
}

func TestRoleCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	role := &model.Role{Name: "analyst", Description: "read-only analytics", IsActive: true}
	if err := s.CreateRole(ctx, role); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if role.ID == 0 {
		t.Fatal("expected non-zero role ID")
	}

	access := []model.RoleAccess{
		{DatasourceUID: "1__postgres", Component: "data", VerbMask: model.VerbGet},
		{DatasourceUID: "*", Component: "query", VerbMask: model.VerbGet | model.VerbPost, AllowRestricted: true},
	}
	if err := s.SetRoleAccess(ctx, role.ID, access); err != nil {
		t.Fatalf("SetRoleAccess: %v", err)
	}

	got, err := s.GetRole(ctx, role.ID)
	if err != nil {
		t.Fatalf("GetRole: %v", err)
	}
	if len(got.Access) != 2 {
		t.Fatalf("got %d access rules, want 2", len(got.Access))
	}
	if got.Access[0].DatasourceUID != "1__postgres" || got.Access[0].Component != "data" {
		t.Errorf("access[0] = %+v", got.Access[0])
	}
	if !got.Access[1].AllowRestricted {
		t.Error("access[1].AllowRestricted should be true")
	}

	byName, err := s.GetRoleByName(ctx, "analyst")
	if err != nil {
		t.Fatalf("GetRoleByName: %v", err)
	}
	if byName.ID != role.ID {
		t.Errorf("got ID %d, want %d", byName.ID, role.ID)
	}

	// Replacing access drops the old rules.
	if err := s.SetRoleAccess(ctx, role.ID, access[:1]); err != nil {
		t.Fatalf("SetRoleAccess replace: %v", err)
	}
	replaced, _ := s.GetRole(ctx, role.ID)
	if len(replaced.Access) != 1 {
		t.Errorf("got %d access rules after replace, want 1", len(replaced.Access))
	}

	if err := s.DeleteRole(ctx, role.ID); err != nil {
		t.Fatalf("DeleteRole: %v", err)
	}
	if _, err := s.GetRole(ctx, role.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestAdminCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hasAny, err := s.HasAnyAdmin(ctx)
	if err != nil {
		t.Fatalf("HasAnyAdmin: %v", err)
	}
	if hasAny {
		t.Error("fresh store should have no admins")
	}

	admin := &model.Admin{
		Email:        "ops@example.com",
		PasswordHash: HashAPIKey("hunter22"),
		Name:         "Ops",
		IsActive:     true,
	}
	if err := s.CreateAdmin(ctx, admin); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}

	got, err := s.GetAdminByEmail(ctx, "ops@example.com")
	if err != nil {
		t.Fatalf("GetAdminByEmail: %v", err)
	}
	if got.ID != admin.ID || got.Name != "Ops" {
		t.Errorf("got %+v", got)
	}
	if got.LastLoginAt != nil {
		t.Error("LastLoginAt should start nil")
	}

	if err := s.UpdateAdminLastLogin(ctx, admin.ID); err != nil {
		t.Fatalf("UpdateAdminLastLogin: %v", err)
	}
	after, _ := s.GetAdminByEmail(ctx, "ops@example.com")
	if after.LastLoginAt == nil {
		t.Error("LastLoginAt should be set after login")
	}

	hasAny, _ = s.HasAnyAdmin(ctx)
	if !hasAny {
		t.Error("HasAnyAdmin should be true after create")
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	role := &model.Role{Name: "reader", IsActive: true}
	if err := s.CreateRole(ctx, role); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}

	raw := "pk_live_abcdef123456"
	key := &model.APIKey{
		KeyHash:   HashAPIKey(raw),
		KeyPrefix: raw[:7],
		Label:     "dashboard",
		RoleID:    role.ID,
		IsActive:  true,
	}
	if err := s.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}

	got, err := s.GetAPIKeyByHash(ctx, HashAPIKey(raw))
	if err != nil {
		t.Fatalf("GetAPIKeyByHash: %v", err)
	}
	if got.Label != "dashboard" || got.RoleID != role.ID {
		t.Errorf("got %+v", got)
	}

	if err := s.UpdateAPIKeyLastUsed(ctx, key.ID); err != nil {
		t.Fatalf("UpdateAPIKeyLastUsed: %v", err)
	}

	if err := s.RevokeAPIKey(ctx, key.ID); err != nil {
		t.Fatalf("RevokeAPIKey: %v", err)
	}
	revoked, _ := s.GetAPIKeyByHash(ctx, HashAPIKey(raw))
	if revoked.IsActive {
		t.Error("key should be inactive after revoke")
	}

	if err := s.RevokeAPIKeyByPrefix(ctx, raw[:7]); !errors.Is(err, ErrNotFound) {
		t.Errorf("revoking already-revoked prefix should be ErrNotFound, got %v", err)
	}
}

func TestSettings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetSetting(ctx, "instance_id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing key, got %v", err)
	}

	if err := s.SetSetting(ctx, "instance_id", "abc-123"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	v, err := s.GetSetting(ctx, "instance_id")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if v != "abc-123" {
		t.Errorf("got %q", v)
	}

	// Upsert overwrites.
	if err := s.SetSetting(ctx, "instance_id", "def-456"); err != nil {
		t.Fatalf("SetSetting overwrite: %v", err)
	}
	v, _ = s.GetSetting(ctx, "instance_id")
	if v != "def-456" {
		t.Errorf("got %q after overwrite", v)
	}
}

func TestAuditStampsOnWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ds := testDatasource()
	ds.CreatedBy = "ops@example.com"
	before := time.Now().UTC().Add(-time.Second)
	if err := s.CreateDatasource(ctx, ds); err != nil {
		t.Fatalf("CreateDatasource: %v", err)
	}

	got, _ := s.GetDatasource(ctx, ds.ID, "postgres")
	if got.CreatedBy != "ops@example.com" {
		t.Errorf("CreatedBy = %q", got.CreatedBy)
	}
	if got.CreatedAt.Before(before) {
		t.Errorf("CreatedAt = %v, want after %v", got.CreatedAt, before)
	}
	if len(got.Columns) > 0 && got.Columns[0].CreatedAt.IsZero() {
		t.Error("column audit timestamps should be stamped on insert")
	}
}
