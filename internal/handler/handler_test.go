package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/prismbi/prism/internal/config"
	"github.com/prismbi/prism/internal/connector"
	"github.com/prismbi/prism/internal/connector/sqlite"
	"github.com/prismbi/prism/internal/model"
	"github.com/prismbi/prism/internal/server/middleware"
	"github.com/prismbi/prism/internal/service"
)

const (
	testJWTSecret = "test-secret-for-handler-tests"
	testPassword  = "supersecretpassword"
)

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	store     *config.Store
	authSvc   *service.AuthService
	registry  *connector.Registry
	router    chi.Router
	principal *middleware.Principal
}

// newTestEnv creates a fresh test environment with an in-memory config
// store, a connector registry with the sqlite driver, and a Chi router with
// all routes mounted. Instead of the Authenticate middleware, requests carry
// env.principal so tests can switch identities without issuing tokens.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := config.NewStore("") // in-memory SQLite
	if err != nil {
		t.Fatalf("config.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := connector.NewRegistry()
	registry.RegisterDriver("sqlite", func() connector.Connector { return sqlite.New() })
	t.Cleanup(registry.CloseAll)

	authSvc := service.NewAuthService(store, testJWTSecret)
	env := &testEnv{
		store:     store,
		authSvc:   authSvc,
		registry:  registry,
		principal: &middleware.Principal{Type: "admin", AdminID: 1, IsAdmin: true},
	}

	sysHandler := NewSystemHandler(store, authSvc, registry)
	dsHandler := NewDatasourceHandler(store, registry)

	r := chi.NewRouter()
	r.Use(env.injectPrincipal)
	r.Route("/api/v1/system", func(r chi.Router) {
		r.Post("/admin/session", sysHandler.Login)
		r.Delete("/admin/session", sysHandler.Logout)

		r.Get("/driver", sysHandler.ListDrivers)

		r.Get("/role", sysHandler.ListRoles)
		r.Post("/role", sysHandler.CreateRole)
		r.Get("/role/{roleId}", sysHandler.GetRole)
		r.Put("/role/{roleId}", sysHandler.UpdateRole)
		r.Delete("/role/{roleId}", sysHandler.DeleteRole)

		r.Get("/admin", sysHandler.ListAdmins)
		r.Post("/admin", sysHandler.CreateAdmin)

		r.Get("/api-key", sysHandler.ListAPIKeys)
		r.Post("/api-key", sysHandler.CreateAPIKey)
		r.Delete("/api-key/{keyId}", sysHandler.RevokeAPIKey)
	})
	r.Route("/api/v1/datasource", func(r chi.Router) {
		r.Get("/", dsHandler.List)
		r.Post("/", dsHandler.Create)
		r.Get("/{uid}", dsHandler.Get)
		r.Put("/{uid}", dsHandler.Update)
		r.Delete("/{uid}", dsHandler.Delete)
		r.Get("/{uid}/test", dsHandler.TestConnection)
		r.Get("/{uid}/data", dsHandler.Data)
		r.Post("/{uid}/query", dsHandler.Query)
		r.Post("/{uid}/query_str", dsHandler.QueryString)
		r.Get("/{uid}/values/{column}", dsHandler.Values)
		r.Post("/{uid}/refresh", dsHandler.Refresh)
		r.Get("/{uid}/drift", dsHandler.Drift)
		r.Post("/{uid}/metric", dsHandler.AddMetric)
		r.Put("/{uid}/metric/{metricName}", dsHandler.UpdateMetric)
		r.Delete("/{uid}/metric/{metricName}", dsHandler.DeleteMetric)
		r.Put("/{uid}/column/{columnName}", dsHandler.UpdateColumn)
	})
	env.router = r

	return env
}

// injectPrincipal attaches the environment's current principal to every
// request, standing in for the Authenticate middleware.
func (e *testEnv) injectPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if e.principal != nil {
			ctx := context.WithValue(r.Context(), middleware.AuthPrincipalKey, e.principal)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// asRole switches subsequent requests to an API key principal bound to the
// given role. Call asAdmin to switch back.
func (e *testEnv) asRole(roleID int64) {
	e.principal = &middleware.Principal{Type: "api_key", RoleID: roleID}
}

func (e *testEnv) asAdmin() {
	e.principal = &middleware.Principal{Type: "admin", AdminID: 1, IsAdmin: true}
}

// seedAdmin creates a default admin account and returns it.
func (e *testEnv) seedAdmin(t *testing.T) *model.Admin {
	t.Helper()
	admin := &model.Admin{
		Email:        "admin@example.com",
		PasswordHash: config.HashAPIKey(testPassword),
		Name:         "Test Admin",
		IsActive:     true,
		IsSuperAdmin: true,
	}
	if err := e.store.CreateAdmin(context.Background(), admin); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	return admin
}

// seedRole creates a role with the given access rules and returns it.
func (e *testEnv) seedRole(t *testing.T, name string, access ...model.RoleAccess) *model.Role {
	t.Helper()
	role := &model.Role{
		Name:        name,
		Description: "Test role: " + name,
		IsActive:    true,
	}
	if err := e.store.CreateRole(context.Background(), role); err != nil {
		t.Fatalf("seedRole: %v", err)
	}
	if len(access) > 0 {
		if err := e.store.SetRoleAccess(context.Background(), role.ID, access); err != nil {
			t.Fatalf("seedRole access: %v", err)
		}
		role.Access = access
	}
	return role
}

// seedSQLiteDatasource creates a physical sqlite table with a few rows and
// registers a datasource over it, connected in the registry.
func (e *testEnv) seedSQLiteDatasource(t *testing.T) *model.Datasource {
	t.Helper()

	ds := &model.Datasource{
		Type:                "sqlite",
		Name:                "events",
		DSN:                 filepath.Join(t.TempDir(), "events.db"),
		TableName:           "events",
		FilterSelectEnabled: true,
		MainDatetimeColumn:  "occurred_at",
		Columns: []model.Column{
			{Name: "channel", Type: "VARCHAR(32)", IsActive: true, Groupby: true, Filterable: true, CountDistinct: true},
			{Name: "duration", Type: "DOUBLE", IsActive: true, Sum: true, Avg: true, Min: true, Max: true, CountDistinct: true},
			{Name: "occurred_at", Type: "DATETIME", IsActive: true, Filterable: true, CountDistinct: true},
		},
		Metrics: []model.Metric{
			{MetricName: "total_duration", VerboseName: "Total Duration", MetricType: "sum", Expression: "SUM(duration)", D3Format: ",.2f"},
			{MetricName: "cnt", MetricType: "count", Expression: "COUNT(*)"},
			{MetricName: "secret_avg", MetricType: "avg", Expression: "AVG(duration)", IsRestricted: true},
		},
	}
	if err := e.store.CreateDatasource(context.Background(), ds); err != nil {
		t.Fatalf("seedSQLiteDatasource create: %v", err)
	}
	ds.Perm = connector.DatasourcePermission(ds)
	if err := e.store.UpdateDatasource(context.Background(), ds); err != nil {
		t.Fatalf("seedSQLiteDatasource perm: %v", err)
	}
	if err := e.registry.Connect(ds); err != nil {
		t.Fatalf("seedSQLiteDatasource connect: %v", err)
	}

	conn, err := e.registry.Get(ds.UID())
	if err != nil {
		t.Fatalf("seedSQLiteDatasource get conn: %v", err)
	}
	stmts := []string{
		`CREATE TABLE events (channel VARCHAR(32), duration DOUBLE, occurred_at DATETIME)`,
		`INSERT INTO events VALUES ('web', 1.5, '2026-01-01 10:00:00')`,
		`INSERT INTO events VALUES ('web', 2.5, '2026-01-02 11:00:00')`,
		`INSERT INTO events VALUES ('mobile', 3.0, '2026-01-03 12:00:00')`,
	}
	for _, stmt := range stmts {
		if _, err := conn.DB().Exec(stmt); err != nil {
			t.Fatalf("seed table: %v", err)
		}
	}
	return ds
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}
