package cli

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prismbi/prism/internal/config"
	"github.com/prismbi/prism/internal/connector"
	"github.com/prismbi/prism/internal/connector/mssql"
	"github.com/prismbi/prism/internal/connector/mysql"
	"github.com/prismbi/prism/internal/connector/oracle"
	"github.com/prismbi/prism/internal/connector/postgres"
	"github.com/prismbi/prism/internal/connector/snowflake"
	"github.com/prismbi/prism/internal/connector/sqlite"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from --data-dir flag,
// PRISM_DATA_DIR env var, or ~/.prism as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("PRISM_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.prism"
}

// openConfigStore opens the SQLite config store, defaulting to ~/.prism
// if no data dir was specified.
func openConfigStore() (*config.Store, error) {
	return config.NewStore(resolveDataDir())
}

// newRegistry creates a connector registry with all supported backends registered.
func newRegistry() *connector.Registry {
	registry := connector.NewRegistry()
	registry.RegisterDriver("postgres", func() connector.Connector { return postgres.New() })
	registry.RegisterDriver("mysql", func() connector.Connector { return mysql.New() })
	registry.RegisterDriver("mssql", func() connector.Connector { return mssql.New() })
	registry.RegisterDriver("snowflake", func() connector.Connector { return snowflake.New() })
	registry.RegisterDriver("sqlite", func() connector.Connector { return sqlite.New() })
	registry.RegisterDriver("oracle", func() connector.Connector { return oracle.New() })
	return registry
}

// supportedTypes is the display list of backend types, matching newRegistry.
const supportedTypes = "postgres, mysql, mssql, snowflake, sqlite, oracle"

// --- PID file management ---

func pidFilePath() string {
	return filepath.Join(resolveDataDir(), "prism.pid")
}

func writePID(pid int) error {
	dir := resolveDataDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(pidFilePath(), []byte(strconv.Itoa(pid)), 0644)
}

func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePID() {
	os.Remove(pidFilePath())
}

func logFilePath() string {
	return filepath.Join(resolveDataDir(), "prism.log")
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
