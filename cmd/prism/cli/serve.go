package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/prismbi/prism/internal/config"
	"github.com/prismbi/prism/internal/connector"
	"github.com/prismbi/prism/internal/model"
	"github.com/prismbi/prism/internal/server"
	"github.com/prismbi/prism/internal/service"
	"github.com/prismbi/prism/internal/telemetry"
)

const banner = `
 ___ ___ ___ ___ __  __
| _ \ _ \_ _/ __|  \/  |
|  _/   /| |\__ \ |\/| |
|_| |_|_\___|___/_|  |_|
`

func newServeCmd() *cobra.Command {
	var (
		port         int
		host         string
		dev          bool
		rateLimitMin int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Prism API server",
		Long:  "Start the HTTP server that exposes the REST API for all registered datasources.",
		RunE: func(cmd *cobra.Command, args []string) error {
			yamlCfg := loadServeConfig()
			if yamlCfg != nil {
				if !cmd.Flags().Changed("host") && yamlCfg.Server.Host != "" {
					host = yamlCfg.Server.Host
				}
				if !cmd.Flags().Changed("port") && yamlCfg.Server.Port != 0 {
					port = yamlCfg.Server.Port
				}
			}
			return runServe(host, port, dev, rateLimitMin, yamlCfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")
	cmd.Flags().IntVar(&rateLimitMin, "rate-limit", 0, "Requests per IP per minute (0 disables limiting)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, dev bool, rateLimitMin int, yamlCfg *config.YAMLConfig) error {
	fmt.Print(banner)
	fmt.Println()

	logger := newServeLogger(dev, yamlCfg)

	ctx := context.Background()

	// 1. Initialize config store (SQLite)
	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("init config store: %w", err)
	}
	defer store.Close()
	logger.Info("config store initialized", "path", resolveDataDir())

	// 2. Initialize connector registry and register drivers
	registry := newRegistry()
	defer registry.CloseAll()
	logger.Info("connector registry initialized", "drivers", registry.Drivers())

	// 3. Seed datasources declared in the YAML config, then connect everything
	if yamlCfg != nil {
		seedDatasources(ctx, store, yamlCfg.Datasources, logger)
	}

	datasources, err := store.ListDatasources(ctx)
	if err != nil {
		logger.Warn("failed to load datasources from config", "error", err)
	}
	for i := range datasources {
		ds := &datasources[i]
		if err := registry.Connect(ds); err != nil {
			logger.Error("failed to connect datasource", "datasource", ds.UID(), "error", err)
			continue
		}
		logger.Info("connected datasource", "datasource", ds.UID(), "table", ds.TableName)
		if len(ds.Columns) == 0 {
			introspectDatasource(ctx, store, registry, ds, logger)
		}
	}

	// 4. Initialize auth service
	jwtSecret := viper.GetString("auth.jwt_secret")
	if jwtSecret == "" && yamlCfg != nil {
		jwtSecret = yamlCfg.Auth.JWTSecret
	}
	if jwtSecret == "" {
		jwtSecret = "prism-dev-secret-change-me"
		logger.Warn("auth.jwt_secret not set - using insecure development default")
	}
	authSvc := service.NewAuthService(store, jwtSecret)

	// 5. Check for first-run (no admin exists)
	hasAdmin, err := store.HasAnyAdmin(ctx)
	if err != nil {
		logger.Warn("failed to check for admin", "error", err)
	}
	if !hasAdmin {
		logger.Warn("no admin account found - run: prism admin create")
	}

	// 6. Build and start HTTP server
	srvCfg := server.Config{
		Host:            host,
		Port:            port,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		MaxBodySize:     10 * 1024 * 1024,
		RateLimitPerMin: rateLimitMin,
	}
	if yamlCfg != nil {
		if len(yamlCfg.Server.CORS.Origins) > 0 {
			srvCfg.CORSOrigins = yamlCfg.Server.CORS.Origins
		}
		if d, err := time.ParseDuration(yamlCfg.Server.ShutdownTimeout); err == nil && d > 0 {
			srvCfg.ShutdownTimeout = d
		}
		if n, err := parseByteSize(yamlCfg.Server.MaxBodySize); err == nil && n > 0 {
			srvCfg.MaxBodySize = n
		}
	}

	srv := server.New(srvCfg, registry, store, authSvc, logger)

	// 7. Anonymous usage telemetry (no-op when disabled or unconfigured)
	tracker := telemetry.New(ctx, store, gatherTelemetry(store))
	if tracker != nil {
		telemetry.PrintNotice()
		tracker.Start()
		defer tracker.Shutdown()
	}

	if err := writePID(os.Getpid()); err != nil {
		logger.Warn("failed to write pid file", "error", err)
	}
	defer removePID()

	fmt.Printf("→ Prism %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", host, port)
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", host, port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", host, port)
	fmt.Printf("→ Connected datasources: %d\n", len(registry.List()))
	fmt.Println()

	return srv.ListenAndServe()
}

// loadServeConfig locates and parses the YAML config file. The explicit
// --config path wins; otherwise ./prism.yaml and ~/.prism/prism.yaml are
// tried in order. A missing file is not an error.
func loadServeConfig() *config.YAMLConfig {
	candidates := []string{}
	if cfgFile != "" {
		candidates = append(candidates, cfgFile)
	}
	candidates = append(candidates, "prism.yaml")
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".prism", "prism.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := config.LoadYAMLConfig(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: ignoring config file %s: %v\n", path, err)
			continue
		}
		return cfg
	}
	return nil
}

func newServeLogger(dev bool, yamlCfg *config.YAMLConfig) *slog.Logger {
	level := slog.LevelInfo
	format := "text"
	if yamlCfg != nil {
		switch yamlCfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
		format = yamlCfg.Logging.Format
	}
	if dev {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// seedDatasources registers datasources declared in the YAML config that are
// not yet in the store. Existing entries are left untouched so edits made
// through the API survive restarts.
func seedDatasources(ctx context.Context, store *config.Store, seeds []config.DatasourceYAML, logger *slog.Logger) {
	for _, seed := range seeds {
		if seed.Name == "" || seed.Type == "" || seed.DSN == "" {
			logger.Warn("skipping datasource seed: name, type, and dsn are required", "name", seed.Name)
			continue
		}
		if _, err := store.GetDatasourceByName(ctx, seed.Type, seed.Name); err == nil {
			continue
		} else if !errors.Is(err, config.ErrNotFound) {
			logger.Error("failed to check datasource seed", "name", seed.Name, "error", err)
			continue
		}

		ds := &model.Datasource{
			Type:                seed.Type,
			Name:                seed.Name,
			Description:         seed.Description,
			DSN:                 connector.SanitizeDSN(seed.Type, seed.DSN),
			PrivateKeyPath:      seed.PrivateKeyPath,
			Schema:              seed.Schema,
			TableName:           seed.Table,
			FilterSelectEnabled: true,
			MainDatetimeColumn:  seed.MainDttmCol,
			Pool:                poolFromSeed(seed.Pool),
		}
		if err := store.CreateDatasource(ctx, ds); err != nil {
			logger.Error("failed to seed datasource", "name", seed.Name, "error", err)
			continue
		}
		ds.Perm = connector.DatasourcePermission(ds)
		if err := store.UpdateDatasource(ctx, ds); err != nil {
			logger.Warn("failed to set permission string", "datasource", ds.UID(), "error", err)
		}
		logger.Info("seeded datasource from config", "datasource", ds.UID(), "table", ds.TableName)
	}
}

func poolFromSeed(pool *config.PoolYAMLConfig) model.PoolConfig {
	cfg := model.DefaultPoolConfig()
	if pool == nil {
		return cfg
	}
	if pool.MaxOpenConns > 0 {
		cfg.MaxOpenConns = pool.MaxOpenConns
	}
	if pool.MaxIdleConns > 0 {
		cfg.MaxIdleConns = pool.MaxIdleConns
	}
	if d, err := time.ParseDuration(pool.ConnMaxLifetime); err == nil && d > 0 {
		cfg.ConnMaxLifetime = d
	}
	return cfg
}

// introspectDatasource fills in column metadata for a datasource that has
// none yet, typically one freshly seeded from the config file.
func introspectDatasource(ctx context.Context, store *config.Store, registry *connector.Registry, ds *model.Datasource, logger *slog.Logger) {
	conn, err := registry.Get(ds.UID())
	if err != nil {
		return
	}
	columns, err := conn.FetchColumns(ctx, ds.TableName)
	if err != nil {
		logger.Warn("failed to introspect table", "datasource", ds.UID(), "table", ds.TableName, "error", err)
		return
	}
	if err := store.ReplaceColumns(ctx, ds, columns); err != nil {
		logger.Error("failed to store introspected columns", "datasource", ds.UID(), "error", err)
		return
	}
	if _, err := store.SaveSnapshot(ctx, ds.UID(), columns); err != nil {
		logger.Warn("failed to save column snapshot", "datasource", ds.UID(), "error", err)
	}
	logger.Info("introspected columns", "datasource", ds.UID(), "columns", len(columns))
}

// parseByteSize parses sizes like "10MB", "512KB", or a plain byte count.
func parseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "GB"):
		mult, s = 1<<30, strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		mult, s = 1<<20, strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		mult, s = 1<<10, strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * mult, nil
}

// gatherTelemetry builds the callback that snapshots instance state for the
// periodic usage report.
func gatherTelemetry(store *config.Store) telemetry.PropertiesFunc {
	return func() telemetry.Properties {
		ctx := context.Background()
		props := telemetry.Properties{
			Version:   versionString(),
			GoVersion: runtime.Version(),
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
		}

		if datasources, err := store.ListDatasources(ctx); err == nil {
			props.Datasources = len(datasources)
			types := make(map[string]bool)
			for i := range datasources {
				types[datasources[i].Type] = true
				props.Metrics += len(datasources[i].Metrics)
			}
			for t := range types {
				props.DBTypes = append(props.DBTypes, t)
			}
		}
		if admins, err := store.ListAdmins(ctx); err == nil {
			props.Admins = len(admins)
		}
		if keys, err := store.ListAPIKeys(ctx); err == nil {
			props.APIKeys = len(keys)
		}
		if roles, err := store.ListRoles(ctx); err == nil {
			props.Roles = len(roles)
		}
		return props
	}
}
