package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	appVersion string // set in Execute
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prism",
		Short: "Semantic-layer API for your databases",
		Long: `Prism: register tables from your SQL databases as datasources, define metrics
and dimensions on them, and query them through a uniform REST API.

Prism connects to your databases, introspects table schemas, and exposes each
registered datasource with filtering, aggregate metrics, RBAC, OpenAPI docs,
and a built-in MCP server for AI agents.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./prism.yaml)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for SQLite config (default: ~/.prism)")

	cobra.OnInitialize(initConfig)

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newDatasourceCmd())
	cmd.AddCommand(newKeyCmd())
	cmd.AddCommand(newRoleCmd())
	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newOpenAPICmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newBenchmarkCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("prism")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.prism")
	}

	viper.SetEnvPrefix("PRISM")
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional
}
