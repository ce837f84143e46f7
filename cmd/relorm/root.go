package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/golobby/relorm"
	"github.com/golobby/relorm/internal/config"
)

var (
	cfg        *config.Config
	configPath string

	cfgFile   string
	driver    string
	logLevel  string
	schemaArg string
)

var rootCmd = &cobra.Command{
	Use:   "relorm",
	Short: "Relation aware query builder",
	Long: `relorm - relation aware query builder

relorm renders dialect specific SQL and prints the tables and relations
declared in a schema file.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" {
			return nil
		}
		var err error
		cfg, configPath, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		cfg.Driver = resolveString(driver, cfg.Driver)
		cfg.LogLevel = resolveString(logLevel, cfg.LogLevel)
		cfg.Schema = resolveString(schemaArg, cfg.Schema)
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: auto-discover relorm.yaml)")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "database driver: mysql, postgres, pgx, sqlite or sqlite3")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: dev or prod")
	rootCmd.PersistentFlags().StringVar(&schemaArg, "schema", "", "schema file (default: schema.yaml)")

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(schematicCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// resolveString returns the first non-empty value: flag, then config.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func newLogger() (relorm.Logger, error) {
	switch cfg.LogLevel {
	case "dev", "debug":
		return relorm.NewLogger(relorm.LogLevelDev)
	case "", "prod":
		return relorm.NewLogger(relorm.LogLevelProd)
	}
	return nil, fmt.Errorf("unknown log level %q", cfg.LogLevel)
}

// openConnection opens the configured database with the entities of the
// schema file, when one is given.
func openConnection(entities []relorm.Entity) (*relorm.Connection, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	return relorm.Open(relorm.ConnectionConfig{
		Driver:           cfg.Driver,
		ConnectionString: dsn,
		Entities:         entities,
		Logger:           logger,
		EagerConcurrency: cfg.EagerConcurrency,
	})
}
