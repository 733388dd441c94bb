// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the hostkey-reaper CLI, the hub's
// log-driven host-key cleanup tool.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/hostkey-reaper/internal/cfkey"
	"github.com/pdiddy/hostkey-reaper/internal/hostdb"
	"github.com/pdiddy/hostkey-reaper/internal/reaper"
	"github.com/pdiddy/hostkey-reaper/internal/scan"
	"github.com/pdiddy/hostkey-reaper/internal/secrets"
	"github.com/pdiddy/hostkey-reaper/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd runs the pipeline directly; there is no subcommand for the
// common case.
var rootCmd = &cobra.Command{
	Use:   "hostkey-reaper [LOG_FILE]",
	Short: "Purge stale host keys flagged in hub logs",
	Long: `hostkey-reaper scans hub log text (a file, or stdin when no file is
given) for connection-quality warnings, deduplicates the flagged host
keys, and confirms each one against the hub database: only hosts whose
deletion record is older than the retention window are eligible. Eligible
keys are removed from the local key store with cf-key --force-removal.

Per-key database or cf-key failures are reported and skipped; they never
abort the run. With --cfe-module-protocol the purged keys are also written
as a CFEngine module-protocol inventory file, built in a staging file and
moved into place atomically on completion.`,
	Args: cobra.MaximumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		return nil
	},
	RunE: runReap,
}

func runReap(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if cmd.Flags().Changed("limit") && limit <= 0 {
		return fmt.Errorf("--limit must be a positive integer, got %d", limit)
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	reportPath, _ := cmd.Flags().GetString("cfe-module-protocol")
	summaryPath, _ := cmd.Flags().GetString("summary")

	input, err := openInput(args)
	if err != nil {
		return err
	}
	if input != os.Stdin {
		defer input.Close()
	}

	// Scan before any external setup: a zero-match run must exit 0 even
	// when the hub database is unreachable or cf-key is absent, and it
	// issues no database queries at all.
	keys, err := scan.Scan(input)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Println("no flagged host keys found")
		if summaryPath != "" {
			return writeSummary(summaryPath, types.RunSummary{})
		}
		return nil
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()

	store, err := hostdb.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	// Dry-run must never touch cf-key, so the runner (and its binary
	// lookup) is skipped entirely.
	var remover reaper.KeyRemover
	if !dryRun {
		runner, err := cfkey.NewRunner(cfg.Purge.CFKeyPath)
		if err != nil {
			return err
		}
		remover = runner
	}

	r := reaper.New(store, remover, logger, os.Stdout)
	summary, err := r.Run(ctx, keys, reaper.Options{
		Limit:      limit,
		DryRun:     dryRun,
		ReportPath: reportPath,
	})
	if err != nil {
		return err
	}

	if summaryPath != "" {
		if err := writeSummary(summaryPath, summary); err != nil {
			return err
		}
	}
	return nil
}

// newLogger builds the operator-facing logger: console-encoded, stderr,
// so warnings read as plain lines next to the progress output.
func newLogger() (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zcfg.Build()
}

// openInput returns the log file named by the positional argument, or
// stdin when none is given.
func openInput(args []string) (*os.File, error) {
	if len(args) == 0 {
		return os.Stdin, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

func loadConfig() types.Config {
	cfg := types.Config{
		Database: types.DatabaseConfig{
			Driver:        viper.GetString("database.driver"),
			DSN:           viper.GetString("database.dsn"),
			RetentionDays: viper.GetInt("database.retention_days"),
		},
		Purge: types.PurgeConfig{
			CFKeyPath: viper.GetString("purge.cf_key_path"),
		},
	}
	// A DSN secret wins over config file and environment, so credentials
	// never have to appear in either.
	if dsn, ok := loadedSecrets[secrets.KeyDSN]; ok {
		cfg.Database.DSN = dsn
	}
	return cfg
}

func writeSummary(path string, summary types.RunSummary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encoding run summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing run summary: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./hostkey-reaper.yaml or ~/.config/hostkey-reaper/config.yaml)")

	rootCmd.Flags().Int("limit", 0, "process at most N flagged keys, eligible or not (0 = no limit)")
	rootCmd.Flags().Bool("dry-run", false, "report what would be purged without invoking cf-key")
	rootCmd.Flags().String("cfe-module-protocol", "", "write purged keys as a module-protocol inventory file at this path")
	rootCmd.Flags().String("summary", "", "write a YAML run summary to this path")
	rootCmd.Flags().String("db-driver", "", "hub database driver: postgres or sqlite3")
	rootCmd.Flags().String("db-dsn", "", "hub database data source name")
	rootCmd.Flags().Int("retention-days", 0, "minimum age of a deletion record before purge")
	rootCmd.Flags().String("cf-key", "", "path to the cf-key binary")

	// Flags override config file and environment.
	viper.BindPFlag("database.driver", rootCmd.Flags().Lookup("db-driver"))
	viper.BindPFlag("database.dsn", rootCmd.Flags().Lookup("db-dsn"))
	viper.BindPFlag("database.retention_days", rootCmd.Flags().Lookup("retention-days"))
	viper.BindPFlag("purge.cf_key_path", rootCmd.Flags().Lookup("cf-key"))
}

func initConfig() {
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.dsn", "host=/var/cfengine/state/pg/tmp dbname=cfdb sslmode=disable")
	viper.SetDefault("database.retention_days", types.DefaultRetentionDays)
	viper.SetDefault("purge.cf_key_path", cfkey.DefaultBin)

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("hostkey-reaper")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "hostkey-reaper"))
		}
	}

	viper.SetEnvPrefix("HOSTKEY_REAPER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
