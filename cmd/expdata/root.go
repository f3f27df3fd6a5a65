package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/expdata"
	"github.com/user/expdata/internal/config"
	"github.com/user/expdata/internal/export"
	"github.com/user/expdata/pkg/filestorage"
	"github.com/user/expdata/pkg/logging"
	"github.com/user/expdata/pkg/secrets"
	"github.com/user/expdata/pkg/source/postgres"
	"github.com/user/expdata/pkg/source/sqldb"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "expdata",
	Short:         "expdata exports experiment session data",
	Long:          `Builds hierarchical and tabular exports of oTree-style experiment databases as CSV, XLSX, JSON or Parquet files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "expdata.yaml", "config file")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	viper.SetEnvPrefix("EXPDATA")
	viper.AutomaticEnv()
}

// runtime holds everything a command needs to run exports.
type runtime struct {
	cfg    *config.Config
	logger *logging.DefaultLogger
	src    expdata.DataSource
	svc    *export.Service
}

func (r *runtime) Close() error {
	return r.src.Close()
}

func newLogger(cfg config.LogConfig) *logging.DefaultLogger {
	level := cfg.Level
	if l := viper.GetString("log_level"); l != "" {
		level = l
	}
	if cfg.Format == "console" {
		return logging.NewConsole(level)
	}
	return logging.New(os.Stderr, level)
}

// openSource opens the experiment database. The postgres type uses a native
// pgx pool; every other type goes through database/sql.
func openSource(ctx context.Context, cfg config.SourceConfig, logger expdata.Logger) (expdata.DataSource, error) {
	switch cfg.Type {
	case "postgres", "postgresql":
		src := postgres.NewSource(cfg.DSN)
		src.SetLogger(logger)
		if err := src.Ping(ctx); err != nil {
			src.Close()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return src, nil
	default:
		src, err := sqldb.Open(ctx, cfg.Type, cfg.DSN)
		if err != nil {
			return nil, err
		}
		src.SetLogger(logger)
		return src, nil
	}
}

// setup loads the config file and wires the export service.
func setup(ctx context.Context) (*runtime, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Log)

	mgr, err := secrets.NewManager(ctx, cfg.Secrets)
	if err != nil {
		return nil, err
	}
	if err := cfg.ResolveSecrets(ctx, mgr); err != nil {
		return nil, err
	}

	apps, err := cfg.BuildApps()
	if err != nil {
		return nil, err
	}
	src, err := openSource(ctx, cfg.Source, logger)
	if err != nil {
		return nil, err
	}
	storage, err := filestorage.NewStorage(ctx, cfg.Storage)
	if err != nil {
		src.Close()
		return nil, err
	}
	svc, err := export.FromConfig(cfg, src, apps, storage, logger)
	if err != nil {
		src.Close()
		return nil, err
	}
	logger.Debug("Configuration loaded", "config", cfgFile, "source", cfg.Source.Type, "apps", len(apps))
	return &runtime{cfg: cfg, logger: logger, src: src, svc: svc}, nil
}
