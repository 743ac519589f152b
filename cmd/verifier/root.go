package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/realfinder/verifier/src/config"
	"github.com/realfinder/verifier/src/data"
	"github.com/realfinder/verifier/src/logging"
)

// All linker flags are set at build time.
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "verifier",
	Short:         "AI-assisted verification of listings, brokers and properties.",
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./verifier.yaml or $HOME/verifier.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "debug|info|warn|error")
	rootCmd.PersistentFlags().Bool("development", false, "human readable logs")
	rootCmd.PersistentFlags().String("provider", "gemini25", "analysis provider")
	rootCmd.PersistentFlags().String("model", "", "override the provider model")

	rootCmd.AddCommand(serveCmd, verifyCmd)
}

// runtime is the resolved configuration plus the handles opened to get it.
type runtime struct {
	cfg config.Config
	log *zap.Logger
	db  *gorm.DB
}

// setup resolves configuration from defaults, file, env and flags. When a
// MySQL DSN is configured the settings table is overlaid last.
func setup(ctx context.Context, cmd *cobra.Command) (*runtime, error) {
	v := config.New(cfgFile)
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, log: log}
	if cfg.MySQLDSN == "" {
		return rt, nil
	}
	if err := rt.overlaySettings(ctx, v); err != nil {
		_ = log.Sync()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) overlaySettings(ctx context.Context, v *viper.Viper) error {
	db, err := data.ConnectMySQL(rt.cfg.MySQLDSN, rt.log)
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).AutoMigrate(&data.Setting{}); err != nil {
		return fmt.Errorf("migrate settings: %w", err)
	}
	if err := data.LoadSettings(db.WithContext(ctx)); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	applied := config.Overlay(v, data.Settings())
	cfg, err := config.Decode(v)
	if err != nil {
		return fmt.Errorf("settings table: %w", err)
	}
	rt.cfg, rt.db = cfg, db
	rt.log.Info("settings loaded", zap.Strings("keys", applied))
	return nil
}

func (rt *runtime) close() {
	if rt.db != nil {
		if sqlDB, err := rt.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = rt.log.Sync()
}
