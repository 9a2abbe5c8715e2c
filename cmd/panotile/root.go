package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/utkarsh5026/panotile/internal/config"
	"github.com/utkarsh5026/panotile/pipeline"
)

// Global flag values.
var (
	flagConfig   string
	flagLogLevel string
)

// Loaded by PersistentPreRunE for every command except version.
var (
	cfg    config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:          "panotile",
	Short:        "Project panoramas onto tangent planes and back",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}

		loaded, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded

		level := cfg.Level()
		if flagLogLevel != "" {
			if level, err = zapcore.ParseLevel(flagLogLevel); err != nil {
				return fmt.Errorf("%w: %q", config.ErrLogLevelUnknown, flagLogLevel)
			}
		}

		if logger, err = newLogger(level); err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		pipeline.SetLogger(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: ./panotile.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error (default from config)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(roundtripCmd)
	rootCmd.AddCommand(benchCmd)
}

// newLogger builds a production logger at level, or a development one for
// debug.
func newLogger(level zapcore.Level) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if level == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
