package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/okian/rollcall/internal/config"
	"github.com/okian/rollcall/pkg/logger"
)

var (
	cfg        *config.Config
	configFile string
	envFile    string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rollcall",
		Short: "Face-recognition attendance service",
		Long: `Rollcall detects faces in frames submitted for a course, matches them
against the enrolled reference gallery and records attendance in an
append-only ledger. Reports reconcile the course roster with the ledger.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		RunE:              runServe,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (overrides ROLLCALL_CONFIG)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before configuration")

	root.AddCommand(
		newServeCmd(),
		newRefreshCmd(),
		newReportCmd(),
		newMigrateCmd(),
		newRosterCmd(),
	)
	return root
}

// setup loads the environment and configuration and initializes logging.
func setup(cmd *cobra.Command, _ []string) error {
	// The dotenv file is optional.
	_ = godotenv.Load(envFile)
	if configFile != "" {
		if err := os.Setenv("ROLLCALL_CONFIG", configFile); err != nil {
			return err
		}
	}

	loaded, err := config.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = loaded

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
