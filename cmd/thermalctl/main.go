package main

import (
	"context"
	"fmt"
	"os"

	"codeberg.org/mutker/thermalctl/internal/config"
	"codeberg.org/mutker/thermalctl/internal/logger"
	"codeberg.org/mutker/thermalctl/internal/safego"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
)

// version is set at build time via -ldflags.
var version = "dev"

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "thermalctl",
	Short: "Keep CPU and GPU temperatures inside safe limits",
	Long: `thermalctl samples temperature, fan and power sensors and escalates
through power modes, throttles runaway workloads and drives fans to keep
the machine inside its thermal limits.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if err := logger.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "failed to close log file:", err)
		}
	},
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(runCmd, detectCmd, sensorsCmd, waitCmd)
}

func main() {
	rootCmd.Version = version

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.Options{
		Debug:     cfg.Debug || cfg.LogLevel == string(config.LogLevelDebug),
		Verbose:   cfg.Verbose || cfg.LogLevel == string(config.LogLevelInfo),
		IsService: logger.IsService(),
		File:      cfg.LogFile,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if config.LogLevel(cfg.LogLevel) == config.LogLevelError && !cfg.Debug && !cfg.Verbose {
		logger.SetLogLevel(logger.ErrorLevel)
	}

	safego.InitPanicLogger(logger.Component("panic"))
	logger.Debug().Msg("Config loaded")

	return nil
}
