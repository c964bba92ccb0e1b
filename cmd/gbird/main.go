// Command gbird runs the GBird field-ops voice console.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ent0n29/gbird/internal/config"
	"github.com/ent0n29/gbird/internal/logging"
)

var (
	envFile   string
	logLevel  string
	logFormat string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gbird",
		Short: "GBird field-ops voice console",
		Long: `GBird drives a simulated field unit through a push-to-talk voice loop:
record, transcribe, generate a reply with a status line, speak it, and keep
a persistent mission log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(envFile)
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file (ignored when missing)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "Override LOG_FORMAT (json|text)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newSimulateCmd())
	root.AddCommand(newSayCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newProbeCmd())
	return root
}

// loadConfig reads the environment and builds the logger with flag overrides.
func loadConfig() (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("config error: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	return cfg, logging.New(cfg.LogLevel, cfg.LogFormat), nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gbird: %v\n", err)
		os.Exit(1)
	}
}
