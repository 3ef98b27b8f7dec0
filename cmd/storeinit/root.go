package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"internet-store/storeinit/internal/config"
	"internet-store/storeinit/internal/telemetry"
	"internet-store/storeinit/internal/ui"
)

var (
	cfgFile  string
	logLevel string
	noColor  bool

	// cfg is populated by PersistentPreRunE and shared with all subcommands.
	cfg *config.Config

	// app holds all wired dependencies; populated by PersistentPreRunE.
	app *AppContext
)

var rootCmd = &cobra.Command{
	Use:   "storeinit",
	Short: "Internet-store database initializer",
	Long: `storeinit prepares the internet-store MongoDB database: it creates the
collections, replaces legacy indexes, seeds the admin user and sample
catalog, and reports what is there. Every step is safe to re-run.

Logs are written to stderr as JSON; progress and results go to stdout.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd); err != nil {
			return err
		}

		var err error
		app, err = buildAppContext(cfg)
		if err != nil {
			return fmt.Errorf("building app context: %w", err)
		}
		return nil
	}

	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig sets up logging and colors, then loads cfg. The --log-level flag
// takes precedence over the config file value.
func loadConfig(cmd *cobra.Command) error {
	initLogger(logLevel)
	ui.InitColors(noColor)

	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Telemetry.LogLevel = logLevel
	} else if cfg.Telemetry.LogLevel != "" {
		initLogger(cfg.Telemetry.LogLevel)
	}
	return nil
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initLogger(level string) {
	slog.SetDefault(telemetry.NewJSONLogger(os.Stderr, level))
}
