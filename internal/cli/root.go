package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"recurcal/internal/config"
	appLog "recurcal/internal/log"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
}

// DefaultConfigPath is used when neither --config nor RECURCAL_CONFIG is set.
const DefaultConfigPath = "./config.yaml"

// ValidFormats defines the allowed output formats of expand.
var ValidFormats = []string{"text", "json", "ics"}

// NewRootCommand creates the root command for the recurcal CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	defaultPath := os.Getenv("RECURCAL_CONFIG")
	if defaultPath == "" {
		defaultPath = DefaultConfigPath
	}

	cmd := &cobra.Command{
		Use:   "recurcal",
		Short: "Expand recurring events into concrete occurrences",
		Long: `recurcal expands recurrence rules and iCalendar feeds into concrete,
timezone-correct occurrences, from the command line or over HTTP.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", defaultPath, "path to the YAML config (env RECURCAL_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override log_level from the config")

	cmd.AddCommand(NewExpandCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// loadConfig loads and validates the config, then applies the log level.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", opts.ConfigPath, err)
	}
	level, err := appLog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	appLog.SetLevel(level)
	return cfg, nil
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
