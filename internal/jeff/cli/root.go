// Package cli implements the jeff CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bdobrica/Jeff/internal/jeff/app"
	"github.com/bdobrica/Jeff/internal/jeff/config"
	"github.com/bdobrica/Jeff/internal/jeff/observability"
)

var (
	configPath string
	dataDir    string
	logLevel   string
	logFormat  string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "jeff",
	Short: "Personal assistant with long-term memory",
	Long: "Jeff is a personal AI assistant that never forgets: everything it ingests\n" +
		"lands in an append-only JSON log plus a vector index for semantic recall.",
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <data-dir>/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default: $JEFF_DATA_DIR or ~/.jeff)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	RootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")
}

// loadConfig resolves the effective configuration: file and environment via
// config.Load, then the command-line overrides. The --data-dir flag is sugar
// for JEFF_DATA_DIR so that the config file and key files are looked up in
// the overridden directory too.
func loadConfig() (config.Config, error) {
	if dataDir != "" {
		os.Setenv("JEFF_DATA_DIR", dataDir)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openApp wires the full application or exits.
func openApp() *app.App {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	observability.Setup(cfg.LogLevel, cfg.LogFormat)

	a, err := app.New(cfg)
	if err != nil {
		exitErr("initialize", err)
	}
	return a
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
