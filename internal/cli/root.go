// Package cli implements the bayan command tree.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/bayan/internal/config"
	"github.com/hyperjump/bayan/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultConfigPath = "/usr/local/etc/bayan/config.yaml"

var (
	version    = "dev"
	configPath string
	debugFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "bayan",
	Short: "Question answering over Arabic reference texts",
	Long: `Bayan indexes a directory of plain-text references and answers
questions about them with retrieval-augmented generation.

Build the index with "bayan index", then ask with "bayan ask", chat with
"bayan chat" or serve the HTTP API with "bayan serve".`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
}

// Execute runs the command tree. v is the build version.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.Execute()
}

// loadConfig loads .env and then the config at path. When path is the default,
// config.yaml in the current directory wins if present, and a missing default
// file yields the built-in defaults relative to the current directory.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, "", err
	}
	if path == defaultConfigPath {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, "", err
		}
		fallback := filepath.Join(cwd, "config.yaml")
		if _, statErr := os.Stat(fallback); statErr == nil {
			cfg, loadErr := config.Load(fallback)
			if loadErr != nil {
				return nil, "", loadErr
			}
			return cfg, fallback, nil
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return config.Default(cwd), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads the config and builds the logger shared by a command run.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug := cfg.Debug || debugFlag
	cfg.Debug = debug
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debug))
	return cfg, logger, nil
}
