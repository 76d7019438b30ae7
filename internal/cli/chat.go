package cli

import (
	"fmt"

	"github.com/hyperjump/bayan/internal/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Launch the interactive chat",
	Long: `Opens a full-screen chat over the saved index. Answers stream in as they
are generated.

Controls:
  Enter  - Ask
  Esc    - Stop the current answer
  Ctrl+C - Quit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	// Log lines would tear the full-screen UI.
	if !cfg.Debug {
		logger = zap.NewNop()
	}

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		return err
	}
	defer components.Close()

	p := components.Pipeline
	if _, err := p.LoadIndex(""); err != nil {
		return err
	}
	stats := p.Stats()
	summary := fmt.Sprintf("%d passages indexed from %s", stats.Entries, stats.TextDir)
	if components.Generator != nil {
		summary += " · model " + components.Generator.Model()
	}
	return tui.Run(cmd.Context(), p, summary, logger)
}
