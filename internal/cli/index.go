package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexJSON bool

var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Build the index from a directory of text files",
	Long: `Chunks and embeds every text file in dir (paths.text_dir when omitted)
and saves the index to paths.index_dir. The saved index is replaced only
when the build succeeds.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexJSON, "json", false, "output the build summary as JSON")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, false)
	if err != nil {
		return err
	}
	defer components.Close()

	dir := ""
	if len(args) == 1 {
		dir = args[0]
	}
	build, err := components.Pipeline.IndexDocuments(cmd.Context(), dir)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	if err := components.Pipeline.SaveIndex(""); err != nil {
		return err
	}
	return WriteBuild(cmd.OutOrStdout(), build, formatFor(indexJSON))
}
