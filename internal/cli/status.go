package cli

import (
	"fmt"

	"github.com/hyperjump/bayan/internal/storage"
	"github.com/spf13/cobra"
)

const statusHistoryLimit = 10

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index status and build history",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
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

	if _, err := components.Pipeline.LoadIndex(""); err != nil {
		return err
	}
	ctx := cmd.Context()
	report := &StatusReport{Pipeline: components.Pipeline.Stats()}
	if report.BuildsTotal, err = components.Catalog.CountBuilds(ctx); err != nil {
		return fmt.Errorf("count builds: %w", err)
	}
	if report.Builds, err = components.Catalog.ListBuilds(ctx, 0, statusHistoryLimit); err != nil {
		return fmt.Errorf("list builds: %w", err)
	}
	if n, err := storage.DiskUsageBytes(cfg.Paths.IndexDir, cfg.Paths.DatabasePath); err == nil {
		report.DiskUsageBytes = n
	}
	return WriteStatus(cmd.OutOrStdout(), report, formatFor(statusJSON))
}
