package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hyperjump/bayan/internal/models"
	"github.com/hyperjump/bayan/internal/rag"
	"github.com/hyperjump/bayan/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

func formatFor(jsonOut bool) OutputFormat {
	if jsonOut {
		return OutputJSON
	}
	return OutputText
}

// StatusReport is what "bayan status" prints.
type StatusReport struct {
	Pipeline       rag.Stats            `json:"pipeline"`
	BuildsTotal    int64                `json:"builds_total"`
	Builds         []*models.IndexBuild `json:"builds"`
	DiskUsageBytes int64                `json:"disk_usage_bytes"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes a query response to w in the given format.
func WriteAnswer(w io.Writer, resp *models.QueryResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "%s\n", resp.Answer)
	if !resp.IncludeContext {
		return nil
	}
	fmt.Fprintf(w, "\n--- Sources (%d) ---\n", len(resp.Sources))
	for i, src := range resp.Sources {
		fmt.Fprintf(w, "[%d] %v (score %.4f)\n", i+1, src.Metadata["source"], src.Score)
		fmt.Fprintf(w, "    %s\n", utils.Truncate(src.Text, 200))
	}
	return nil
}

// WriteBuild writes an index build summary to w in the given format.
func WriteBuild(w io.Writer, build *models.IndexBuild, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, build)
	}
	fmt.Fprintf(w, "Indexed %d documents into %d chunks from %s in %s\n",
		build.Documents, build.Chunks, build.TextDir, build.FinishedAt.Sub(build.StartedAt).Round(time.Millisecond))
	return nil
}

// WriteStatus writes a status report to w in the given format.
func WriteStatus(w io.Writer, report *StatusReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	s := report.Pipeline
	fmt.Fprintf(w, "State:       %s\n", s.State)
	fmt.Fprintf(w, "Entries:     %d\n", s.Entries)
	fmt.Fprintf(w, "Index:       %s (%d dimensions)\n", s.IndexType, s.Dimensions)
	fmt.Fprintf(w, "Text dir:    %s\n", s.TextDir)
	fmt.Fprintf(w, "Index dir:   %s\n", s.IndexDir)
	fmt.Fprintf(w, "Chunking:    size %d, overlap %d, min %d\n", s.ChunkSize, s.Overlap, s.MinChunkSize)
	fmt.Fprintf(w, "Retrieval:   top %d, min score %.2f\n", s.TopK, s.MinScore)
	fmt.Fprintf(w, "Disk usage:  %d bytes\n", report.DiskUsageBytes)
	fmt.Fprintf(w, "Builds:      %d\n", report.BuildsTotal)
	for _, b := range report.Builds {
		line := fmt.Sprintf("  %s  %-9s  %d docs, %d chunks  %s",
			b.StartedAt.Format("2006-01-02 15:04:05"), b.Status, b.Documents, b.Chunks, b.TextDir)
		if b.Error != "" {
			line += "  (" + utils.Truncate(b.Error, 80) + ")"
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
