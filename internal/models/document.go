// Package models defines core data structures for documents, chunks, index entries, and queries.
package models

import "time"

// Document is one plain-text source read at index-build time.
type Document struct {
	Source string `json:"source"`
	Path   string `json:"path"`
	Text   string `json:"text"`
}

// Chunk is a bounded slice of a document's text, the atomic retrieval unit.
// Start and End are rune offsets into the document text.
type Chunk struct {
	Index  int    `json:"chunk_index"`
	Text   string `json:"text"`
	Source string `json:"source"`
	Start  int    `json:"char_start"`
	End    int    `json:"char_end"`
}

// Metadata returns the index metadata for the chunk. ID and Text are filled in
// by the store at insertion time.
func (c *Chunk) Metadata(path string) Metadata {
	extra := map[string]any{
		"chunk_index": c.Index,
		"char_start":  c.Start,
		"char_end":    c.End,
	}
	if path != "" {
		extra["path"] = path
	}
	return Metadata{Source: c.Source, Extra: extra}
}

// IndexBuild summarizes one index_documents run.
type IndexBuild struct {
	ID         string    `json:"id"`
	TextDir    string    `json:"text_dir"`
	Documents  int       `json:"documents"`
	Chunks     int       `json:"chunks"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Build statuses.
const (
	BuildSucceeded = "succeeded"
	BuildFailed    = "failed"
)

// DocumentRecord describes a document that went into an index build.
type DocumentRecord struct {
	BuildID    string    `json:"build_id"`
	Source     string    `json:"source"`
	Path       string    `json:"path"`
	Characters int       `json:"characters"`
	Chunks     int       `json:"chunks"`
	IndexedAt  time.Time `json:"indexed_at"`
}
