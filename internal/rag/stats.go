package rag

import (
	"github.com/hyperjump/bayan/internal/models"
	"github.com/hyperjump/bayan/internal/storage"
)

// Stats describes the pipeline for status endpoints.
type Stats struct {
	State        State              `json:"state"`
	Entries      int                `json:"entries"`
	Dimensions   int                `json:"dimensions"`
	IndexType    string             `json:"index_type"`
	TextDir      string             `json:"text_dir"`
	IndexDir     string             `json:"index_dir"`
	ChunkSize    int                `json:"chunk_size"`
	Overlap      int                `json:"chunk_overlap"`
	MinChunkSize int                `json:"min_chunk_size"`
	TopK         int                `json:"top_k"`
	MinScore     float64            `json:"min_score"`
	LastBuild    *models.IndexBuild `json:"last_build,omitempty"`
}

// Stats returns a snapshot of the pipeline.
func (p *Pipeline) Stats() Stats {
	p.mu.RLock()
	state, last := p.state, p.lastBuild
	p.mu.RUnlock()
	return Stats{
		State:        state,
		Entries:      p.store.Size(),
		Dimensions:   p.store.Dimensions(),
		IndexType:    p.store.IndexType(),
		TextDir:      p.cfg.TextDir,
		IndexDir:     p.cfg.IndexDir,
		ChunkSize:    p.cfg.ChunkSize,
		Overlap:      p.cfg.Overlap,
		MinChunkSize: p.cfg.MinChunkSize,
		TopK:         p.engine.TopK(),
		MinScore:     p.engine.MinScore(),
		LastBuild:    last,
	}
}

// Catalog returns the build catalog, or nil.
func (p *Pipeline) Catalog() storage.Catalog {
	return p.catalog
}
