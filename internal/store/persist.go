package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hyperjump/bayan/internal/models"
	"github.com/hyperjump/bayan/internal/vector"
	"go.uber.org/zap"
)

// MetadataFile is the sidecar file name inside an index directory.
const MetadataFile = "metadata.json"

// sidecar is the on-disk metadata layout.
type sidecar struct {
	Metadata     []models.Metadata          `json:"metadata"`
	IDToMetadata map[string]models.Metadata `json:"id_to_metadata"`
}

// IndexPath returns where the binary index is stored inside dir.
func (s *VectorStore) IndexPath(dir string) string {
	return filepath.Join(dir, vector.ArtifactName(s.IndexType()))
}

// Save writes the binary index and the metadata sidecar into dir. Each file
// is written to a temporary name and renamed into place.
func (s *VectorStore) Save(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	indexPath := filepath.Join(dir, vector.ArtifactName(s.indexType))
	tmpIndex := indexPath + ".tmp"
	if err := s.index.Save(tmpIndex); err != nil {
		_ = os.Remove(tmpIndex)
		return fmt.Errorf("save vector index: %w", err)
	}

	sc := sidecar{
		Metadata:     s.metadata,
		IDToMetadata: make(map[string]models.Metadata, len(s.metadata)),
	}
	if sc.Metadata == nil {
		sc.Metadata = []models.Metadata{}
	}
	for _, m := range s.metadata {
		sc.IDToMetadata[strconv.FormatInt(m.ID, 10)] = m
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sc); err != nil {
		_ = os.Remove(tmpIndex)
		return fmt.Errorf("encode metadata: %w", err)
	}
	metaPath := filepath.Join(dir, MetadataFile)
	tmpMeta := metaPath + ".tmp"
	if err := os.WriteFile(tmpMeta, buf.Bytes(), 0644); err != nil {
		_ = os.Remove(tmpIndex)
		return fmt.Errorf("write metadata: %w", err)
	}

	if err := os.Rename(tmpIndex, indexPath); err != nil {
		return fmt.Errorf("commit vector index: %w", err)
	}
	if err := os.Rename(tmpMeta, metaPath); err != nil {
		return fmt.Errorf("commit metadata: %w", err)
	}
	s.logger.Info("vector store saved",
		zap.String("dir", dir),
		zap.Int("entries", len(s.metadata)),
		zap.String("index_type", s.indexType))
	return nil
}

// Load replaces the store contents with the index saved in dir. The store is
// emptied first, so a failed load never leaves earlier contents behind. A
// missing artifact returns an error wrapping models.ErrPersistence; malformed
// or inconsistent data returns one wrapping models.ErrSerialization.
func (s *VectorStore) Load(dir string) error {
	if err := s.Clear(); err != nil {
		return err
	}

	indexPath := s.IndexPath(dir)
	metaPath := filepath.Join(dir, MetadataFile)
	for _, p := range []string{indexPath, metaPath} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("index artifact missing, store left empty", zap.String("path", p))
				return fmt.Errorf("%s: %w", p, models.ErrPersistence)
			}
			return fmt.Errorf("stat %s: %w", p, err)
		}
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}
	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return fmt.Errorf("decode %s: %v: %w", metaPath, err, models.ErrSerialization)
	}
	texts := make([]string, len(sc.Metadata))
	for i, m := range sc.Metadata {
		if m.ID != int64(i) {
			return fmt.Errorf("metadata entry %d has id %d: %w", i, m.ID, models.ErrSerialization)
		}
		texts[i] = m.Text
	}

	index, err := vector.NewVectorIndex(s.indexType, s.dimensions)
	if err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}
	if err := index.Load(indexPath); err != nil {
		_ = index.Close()
		return fmt.Errorf("load %s: %v: %w", indexPath, err, models.ErrSerialization)
	}
	if index.Size() != len(sc.Metadata) {
		n := index.Size()
		_ = index.Close()
		return fmt.Errorf("index holds %d vectors but metadata has %d entries: %w",
			n, len(sc.Metadata), models.ErrSerialization)
	}

	s.mu.Lock()
	old := s.index
	s.index = index
	s.texts = texts
	s.metadata = sc.Metadata
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	s.logger.Info("vector store loaded",
		zap.String("dir", dir),
		zap.Int("entries", len(texts)),
		zap.String("index_type", s.indexType))
	return nil
}
