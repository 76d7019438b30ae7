package indexer

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hyperjump/bayan/internal/models"
	"github.com/hyperjump/bayan/pkg/utils"
	"go.uber.org/zap"
)

// DefaultPattern matches the text files written by the ingestion step.
const DefaultPattern = "*.txt"

// ListDocuments reads every file in dir matching the doublestar pattern, in
// lexical path order. Hidden files and directories are skipped, as are files
// that cannot be read (logged). Invalid UTF-8 is replaced. The source name is
// the file name without extension.
func ListDocuments(dir, pattern string, logger *zap.Logger) ([]models.Document, error) {
	logger = utils.LoggerOrNop(logger)
	if pattern == "" {
		pattern = DefaultPattern
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("text directory %s: %w", dir, models.ErrValidation)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s: %w", dir, models.ErrValidation)
	}

	fsys := os.DirFS(dir)
	matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	sort.Strings(matches)

	docs := make([]models.Document, 0, len(matches))
	for _, m := range matches {
		if hidden(m) {
			continue
		}
		data, err := fs.ReadFile(fsys, m)
		if err != nil {
			logger.Warn("skipping unreadable document", zap.String("path", m), zap.Error(err))
			continue
		}
		base := path.Base(m)
		docs = append(docs, models.Document{
			Source: strings.TrimSuffix(base, path.Ext(base)),
			Path:   filepath.Join(dir, filepath.FromSlash(m)),
			Text:   strings.ToValidUTF8(string(data), "\uFFFD"),
		})
	}
	return docs, nil
}

func hidden(p string) bool {
	for _, part := range strings.Split(p, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
