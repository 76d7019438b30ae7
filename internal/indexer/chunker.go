// Package indexer turns a directory of plain-text documents into vector store
// entries: sentence-based chunking, embedding in batches, and ordered commits.
package indexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/bayan/internal/models"
)

// minSentenceRunes is the floor below which a sentence is dropped as noise.
const minSentenceRunes = 10

// Chunker splits text into overlapping sentence-based chunks. Sizes are
// counted in runes.
type Chunker struct {
	chunkSize    int
	overlap      int
	minChunkSize int
}

// NewChunker creates a chunker. overlap must be smaller than chunkSize.
func NewChunker(chunkSize, overlap, minChunkSize int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d: %w", chunkSize, models.ErrValidation)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap %d must be in [0, %d): %w", overlap, chunkSize, models.ErrValidation)
	}
	if minChunkSize < 0 {
		return nil, fmt.Errorf("min chunk size must not be negative, got %d: %w", minChunkSize, models.ErrValidation)
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap, minChunkSize: minChunkSize}, nil
}

type sentence struct {
	text       string
	start, end int
}

// Chunk splits text into chunks attributed to source. Sentences are greedily
// packed up to the chunk size; each new chunk starts with the trailing whole
// sentences of the previous one that fit in the overlap budget. Text shorter
// than the minimum chunk size yields no chunks.
func (c *Chunker) Chunk(text, source string) []models.Chunk {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < c.minChunkSize {
		return nil
	}

	var (
		chunks    []models.Chunk
		current   string
		members   []sentence
		spanStart int
	)
	emit := func() {
		chunks = append(chunks, models.Chunk{
			Index:  len(chunks),
			Text:   strings.TrimSpace(current),
			Source: source,
			Start:  spanStart,
			End:    members[len(members)-1].end,
		})
	}

	for _, s := range splitSentences(text) {
		if current != "" && runeLen(current)+runeLen(s.text) > c.chunkSize {
			emit()
			seed, seedStart := c.overlapSeed(members)
			current = seed + " " + s.text
			members = []sentence{s}
			spanStart = s.start
			if seedStart >= 0 {
				spanStart = seedStart
			}
			continue
		}
		if len(members) == 0 {
			spanStart = s.start
		}
		current += " " + s.text
		members = append(members, s)
	}

	if len(members) > 0 && runeLen(strings.TrimSpace(current)) >= c.minChunkSize {
		emit()
	}
	return chunks
}

// overlapSeed walks sentences from the end, keeping whole sentences while the
// seed stays within the overlap budget. It returns the seed and the rune
// offset of its first sentence, or -1 when the seed is empty.
func (c *Chunker) overlapSeed(sentences []sentence) (string, int) {
	seed := ""
	start := -1
	for i := len(sentences) - 1; i >= 0; i-- {
		s := sentences[i]
		if runeLen(seed)+runeLen(s.text) > c.overlap {
			break
		}
		seed = s.text + " " + seed
		start = s.start
	}
	return strings.TrimSpace(seed), start
}

// splitSentences breaks text at line breaks and at a terminator followed by
// whitespace. Terminators at a break are dropped; sentences are trimmed and
// those under minSentenceRunes are discarded.
func splitSentences(text string) []sentence {
	runes := []rune(text)
	var out []sentence
	segStart := 0
	flush := func(end int) {
		s, e := segStart, end
		for s < e && unicode.IsSpace(runes[s]) {
			s++
		}
		for e > s && unicode.IsSpace(runes[e-1]) {
			e--
		}
		if e-s >= minSentenceRunes {
			out = append(out, sentence{text: string(runes[s:e]), start: s, end: e})
		}
	}
	for i, r := range runes {
		if r == '\n' || (isTerminator(r) && i+1 < len(runes) && unicode.IsSpace(runes[i+1])) {
			flush(i)
			segStart = i + 1
		}
	}
	flush(len(runes))
	return out
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '؟', '!', '؛':
		return true
	}
	return false
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
