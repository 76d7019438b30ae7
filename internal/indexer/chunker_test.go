package indexer

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/hyperjump/bayan/internal/models"
)

func mustChunker(t *testing.T, size, overlap, min int) *Chunker {
	t.Helper()
	c, err := NewChunker(size, overlap, min)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func chunkTexts(chunks []models.Chunk) []string {
	out := make([]string, len(chunks))
	for i, ch := range chunks {
		out[i] = ch.Text
	}
	return out
}

func TestChunker_ShortArabicTextSingleChunk(t *testing.T) {
	c := mustChunker(t, 100, 30, 10)
	s1 := "الذكاء الاصطناعي علم حديث"
	s2 := "يستخدم في مجالات كثيرة"
	s3 := "وله تطبيقات مهمة."
	chunks := c.Chunk(s1+". "+s2+". "+s3, "doc")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %v", len(chunks), chunkTexts(chunks))
	}
	text := chunks[0].Text
	i1, i2, i3 := strings.Index(text, s1), strings.Index(text, s2), strings.Index(text, s3)
	if i1 < 0 || i2 < 0 || i3 < 0 {
		t.Fatalf("chunk %q is missing a sentence", text)
	}
	if !(i1 < i2 && i2 < i3) {
		t.Errorf("sentences out of order in %q", text)
	}
	if chunks[0].Source != "doc" || chunks[0].Index != 0 {
		t.Errorf("unexpected chunk identity %+v", chunks[0])
	}
}

func TestChunker_Overlap(t *testing.T) {
	a := strings.Repeat("a", 15)
	b := strings.Repeat("b", 15)
	cc := strings.Repeat("c", 15)
	d := strings.Repeat("d", 15)
	text := a + ". " + b + ". " + cc + ". " + d + "."

	chunks := mustChunker(t, 40, 20, 10).Chunk(text, "s")
	want := []string{a + " " + b, b + " " + cc, cc + " " + d + "."}
	if got := chunkTexts(chunks); !reflect.DeepEqual(got, want) {
		t.Fatalf("chunks = %q, want %q", got, want)
	}
	for i, ch := range chunks {
		if ch.Index != i {
			t.Errorf("chunk %d has index %d", i, ch.Index)
		}
	}
	if chunks[0].Start != 0 || chunks[0].End != 32 {
		t.Errorf("chunk 0 span = [%d,%d), want [0,32)", chunks[0].Start, chunks[0].End)
	}
	// chunk 1 starts at the overlapped b sentence
	if chunks[1].Start != 17 || chunks[1].End != 49 {
		t.Errorf("chunk 1 span = [%d,%d), want [17,49)", chunks[1].Start, chunks[1].End)
	}
}

func TestChunker_ZeroOverlapWhenSentenceExceedsBudget(t *testing.T) {
	a := strings.Repeat("a", 15)
	b := strings.Repeat("b", 15)
	cc := strings.Repeat("c", 15)
	d := strings.Repeat("d", 15)
	text := a + ". " + b + ". " + cc + ". " + d + "."

	chunks := mustChunker(t, 40, 10, 10).Chunk(text, "s")
	want := []string{a + " " + b, cc + " " + d + "."}
	if got := chunkTexts(chunks); !reflect.DeepEqual(got, want) {
		t.Fatalf("chunks = %q, want %q", got, want)
	}
}

func TestChunker_Deterministic(t *testing.T) {
	text := strings.Repeat("هذه جملة عربية للاختبار. This is an English sentence! ", 40)
	c := mustChunker(t, 120, 40, 20)
	first := c.Chunk(text, "x")
	second := c.Chunk(text, "x")
	if !reflect.DeepEqual(first, second) {
		t.Error("chunking should be deterministic")
	}
	if len(first) < 2 {
		t.Fatalf("expected several chunks, got %d", len(first))
	}
	for i, ch := range first[:len(first)-1] {
		n := utf8.RuneCountInString(ch.Text)
		if n < 20 || n > 120 {
			t.Errorf("chunk %d has %d runes, want within [20,120]", i, n)
		}
	}
}

func TestChunker_EmptyAndShortInput(t *testing.T) {
	c := mustChunker(t, 100, 30, 50)
	if chunks := c.Chunk("   \n\t  ", "d"); chunks != nil {
		t.Errorf("blank text should return nil, got %v", chunks)
	}
	if chunks := c.Chunk("short sentence here.", "d"); chunks != nil {
		t.Errorf("text under the minimum should return nil, got %v", chunks)
	}
}

func TestChunker_DropsNoiseSentences(t *testing.T) {
	c := mustChunker(t, 100, 0, 0)
	chunks := c.Chunk("ok.\nthis sentence is long enough\n!!\n", "d")
	if len(chunks) != 1 || chunks[0].Text != "this sentence is long enough" {
		t.Errorf("got %q", chunkTexts(chunks))
	}
}

func TestNewChunker_Validates(t *testing.T) {
	tests := []struct {
		size, overlap, min int
	}{
		{0, 0, 0},
		{10, 10, 0},
		{10, -1, 0},
		{10, 2, -1},
	}
	for _, tt := range tests {
		if _, err := NewChunker(tt.size, tt.overlap, tt.min); !errors.Is(err, models.ErrValidation) {
			t.Errorf("NewChunker(%d, %d, %d) error = %v, want ErrValidation", tt.size, tt.overlap, tt.min, err)
		}
	}
}
