package rag

import (
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/bayan/internal/embedding"
	"github.com/hyperjump/bayan/internal/indexer"
	"github.com/hyperjump/bayan/internal/models"
	"github.com/hyperjump/bayan/internal/retrieval"
	"github.com/hyperjump/bayan/internal/storage"
	"github.com/hyperjump/bayan/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dims = 128

type fakeAnswerer struct {
	mu        sync.Mutex
	calls     int
	contexts  []string
	fragments []string
	err       error
}

func (f *fakeAnswerer) AnswerQuestion(_ context.Context, question, retrieved, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.contexts = append(f.contexts, retrieved)
	if f.err != nil {
		return "", f.err
	}
	return "answer to " + question, nil
}

func (f *fakeAnswerer) StreamAnswerQuestion(_ context.Context, _, retrieved, _ string) iter.Seq2[string, error] {
	f.mu.Lock()
	f.calls++
	f.contexts = append(f.contexts, retrieved)
	f.mu.Unlock()
	return func(yield func(string, error) bool) {
		for _, frag := range f.fragments {
			if !yield(frag, nil) {
				return
			}
		}
		if f.err != nil {
			yield("", f.err)
		}
	}
}

func (f *fakeAnswerer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testConfig(textDir string) Config {
	return Config{
		TextDir:      textDir,
		IndexDir:     filepath.Join(filepath.Dir(textDir), "index"),
		ChunkSize:    200,
		Overlap:      50,
		MinChunkSize: 10,
		BatchSize:    2,
		Concurrency:  2,
		TopK:         3,
		MinScore:     0.3,
	}
}

func writeTexts(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, text := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644))
	}
}

var corpus = map[string]string{
	"rivers.txt":    "rivers flow into the sea after long journeys.\nlakes hold fresh water for many towns.",
	"mountains.txt": "mountains rise above the clouds in winter.",
	"deserts.txt":   "deserts receive very little rain each year.",
}

func newPipeline(t *testing.T, emb embedding.Embedder, ans Answerer, opts ...Option) (*Pipeline, string) {
	t.Helper()
	root := t.TempDir()
	textDir := filepath.Join(root, "texts")
	writeTexts(t, textDir, corpus)
	st, err := store.New("memory", dims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	p, err := New(testConfig(textDir), emb, st, ans, opts...)
	require.NoError(t, err)
	return p, textDir
}

func TestPipeline_QueryBeforeIndexingSkipsGeneration(t *testing.T) {
	ans := &fakeAnswerer{}
	p, _ := newPipeline(t, embedding.NewHashEmbedder(dims), ans)
	assert.Equal(t, StateReady, p.State())

	resp, err := p.Query(context.Background(), models.QueryRequest{Question: "where do rivers flow", ReturnContext: true})
	require.NoError(t, err)
	assert.Equal(t, InsufficientInfoAnswer, resp.Answer)
	assert.Equal(t, retrieval.NoContext, resp.Context)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, 0, ans.Calls())

	indexed, n := p.Health()
	assert.False(t, indexed)
	assert.Zero(t, n)
}

func TestPipeline_IndexAndQuery(t *testing.T) {
	ans := &fakeAnswerer{}
	p, textDir := newPipeline(t, embedding.NewHashEmbedder(dims), ans)
	ctx := context.Background()

	build, err := p.IndexDocuments(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, textDir, build.TextDir)
	assert.Equal(t, 3, build.Documents)
	assert.Equal(t, 3, build.Chunks)
	assert.Equal(t, models.BuildSucceeded, build.Status)
	assert.Equal(t, StateIndexed, p.State())

	resp, err := p.Query(ctx, models.QueryRequest{Question: "  mountains rise above the clouds in winter  ", ReturnContext: true})
	require.NoError(t, err)
	assert.Equal(t, "mountains rise above the clouds in winter", resp.Question)
	assert.Equal(t, "answer to mountains rise above the clouds in winter", resp.Answer)
	require.NotEmpty(t, resp.Sources)
	top := resp.Sources[0]
	assert.Equal(t, "mountains rise above the clouds in winter.", top.Text)
	assert.InDelta(t, 1.0, top.Score, 1e-4)
	assert.Equal(t, "mountains", top.Metadata["source"])
	assert.NotContains(t, top.Metadata, "text")
	assert.NotContains(t, top.Metadata, "score")
	assert.Contains(t, resp.Context, "[مصدر 1: mountains")
	assert.Equal(t, 1, ans.Calls())

	resp, err = p.Query(ctx, models.QueryRequest{Question: "mountains rise above the clouds in winter"})
	require.NoError(t, err)
	assert.Empty(t, resp.Context)
	assert.Nil(t, resp.Sources)
}

func TestPipeline_IrrelevantQuestionSkipsGeneration(t *testing.T) {
	ans := &fakeAnswerer{}
	p, _ := newPipeline(t, embedding.NewHashEmbedder(dims), ans)
	ctx := context.Background()
	_, err := p.IndexDocuments(ctx, "")
	require.NoError(t, err)

	resp, err := p.Query(ctx, models.QueryRequest{Question: "quantum chromodynamics"})
	require.NoError(t, err)
	assert.Equal(t, InsufficientInfoAnswer, resp.Answer)
	assert.Equal(t, 0, ans.Calls())
}

func TestPipeline_QueryValidation(t *testing.T) {
	p, _ := newPipeline(t, embedding.NewHashEmbedder(dims), &fakeAnswerer{})
	_, err := p.Query(context.Background(), models.QueryRequest{Question: "   "})
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = p.StreamQuery(context.Background(), "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestPipeline_QueryPropagatesGenerationError(t *testing.T) {
	boom := errors.New("upstream 500")
	p, _ := newPipeline(t, embedding.NewHashEmbedder(dims), &fakeAnswerer{err: boom})
	ctx := context.Background()
	_, err := p.IndexDocuments(ctx, "")
	require.NoError(t, err)

	_, err = p.Query(ctx, models.QueryRequest{Question: "deserts receive very little rain each year"})
	assert.ErrorIs(t, err, boom)
}

func TestPipeline_StreamQuery(t *testing.T) {
	ans := &fakeAnswerer{fragments: []string{"الجواب", " هنا"}}
	p, _ := newPipeline(t, embedding.NewHashEmbedder(dims), ans)
	ctx := context.Background()

	seq, err := p.StreamQuery(ctx, "deserts receive very little rain each year")
	require.NoError(t, err)
	var got []string
	for frag, err := range seq {
		require.NoError(t, err)
		got = append(got, frag)
	}
	assert.Equal(t, []string{InsufficientInfoAnswer}, got)
	assert.Equal(t, 0, ans.Calls())

	_, err = p.IndexDocuments(ctx, "")
	require.NoError(t, err)
	seq, err = p.StreamQuery(ctx, "deserts receive very little rain each year")
	require.NoError(t, err)
	got = nil
	for frag, err := range seq {
		require.NoError(t, err)
		got = append(got, frag)
	}
	assert.Equal(t, []string{"الجواب", " هنا"}, got)
	assert.Equal(t, 1, ans.Calls())
	assert.Contains(t, ans.contexts[0], "deserts receive very little rain each year")
}

func TestPipeline_StreamQueryPropagatesError(t *testing.T) {
	boom := errors.New("stream broke")
	p, _ := newPipeline(t, embedding.NewHashEmbedder(dims), &fakeAnswerer{fragments: []string{"a"}, err: boom})
	ctx := context.Background()
	_, err := p.IndexDocuments(ctx, "")
	require.NoError(t, err)

	seq, err := p.StreamQuery(ctx, "deserts receive very little rain each year")
	require.NoError(t, err)
	var gotErr error
	for _, err := range seq {
		if err != nil {
			gotErr = err
		}
	}
	assert.ErrorIs(t, gotErr, boom)
}

type failingEmbedder struct {
	*embedding.HashEmbedder
}

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for _, t := range texts {
		if strings.Contains(t, "FAIL") {
			return nil, errors.New("embedding quota exceeded")
		}
	}
	return f.HashEmbedder.EmbedBatch(ctx, texts)
}

func TestPipeline_FailedBuildKeepsServingIndex(t *testing.T) {
	catalog, err := storage.NewSQLiteCatalog(filepath.Join(t.TempDir(), "bayan.db"))
	require.NoError(t, err)
	defer catalog.Close()

	p, textDir := newPipeline(t, &failingEmbedder{embedding.NewHashEmbedder(dims)}, &fakeAnswerer{}, WithCatalog(catalog))
	ctx := context.Background()
	_, err = p.IndexDocuments(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 3, p.store.Size())

	badDir := filepath.Join(filepath.Dir(textDir), "bad")
	writeTexts(t, badDir, map[string]string{
		"a.txt": "a perfectly good document about oceans.",
		"b.txt": "this one will FAIL during embedding.",
		"c.txt": "another good document about forests.",
	})
	build, err := p.IndexDocuments(ctx, badDir)
	var be *indexer.BatchError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, models.BuildFailed, build.Status)
	assert.Contains(t, build.Error, "embedding quota exceeded")

	assert.Equal(t, StateIndexed, p.State())
	assert.Equal(t, 3, p.store.Size())
	assert.Equal(t, "deserts", p.store.Entries()[0].Source)

	n, err := catalog.CountBuilds(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	latest, err := catalog.LatestBuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.BuildFailed, latest.Status)

	stats := p.Stats()
	require.NotNil(t, stats.LastBuild)
	assert.Equal(t, models.BuildFailed, stats.LastBuild.Status)
}

func TestPipeline_IndexMissingDirectory(t *testing.T) {
	p, textDir := newPipeline(t, embedding.NewHashEmbedder(dims), &fakeAnswerer{})
	_, err := p.IndexDocuments(context.Background(), filepath.Join(textDir, "missing"))
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Equal(t, StateReady, p.State())
}

func TestPipeline_SaveAndLoad(t *testing.T) {
	ans := &fakeAnswerer{}
	p, _ := newPipeline(t, embedding.NewHashEmbedder(dims), ans)
	ctx := context.Background()
	_, err := p.IndexDocuments(ctx, "")
	require.NoError(t, err)
	require.NoError(t, p.SaveIndex(""))

	st, err := store.New("memory", dims)
	require.NoError(t, err)
	defer st.Close()
	fresh, err := New(p.cfg, embedding.NewHashEmbedder(dims), st, ans)
	require.NoError(t, err)

	loaded, err := fresh.LoadIndex("")
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, StateIndexed, fresh.State())
	before, after := p.store.Entries(), fresh.store.Entries()
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Text, after[i].Text)
		assert.Equal(t, before[i].Source, after[i].Source)
		assert.Equal(t, before[i].Extra["path"], after[i].Extra["path"])
	}

	resp, err := fresh.Query(ctx, models.QueryRequest{Question: "lakes hold fresh water for many towns"})
	require.NoError(t, err)
	assert.Equal(t, "answer to lakes hold fresh water for many towns", resp.Answer)
}

func TestPipeline_LoadMissingIndexIsNotFatal(t *testing.T) {
	p, _ := newPipeline(t, embedding.NewHashEmbedder(dims), &fakeAnswerer{})
	loaded, err := p.LoadIndex(filepath.Join(t.TempDir(), "nothing"))
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, StateReady, p.State())
}

func TestPipeline_BatchQuery(t *testing.T) {
	p, _ := newPipeline(t, embedding.NewHashEmbedder(dims), &fakeAnswerer{})
	ctx := context.Background()
	_, err := p.IndexDocuments(ctx, "")
	require.NoError(t, err)

	out := p.BatchQuery(ctx, []string{"deserts receive very little rain each year", "  ", "quantum chromodynamics"})
	require.Len(t, out, 3)
	assert.Equal(t, "answer to deserts receive very little rain each year", out[0].Answer)
	assert.Equal(t, ErrorMessage, out[1].Answer)
	assert.Equal(t, InsufficientInfoAnswer, out[2].Answer)
}

func TestPipeline_ConcurrentQueriesDuringRebuild(t *testing.T) {
	p, _ := newPipeline(t, embedding.NewHashEmbedder(dims), &fakeAnswerer{})
	ctx := context.Background()
	_, err := p.IndexDocuments(ctx, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := p.Query(ctx, models.QueryRequest{Question: "mountains rise above the clouds in winter"})
			assert.NoError(t, err)
			assert.Equal(t, "answer to mountains rise above the clouds in winter", resp.Answer)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := p.IndexDocuments(ctx, "")
		assert.NoError(t, err)
	}()
	wg.Wait()
	assert.Equal(t, 3, p.store.Size())
}

func TestNew_DimensionMismatch(t *testing.T) {
	st, err := store.New("memory", 8)
	require.NoError(t, err)
	defer st.Close()
	_, err = New(testConfig(t.TempDir()), embedding.NewHashEmbedder(16), st, nil)
	assert.ErrorIs(t, err, models.ErrValidation)
}
