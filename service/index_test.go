package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"finreg-audit/models"
	"finreg-audit/repository"
	"finreg-audit/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lengthEmbedder struct {
	fail bool
}

func (e lengthEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.fail {
		return nil, errors.New("quota exceeded")
	}
	return []float32{float32(len(text)), 1}, nil
}

type recordingChunkStore struct {
	docs    []models.Document
	nearest []models.EvidenceChunk
	lastK   int
}

func (s *recordingChunkStore) Insert(_ context.Context, doc models.Document, _ []float32) error {
	s.docs = append(s.docs, doc)
	return nil
}

func (s *recordingChunkStore) Nearest(_ context.Context, _ []float32, topK int) ([]models.EvidenceChunk, error) {
	s.lastK = topK
	return s.nearest, nil
}

func (s *recordingChunkStore) Count(context.Context) (int, error) {
	return len(s.docs), nil
}

func (s *recordingChunkStore) Reset(context.Context) error {
	s.docs = nil
	return nil
}

// taskEmbedder tags document and query vectors so tests can tell which path was used
type taskEmbedder struct {
	documents int
	queries   int
}

func (e *taskEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.documents++
	return []float32{float32(len(text)), 1}, nil
}

func (e *taskEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.queries++
	return []float32{float32(len(text)), 1}, nil
}

func corpus(prefix string, sources ...string) []models.Document {
	docs := make([]models.Document, 0, len(sources))
	for i, src := range sources {
		docs = append(docs, models.Document{
			Text:        "evidence from " + src,
			Source:      src,
			DocType:     models.DocTypePDF,
			ContentHash: prefix + "-" + src,
			ChunkIndex:  i,
		})
	}
	return docs
}

func searchSources(t *testing.T, index *service.VectorIndex) []string {
	t.Helper()
	chunks, err := index.Search(context.Background(), "risk analysis", 20)
	require.NoError(t, err)
	var sources []string
	for _, c := range chunks {
		sources = append(sources, c.Source)
	}
	sort.Strings(sources)
	return sources
}

func TestVectorIndex(t *testing.T) {
	store := &recordingChunkStore{nearest: goodChunks()}
	index := service.NewVectorIndex(lengthEmbedder{}, store, nil)

	n, err := index.Index(context.Background(), []models.Document{
		{Text: "a", Source: "a.pdf", DocType: models.DocTypePDF},
		{Text: "b", Source: "b.log", DocType: models.DocTypeLog},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := index.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	chunks, err := index.Search(context.Background(), "risk analysis", 8)
	require.NoError(t, err)
	assert.Equal(t, goodChunks(), chunks)
	assert.Equal(t, 8, store.lastK)

	var _ service.Searcher = index
}

func TestVectorIndexErrors(t *testing.T) {
	_, err := service.NewVectorIndex(lengthEmbedder{}, &recordingChunkStore{}, nil).Index(context.Background(), nil)
	require.ErrorIs(t, err, service.ErrEmptyCorpus)

	failing := service.NewVectorIndex(lengthEmbedder{fail: true}, &recordingChunkStore{}, nil)
	_, err = failing.Index(context.Background(), []models.Document{{Text: "x", Source: "x.pdf"}})
	require.ErrorContains(t, err, "x.pdf#0")

	_, err = failing.Search(context.Background(), "q", 3)
	require.ErrorContains(t, err, "quota exceeded")
}

func TestVectorIndexRebuildScopesSearchToLatestCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	first, err := repository.NewSQLiteChunkStore(path)
	require.NoError(t, err)
	indexA := service.NewVectorIndex(lengthEmbedder{}, first, nil)
	_, err = indexA.Rebuild(ctx, corpus("a", "bankA_risikoanalyse.pdf", "bankA_kyc.pdf"))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := repository.NewSQLiteChunkStore(path)
	require.NoError(t, err)
	defer second.Close()
	indexB := service.NewVectorIndex(lengthEmbedder{}, second, nil)
	n, err := indexB.Rebuild(ctx, corpus("b", "bankB_policy.pdf"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, []string{"bankB_policy.pdf"}, searchSources(t, indexB))
	count, err := indexB.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestVectorIndexRebuildWithoutDocumentsKeepsStore(t *testing.T) {
	store := &recordingChunkStore{docs: []models.Document{{Source: "kept.pdf"}}}
	index := service.NewVectorIndex(lengthEmbedder{}, store, nil)

	_, err := index.Rebuild(context.Background(), nil)
	require.ErrorIs(t, err, service.ErrEmptyCorpus)
	assert.Len(t, store.docs, 1)
}

func TestVectorIndexEmbedsQueriesAsQueries(t *testing.T) {
	embedder := &taskEmbedder{}
	index := service.NewVectorIndex(embedder, &recordingChunkStore{}, nil)

	_, err := index.Index(context.Background(), corpus("a", "a.pdf", "b.pdf"))
	require.NoError(t, err)
	_, err = index.Search(context.Background(), "risk analysis", 3)
	require.NoError(t, err)

	assert.Equal(t, 2, embedder.documents)
	assert.Equal(t, 1, embedder.queries)
}

func TestCheckCorpus(t *testing.T) {
	store, err := repository.NewSQLiteChunkStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.ErrorIs(t, service.CheckCorpus(ctx, store), service.ErrEmptyCorpus)

	_, err = service.NewVectorIndex(lengthEmbedder{}, store, nil).Index(ctx, corpus("a", "a.pdf"))
	require.NoError(t, err)
	require.NoError(t, service.CheckCorpus(ctx, store))
}
