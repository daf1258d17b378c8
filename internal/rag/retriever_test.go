package rag

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datahubgov/govhub/internal/config"
	"github.com/datahubgov/govhub/internal/database"
)

type fakeDialect struct{}

func (fakeDialect) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	return nil, fmt.Errorf("not supported in tests")
}

func (fakeDialect) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	return nil, fmt.Errorf("not supported in tests")
}

func (fakeDialect) QuoteIdentifier(name string) string { return name }

func (fakeDialect) Rebind(query string) string { return query }

func (fakeDialect) UpsertSQL(table string, columns []string, keyColumns []string) string {
	return fmt.Sprintf("UPSERT %s (%s)", table, strings.Join(columns, ", "))
}

func (fakeDialect) CreateTableSQL(table string, body string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, body)
}

func (fakeDialect) DDLType(token string) string { return token }

func (fakeDialect) ListTables(db *database.DB) ([]string, error) { return nil, nil }

func (fakeDialect) ListColumns(db *database.DB, tableName string) ([]database.ColumnInfo, error) {
	return nil, nil
}

func newMockRetriever(t *testing.T, topK int, threshold float64) (*Retriever, *database.DB, sqlmock.Sqlmock) {
	t.Helper()
	pool, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	db := database.NewWithPool(pool, fakeDialect{}, config.DatabaseConfig{Dialect: "fake"})
	return NewRetriever(db, topK, threshold, nil), db, mock
}

func chunkRows(chunkID, docID, title string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"chunk_id", "doc_id", "text_ref", "title", "token_count"}).
		AddRow(chunkID, docID, "ref/"+chunkID, title, 128)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 0}, []float64{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	// Zero-norm vectors score zero instead of NaN.
	assert.Equal(t, 0.0, cosineSimilarity([]float64{0, 0}, []float64{1, 1}))
	// Mismatched dimensions score zero.
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1}, []float64{1, 0}))
}

func TestRetrieveByVectorAppliesThresholdAndTopK(t *testing.T) {
	retriever, _, mock := newMockRetriever(t, 2, 0.5)

	cache := NewVectorCache()
	cache.Put("exact", []float64{1, 0})
	cache.Put("close", []float64{0.9, 0.1})
	cache.Put("orthogonal", []float64{0, 1})
	cache.Put("third", []float64{0.7, 0.3})

	// Only the top two survive topK; "orthogonal" fails the threshold.
	mock.ExpectQuery("SELECT dc.chunk_id").WithArgs("exact").
		WillReturnRows(chunkRows("exact", "doc1", "Doc One"))
	mock.ExpectQuery("SELECT dc.chunk_id").WithArgs("close").
		WillReturnRows(chunkRows("close", "doc2", "Doc Two"))

	results, err := retriever.RetrieveByVector(context.Background(), []float64{1, 0}, cache)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].ChunkID)
	assert.Equal(t, "close", results[1].ChunkID)
	assert.InDelta(t, 1.0, results[0].SimilarityScore, 1e-9)
	assert.True(t, results[0].SimilarityScore >= results[1].SimilarityScore)
	assert.Equal(t, "[Doc One] 청크", results[0].Text)
}

func TestRetrieveByTextUsesEmbedder(t *testing.T) {
	retriever, _, mock := newMockRetriever(t, 5, 0.99)

	embedder := NewPseudoEmbedder(8)
	queryVector, err := embedder.EmbedText("customer orders")
	require.NoError(t, err)

	cache := NewVectorCache()
	cache.Put("same", queryVector)

	mock.ExpectQuery("SELECT dc.chunk_id").WithArgs("same").
		WillReturnRows(chunkRows("same", "doc1", "Doc One"))

	results, err := retriever.RetrieveByText(context.Background(), "customer orders", embedder, cache)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].SimilarityScore, 1e-9)
}

func TestRetrieveByTextRequiresEmbedder(t *testing.T) {
	retriever, _, _ := newMockRetriever(t, 5, 0.5)

	_, err := retriever.RetrieveByText(context.Background(), "q", nil, NewVectorCache())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires an embedder")
}

func TestRetrieveByKeyword(t *testing.T) {
	retriever, _, mock := newMockRetriever(t, 5, 0.5)

	rows := sqlmock.NewRows([]string{"chunk_id", "doc_id", "text_ref", "title", "token_count"}).
		AddRow("c1", "doc1", "customer data overview", "Doc One", 64)
	mock.ExpectQuery(regexp.QuoteMeta("dc.text_ref LIKE ?")).
		WithArgs("%customer%", 5).
		WillReturnRows(rows)

	results, err := retriever.RetrieveByKeyword(context.Background(), []string{"customer"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.5, results[0].SimilarityScore)
	assert.Equal(t, "keyword", results[0].Metadata["search_method"])
}

func TestRerankFavorsDocumentDiversity(t *testing.T) {
	retriever, _, _ := newMockRetriever(t, 3, 0.5)

	results := []RetrievalResult{
		{ChunkID: "a1", DocID: "docA", SimilarityScore: 0.95},
		{ChunkID: "a2", DocID: "docA", SimilarityScore: 0.94},
		{ChunkID: "a3", DocID: "docA", SimilarityScore: 0.93},
		{ChunkID: "b1", DocID: "docB", SimilarityScore: 0.80},
		{ChunkID: "c1", DocID: "docC", SimilarityScore: 0.70},
	}

	reranked := retriever.Rerank(results)
	require.Len(t, reranked, 3)
	assert.Equal(t, "a1", reranked[0].ChunkID)
}

func TestSearchServesRepeatsFromCache(t *testing.T) {
	retriever, _, mock := newMockRetriever(t, 5, 0.99)

	embedder := NewPseudoEmbedder(8)
	queryVector, err := embedder.EmbedText("customer orders")
	require.NoError(t, err)

	vectors := NewVectorCache()
	vectors.Put("same", queryVector)

	// The chunk is hydrated once; the second search never reaches the database.
	mock.ExpectQuery("SELECT dc.chunk_id").WithArgs("same").
		WillReturnRows(chunkRows("same", "doc1", "Doc One"))

	cache := NewSearchCache(10)
	first, err := retriever.Search(context.Background(), "customer orders", embedder, vectors, cache)
	require.NoError(t, err)
	require.Equal(t, 1, first.TotalResults)

	second, err := retriever.Search(context.Background(), "customer orders", embedder, vectors, cache)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPseudoEmbedderIsDeterministic(t *testing.T) {
	embedder := NewPseudoEmbedder(0)
	assert.Equal(t, 384, embedder.Dimension())

	v1, err := embedder.EmbedText("same text")
	require.NoError(t, err)
	v2, err := embedder.EmbedText("same text")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 384)

	v3, err := embedder.EmbedText("different text")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v3)
}

func TestVectorCacheLoad(t *testing.T) {
	_, db, mock := newMockRetriever(t, 5, 0.5)

	rows := sqlmock.NewRows([]string{"chunk_id", "vector_ref"}).
		AddRow("c1", "ref/c1").
		AddRow("c2", "ref/c2")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT chunk_id, vector_ref FROM embedding LIMIT 1000")).
		WillReturnRows(rows)

	cache := NewVectorCache()
	err := cache.Load(context.Background(), db, NewPseudoEmbedder(8), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())
	assert.Len(t, cache.Vectors()["c1"], 8)
}

func TestSearchCacheFIFOEviction(t *testing.T) {
	cache := NewSearchCache(2)

	cache.Put("q1", &Context{Query: "q1"})
	cache.Put("q2", &Context{Query: "q2"})
	cache.Put("q3", &Context{Query: "q3"})

	assert.Nil(t, cache.Get("q1"))
	assert.NotNil(t, cache.Get("q2"))
	assert.NotNil(t, cache.Get("q3"))
	assert.Equal(t, 2, cache.Len())

	// Re-putting an existing key does not evict.
	cache.Put("q2", &Context{Query: "q2-updated"})
	assert.NotNil(t, cache.Get("q3"))
	assert.Equal(t, "q2-updated", cache.Get("q2").Query)

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
}

func TestContextToPrompt(t *testing.T) {
	retriever, _, _ := newMockRetriever(t, 5, 0.5)

	results := []RetrievalResult{
		{ChunkID: "c1", DocID: "doc1", Text: "[Doc One] 청크", SimilarityScore: 0.876},
	}
	context := retriever.BuildContext(results, "customer overview", nil)

	prompt := context.ToPrompt()
	assert.Contains(t, prompt, "Query: customer overview")
	assert.Contains(t, prompt, "Retrieved Context:")
	assert.Contains(t, prompt, "[1] (유사도: 87.6%)")
	assert.Contains(t, prompt, "Document: doc1")
	assert.Contains(t, prompt, strings.Repeat("=", 80))
}
