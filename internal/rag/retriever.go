package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/datahubgov/govhub/internal/database"
)

// RetrievalResult is one retrieved document chunk.
type RetrievalResult struct {
	ChunkID         string                 `json:"chunk_id"`
	DocID           string                 `json:"doc_id"`
	Text            string                 `json:"text"`
	SimilarityScore float64                `json:"similarity_score"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// Context bundles retrieval results for prompt assembly.
type Context struct {
	Query           string            `json:"query"`
	QueryVector     []float64         `json:"query_vector,omitempty"`
	RetrievedChunks []RetrievalResult `json:"retrieved_chunks"`
	TotalResults    int               `json:"total_results"`
	RetrievedAt     time.Time         `json:"retrieved_at"`
}

// ToPrompt renders the retrieved chunks as an LLM context block.
func (c *Context) ToPrompt() string {
	separator := strings.Repeat("=", 80)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\n\n", c.Query)
	sb.WriteString("Retrieved Context:\n")
	sb.WriteString(separator + "\n")

	for i, result := range c.RetrievedChunks {
		fmt.Fprintf(&sb, "\n[%d] (유사도: %.1f%%)\n", i+1, result.SimilarityScore*100)
		fmt.Fprintf(&sb, "Document: %s\n", result.DocID)
		fmt.Fprintf(&sb, "Chunk: %s\n", result.ChunkID)
		fmt.Fprintf(&sb, "---\n%s\n", result.Text)
	}

	sb.WriteString("\n" + separator + "\n")
	return sb.String()
}

// Embedder turns text into a fixed-dimension vector. Model loading stays
// outside this package.
type Embedder interface {
	EmbedText(text string) ([]float64, error)
	Dimension() int
}

// Retriever answers similarity and keyword searches over the document
// chunk tables. Vector search scans a caller-provided VectorCache.
type Retriever struct {
	db                  database.Querier
	topK                int
	similarityThreshold float64
	log                 *zap.Logger
}

func NewRetriever(db database.Querier, topK int, similarityThreshold float64, logger *zap.Logger) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		db:                  db,
		topK:                topK,
		similarityThreshold: similarityThreshold,
		log:                 logger,
	}
}

// EnsureSchema creates the document, chunk and embedding tables if absent.
func (r *Retriever) EnsureSchema(ctx context.Context) error {
	documentBody := `
		doc_id VARCHAR(128) NOT NULL PRIMARY KEY,
		title VARCHAR(512) NOT NULL,
		source_ref VARCHAR(1024),
		created_date {DATETIME}`
	if err := r.db.CreateTable(ctx, "document", documentBody); err != nil {
		return fmt.Errorf("ensure document schema: %w", err)
	}

	chunkBody := `
		chunk_id VARCHAR(128) NOT NULL PRIMARY KEY,
		doc_id VARCHAR(128) NOT NULL,
		text_ref {TEXT},
		token_count INT`
	if err := r.db.CreateTable(ctx, "doc_chunk", chunkBody); err != nil {
		return fmt.Errorf("ensure doc_chunk schema: %w", err)
	}

	embeddingBody := `
		chunk_id VARCHAR(128) NOT NULL PRIMARY KEY,
		vector_ref VARCHAR(1024)`
	if err := r.db.CreateTable(ctx, "embedding", embeddingBody); err != nil {
		return fmt.Errorf("ensure embedding schema: %w", err)
	}
	return nil
}

// cosineSimilarity returns 0 for zero-norm vectors instead of NaN.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RetrieveByVector scans the cache for chunks above the similarity
// threshold, keeps the top K, and hydrates each from the chunk tables.
func (r *Retriever) RetrieveByVector(ctx context.Context, queryVector []float64, cache *VectorCache) ([]RetrievalResult, error) {
	type scored struct {
		chunkID    string
		similarity float64
	}

	var candidates []scored
	for chunkID, vec := range cache.Vectors() {
		similarity := cosineSimilarity(queryVector, vec)
		if similarity >= r.similarityThreshold {
			candidates = append(candidates, scored{chunkID: chunkID, similarity: similarity})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].similarity != candidates[j].similarity {
			return candidates[i].similarity > candidates[j].similarity
		}
		return candidates[i].chunkID < candidates[j].chunkID
	})
	if len(candidates) > r.topK {
		candidates = candidates[:r.topK]
	}

	results := make([]RetrievalResult, 0, len(candidates))
	for _, c := range candidates {
		result, err := r.hydrateChunk(ctx, c.chunkID, c.similarity)
		if err != nil {
			return nil, err
		}
		if result != nil {
			results = append(results, *result)
		}
	}
	return results, nil
}

func (r *Retriever) hydrateChunk(ctx context.Context, chunkID string, similarity float64) (*RetrievalResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT dc.chunk_id, dc.doc_id, dc.text_ref, d.title, dc.token_count
		FROM doc_chunk dc
		JOIN document d ON dc.doc_id = d.doc_id
		WHERE dc.chunk_id = ?`, chunkID)
	if err != nil {
		return nil, fmt.Errorf("hydrate chunk %s: %w", chunkID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("hydrate chunk %s: %w", chunkID, err)
		}
		r.log.Warn("cached vector has no chunk row", zap.String("chunk_id", chunkID))
		return nil, nil
	}

	var (
		result     RetrievalResult
		textRef    string
		title      string
		tokenCount int
	)
	if err := rows.Scan(&result.ChunkID, &result.DocID, &textRef, &title, &tokenCount); err != nil {
		return nil, fmt.Errorf("scan chunk %s: %w", chunkID, err)
	}
	result.Text = fmt.Sprintf("[%s] 청크", title)
	result.SimilarityScore = similarity
	result.Metadata = map[string]interface{}{
		"token_count": tokenCount,
		"title":       title,
		"source_ref":  textRef,
	}
	return &result, nil
}

// RetrieveByText embeds the query and performs a vector search.
func (r *Retriever) RetrieveByText(ctx context.Context, queryText string, embedder Embedder, cache *VectorCache) ([]RetrievalResult, error) {
	if embedder == nil {
		return nil, fmt.Errorf("text retrieval requires an embedder")
	}
	queryVector, err := embedder.EmbedText(queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return r.RetrieveByVector(ctx, queryVector, cache)
}

// RetrieveByKeyword matches chunks whose text contains any keyword. Keyword
// hits carry a fixed mid-range similarity.
func (r *Retriever) RetrieveByKeyword(ctx context.Context, keywords []string) ([]RetrievalResult, error) {
	if len(keywords) == 0 {
		return nil, fmt.Errorf("keyword retrieval requires at least one keyword")
	}

	clauses := make([]string, len(keywords))
	args := make([]interface{}, 0, len(keywords)+1)
	for i, kw := range keywords {
		clauses[i] = "dc.text_ref LIKE ?"
		args = append(args, "%"+kw+"%")
	}
	args = append(args, r.topK)

	query := fmt.Sprintf(`
		SELECT dc.chunk_id, dc.doc_id, dc.text_ref, d.title, dc.token_count
		FROM doc_chunk dc
		JOIN document d ON dc.doc_id = d.doc_id
		WHERE %s
		LIMIT ?`, strings.Join(clauses, " OR "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var results []RetrievalResult
	for rows.Next() {
		var (
			result     RetrievalResult
			textRef    string
			title      string
			tokenCount int
		)
		if err := rows.Scan(&result.ChunkID, &result.DocID, &textRef, &title, &tokenCount); err != nil {
			return nil, fmt.Errorf("scan keyword result: %w", err)
		}
		result.Text = fmt.Sprintf("[%s] 청크", title)
		result.SimilarityScore = 0.5
		result.Metadata = map[string]interface{}{
			"token_count":   tokenCount,
			"title":         title,
			"source_ref":    textRef,
			"search_method": "keyword",
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keyword results: %w", err)
	}
	return results, nil
}

// BuildContext wraps results into a Context.
func (r *Retriever) BuildContext(results []RetrievalResult, query string, queryVector []float64) *Context {
	return &Context{
		Query:           query,
		QueryVector:     queryVector,
		RetrievedChunks: results,
		TotalResults:    len(results),
		RetrievedAt:     time.Now().UTC(),
	}
}

// Search embeds the query, ranks chunks with diversity reranking, and wraps
// the results in a Context. Repeated queries are answered from the search
// cache when one is provided.
func (r *Retriever) Search(ctx context.Context, queryText string, embedder Embedder, vectors *VectorCache, cache *SearchCache) (*Context, error) {
	if cache != nil {
		if cached := cache.Get(queryText); cached != nil {
			r.log.Debug("search cache hit", zap.String("query", queryText))
			return cached, nil
		}
	}

	results, err := r.RetrieveByText(ctx, queryText, embedder, vectors)
	if err != nil {
		return nil, err
	}
	results = r.Rerank(results)

	searchContext := r.BuildContext(results, queryText, nil)
	if cache != nil {
		cache.Put(queryText, searchContext)
	}
	return searchContext, nil
}

// Rerank reorders results to favor document diversity: after the first three
// documents are represented, later chunks from already-seen documents are
// dropped. Returns at most top K results.
func (r *Retriever) Rerank(results []RetrievalResult) []RetrievalResult {
	if len(results) == 0 {
		return results
	}

	sorted := make([]RetrievalResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SimilarityScore > sorted[j].SimilarityScore
	})

	var reranked []RetrievalResult
	selectedDocs := make(map[string]bool)
	for _, result := range sorted {
		if !selectedDocs[result.DocID] || len(selectedDocs) < 3 {
			reranked = append(reranked, result)
			selectedDocs[result.DocID] = true
			if len(reranked) >= r.topK {
				break
			}
		}
	}
	return reranked
}
