package rag

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"

	"go.uber.org/zap"

	"github.com/datahubgov/govhub/internal/database"
)

// VectorCache holds chunk vectors in memory for brute-force similarity
// scans. The caller owns it and decides when to load or refresh.
type VectorCache struct {
	vectors map[string][]float64
}

func NewVectorCache() *VectorCache {
	return &VectorCache{vectors: make(map[string][]float64)}
}

// Put stores a vector under a chunk id.
func (c *VectorCache) Put(chunkID string, vector []float64) {
	c.vectors[chunkID] = vector
}

// Vectors exposes the underlying map for scanning.
func (c *VectorCache) Vectors() map[string][]float64 {
	return c.vectors
}

func (c *VectorCache) Len() int {
	return len(c.vectors)
}

// Load fills the cache from the embedding table, materializing each vector
// through the embedder. With no ids, at most 1000 rows are loaded.
func (c *VectorCache) Load(ctx context.Context, db database.Querier, embedder Embedder, chunkIDs []string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	query := "SELECT chunk_id, vector_ref FROM embedding LIMIT 1000"
	var args []interface{}
	if len(chunkIDs) > 0 {
		query = fmt.Sprintf("SELECT chunk_id, vector_ref FROM embedding WHERE chunk_id IN (%s)",
			database.Placeholders(len(chunkIDs)))
		args = make([]interface{}, len(chunkIDs))
		for i, id := range chunkIDs {
			args[i] = id
		}
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("load chunk vectors: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var chunkID, vectorRef string
		if err := rows.Scan(&chunkID, &vectorRef); err != nil {
			return fmt.Errorf("scan chunk vector: %w", err)
		}
		vector, err := embedder.EmbedText(vectorRef)
		if err != nil {
			return fmt.Errorf("materialize vector for chunk %s: %w", chunkID, err)
		}
		c.vectors[chunkID] = vector
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate chunk vectors: %w", err)
	}

	logger.Info("loaded chunk vectors", zap.Int("count", count))
	return nil
}

// PseudoEmbedder produces deterministic vectors seeded from the input text.
// A stand-in for a real embedding model; the same text always maps to the
// same vector.
type PseudoEmbedder struct {
	dim int
}

func NewPseudoEmbedder(dim int) *PseudoEmbedder {
	if dim <= 0 {
		dim = 384
	}
	return &PseudoEmbedder{dim: dim}
}

func (e *PseudoEmbedder) Dimension() int {
	return e.dim
}

func (e *PseudoEmbedder) EmbedText(text string) ([]float64, error) {
	h := fnv.New64a()
	if _, err := h.Write([]byte(text)); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vector := make([]float64, e.dim)
	for i := range vector {
		vector[i] = rng.NormFloat64()
	}
	return vector, nil
}

// SearchCache keeps recent query contexts with FIFO eviction.
type SearchCache struct {
	maxSize int
	entries map[string]*Context
	order   []string
}

func NewSearchCache(maxSize int) *SearchCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &SearchCache{
		maxSize: maxSize,
		entries: make(map[string]*Context),
	}
}

// Get returns the cached context for a query, or nil.
func (c *SearchCache) Get(query string) *Context {
	return c.entries[query]
}

// Put stores a context, evicting the oldest entry at capacity.
func (c *SearchCache) Put(query string, context *Context) {
	if _, exists := c.entries[query]; !exists && len(c.entries) >= c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	if _, exists := c.entries[query]; !exists {
		c.order = append(c.order, query)
	}
	c.entries[query] = context
}

// Clear drops every cached entry.
func (c *SearchCache) Clear() {
	c.entries = make(map[string]*Context)
	c.order = nil
}

func (c *SearchCache) Len() int {
	return len(c.entries)
}
