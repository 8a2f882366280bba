package retrieval

import "context"

// Hit is one similarity-search result with its schema-free property map.
type Hit struct {
	ID         string
	Properties map[string]any
	Score      float64
}

// VectorSearcher is the external vector-store collaborator. Implementations
// must support at least the business and document collections and return
// hits in descending score order.
type VectorSearcher interface {
	SimilaritySearch(ctx context.Context, collection, queryText string, limit int) ([]Hit, error)
}

// Embedder converts query text into the vector used for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

func getString(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}
