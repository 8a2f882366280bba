package retrieval

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	logx "github.com/Civiq-core-poc-v1/server/pkg/logger"
)

// PgvectorSearcher backs the vector collaborator with PostgreSQL/pgvector.
// Each logical collection is a table (id text, properties jsonb,
// embedding vector) with a cosine index.
type PgvectorSearcher struct {
	db       *sqlx.DB
	embedder Embedder
	// collection name -> table name; also serves as the whitelist since
	// collection names end up interpolated into SQL.
	tables map[string]string
}

// NewPgvectorSearcher maps the logical collections onto their tables.
func NewPgvectorSearcher(db *sqlx.DB, embedder Embedder, tables map[string]string) *PgvectorSearcher {
	return &PgvectorSearcher{db: db, embedder: embedder, tables: tables}
}

type hitRow struct {
	ID         string  `db:"id"`
	Properties []byte  `db:"properties"`
	Score      float64 `db:"score"`
}

// SimilaritySearch embeds the query text and runs a cosine-distance scan,
// returning hits in descending score order.
func (s *PgvectorSearcher) SimilaritySearch(ctx context.Context, collection, queryText string, limit int) ([]Hit, error) {
	table, ok := s.tables[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}

	embedding, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, properties, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, table)

	var rows []hitRow
	if err := s.db.SelectContext(ctx, &rows, query, pgvector.NewVector(embedding), limit); err != nil {
		return nil, fmt.Errorf("similarity search on %s: %w", table, err)
	}

	hits := make([]Hit, 0, len(rows))
	for _, row := range rows {
		props := map[string]any{}
		if len(row.Properties) > 0 {
			if err := json.Unmarshal(row.Properties, &props); err != nil {
				logx.Warn().Err(err).Str("id", row.ID).Msg("skipping record with unreadable properties")
				continue
			}
		}
		hits = append(hits, Hit{ID: row.ID, Properties: props, Score: row.Score})
	}
	return hits, nil
}

var _ VectorSearcher = (*PgvectorSearcher)(nil)
