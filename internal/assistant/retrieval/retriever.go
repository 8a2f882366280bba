// Package retrieval fetches and filters candidate records from the vector
// search collaborator.
package retrieval

import (
	"context"
	"fmt"

	"github.com/Civiq-core-poc-v1/server/internal/assistant/model"
	errx "github.com/Civiq-core-poc-v1/server/internal/core/error"
	logx "github.com/Civiq-core-poc-v1/server/pkg/logger"
)

// Retriever runs similarity searches and deduplicates the raw hits. It
// overfetches so deduplication still leaves enough distinct records.
type Retriever struct {
	searcher VectorSearcher
	cfg      model.RetrievalConfig
}

// NewRetriever wires the vector-store collaborator.
func NewRetriever(searcher VectorSearcher, cfg model.RetrievalConfig) *Retriever {
	if cfg.OverfetchFactor < 2 {
		cfg.OverfetchFactor = 2
	}
	return &Retriever{searcher: searcher, cfg: cfg}
}

// SearchBusinesses returns up to limit distinct businesses in descending
// score order, deduplicated by normalized name plus address.
func (r *Retriever) SearchBusinesses(ctx context.Context, terms string, limit int) ([]model.ScoredBusiness, error) {
	hits, err := r.searcher.SimilaritySearch(ctx, r.cfg.BusinessCollection, terms, limit*r.cfg.OverfetchFactor)
	if err != nil {
		return nil, errx.WrapCollaborator(fmt.Errorf("business search: %w", err))
	}

	seen := map[string]struct{}{}
	out := make([]model.ScoredBusiness, 0, limit)
	for _, h := range hits {
		b := model.ScoredBusiness{
			ID:          h.ID,
			Name:        getString(h.Properties, "name"),
			Category:    getString(h.Properties, "category"),
			Subcategory: getString(h.Properties, "subcategory"),
			Address:     getString(h.Properties, "address"),
			Phone:       getString(h.Properties, "phone"),
			Description: getString(h.Properties, "description"),
			Score:       h.Score,
		}
		if b.Name == "" {
			continue
		}
		// Hits arrive in descending score order, so the first record
		// for a key is also the higher-scored one.
		key := b.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, b)
		if len(out) == limit {
			break
		}
	}
	logx.Debug().Int("hits", len(hits)).Int("kept", len(out)).Msg("business retrieval")
	return out, nil
}

// SearchDocuments returns up to limit distinct documents in descending score
// order, deduplicated by normalized title.
func (r *Retriever) SearchDocuments(ctx context.Context, terms string, limit int) ([]model.ScoredDocument, error) {
	hits, err := r.searcher.SimilaritySearch(ctx, r.cfg.DocumentCollection, terms, limit*r.cfg.OverfetchFactor)
	if err != nil {
		return nil, errx.WrapCollaborator(fmt.Errorf("document search: %w", err))
	}

	seen := map[string]struct{}{}
	out := make([]model.ScoredDocument, 0, limit)
	for _, h := range hits {
		d := model.ScoredDocument{
			ID:       h.ID,
			Title:    getString(h.Properties, "title"),
			Category: getString(h.Properties, "category"),
			Topic:    getString(h.Properties, "topic"),
			Content:  getString(h.Properties, "content"),
			Score:    h.Score,
		}
		if d.Title == "" {
			continue
		}
		key := d.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
		if len(out) == limit {
			break
		}
	}
	logx.Debug().Int("hits", len(hits)).Int("kept", len(out)).Msg("document retrieval")
	return out, nil
}
