package model

import (
	"sort"
	"strings"
)

// CandidateKind distinguishes the two retrieval collections.
type CandidateKind string

const (
	CandidateKindBusiness CandidateKind = "business"
	CandidateKindDocument CandidateKind = "document"
)

// Business and document ids come from separate tables and may collide, so
// flattened candidate ids carry a kind prefix.
const (
	businessIDPrefix = "biz:"
	documentIDPrefix = "doc:"
)

// Candidate is a flattened retrieval result handed to the discriminator.
// IDs are stable within one retrieval batch only.
type Candidate struct {
	ID             string        `json:"id"`
	DisplayName    string        `json:"display_name"`
	Category       string        `json:"category,omitempty"`
	Subcategory    string        `json:"subcategory,omitempty"`
	Summary        string        `json:"summary,omitempty"`
	RetrievalScore float64       `json:"retrieval_score"`
	Kind           CandidateKind `json:"kind"`
}

// ScoredBusiness is one retrieved business record with its similarity score.
type ScoredBusiness struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category,omitempty"`
	Subcategory string  `json:"subcategory,omitempty"`
	Address     string  `json:"address,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	Description string  `json:"description,omitempty"`
	Score       float64 `json:"score"`
}

// ScoredDocument is one retrieved municipal document with its similarity score.
type ScoredDocument struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Category string  `json:"category,omitempty"`
	Topic    string  `json:"topic,omitempty"`
	Content  string  `json:"content,omitempty"`
	Score    float64 `json:"score"`
}

// RAGContext is the filtered candidate set for one query or sub-query.
// Built once, discarded after response assembly except for the single best
// entity, which seeds the session's EntityContext.
type RAGContext struct {
	Businesses []ScoredBusiness `json:"businesses,omitempty"`
	Documents  []ScoredDocument `json:"documents,omitempty"`
}

// NormalizeKey lowercases and collapses whitespace so near-identical records
// collide on the same dedup key.
func NormalizeKey(parts ...string) string {
	joined := strings.ToLower(strings.Join(parts, "|"))
	return strings.Join(strings.Fields(joined), " ")
}

// DedupKey identifies a business by normalized name plus address.
func (b ScoredBusiness) DedupKey() string {
	return NormalizeKey(b.Name, b.Address)
}

// DedupKey identifies a document by normalized title.
func (d ScoredDocument) DedupKey() string {
	return NormalizeKey(d.Title)
}

// Merge folds another context into this one, deduplicating by the same keys
// used at retrieval time and keeping the higher-scored record. Both slices
// stay in descending score order.
func (r *RAGContext) Merge(other *RAGContext) {
	if other == nil {
		return
	}
	bestB := map[string]ScoredBusiness{}
	for _, b := range append(r.Businesses, other.Businesses...) {
		k := b.DedupKey()
		if prev, ok := bestB[k]; !ok || b.Score > prev.Score {
			bestB[k] = b
		}
	}
	r.Businesses = r.Businesses[:0]
	for _, b := range bestB {
		r.Businesses = append(r.Businesses, b)
	}
	sort.SliceStable(r.Businesses, func(i, j int) bool {
		return r.Businesses[i].Score > r.Businesses[j].Score
	})

	bestD := map[string]ScoredDocument{}
	for _, d := range append(r.Documents, other.Documents...) {
		k := d.DedupKey()
		if prev, ok := bestD[k]; !ok || d.Score > prev.Score {
			bestD[k] = d
		}
	}
	r.Documents = r.Documents[:0]
	for _, d := range bestD {
		r.Documents = append(r.Documents, d)
	}
	sort.SliceStable(r.Documents, func(i, j int) bool {
		return r.Documents[i].Score > r.Documents[j].Score
	})
}

// Candidates flattens the context into discriminator input, preserving the
// descending score order within each kind.
func (r *RAGContext) Candidates() []Candidate {
	out := make([]Candidate, 0, len(r.Businesses)+len(r.Documents))
	for _, b := range r.Businesses {
		out = append(out, Candidate{
			ID:             businessIDPrefix + b.ID,
			DisplayName:    b.Name,
			Category:       b.Category,
			Subcategory:    b.Subcategory,
			Summary:        b.Address,
			RetrievalScore: b.Score,
			Kind:           CandidateKindBusiness,
		})
	}
	for _, d := range r.Documents {
		out = append(out, Candidate{
			ID:             documentIDPrefix + d.ID,
			DisplayName:    d.Title,
			Category:       d.Category,
			Subcategory:    d.Topic,
			Summary:        firstN(d.Content, 160),
			RetrievalScore: d.Score,
			Kind:           CandidateKindDocument,
		})
	}
	return out
}

// Keep filters the context down to the selected candidate ids, preserving
// the selection order. Ids are the kind-prefixed form produced by Candidates,
// so a business and a document sharing a raw id never select each other.
func (r *RAGContext) Keep(ids []string) *RAGContext {
	out := &RAGContext{}
	for _, id := range ids {
		if raw, ok := strings.CutPrefix(id, businessIDPrefix); ok {
			for _, b := range r.Businesses {
				if b.ID == raw {
					out.Businesses = append(out.Businesses, b)
				}
			}
			continue
		}
		if raw, ok := strings.CutPrefix(id, documentIDPrefix); ok {
			for _, d := range r.Documents {
				if d.ID == raw {
					out.Documents = append(out.Documents, d)
				}
			}
		}
	}
	return out
}

// SourceCount reports the total number of records backing an answer.
func (r *RAGContext) SourceCount() int {
	if r == nil {
		return 0
	}
	return len(r.Businesses) + len(r.Documents)
}

// AverageScore is the mean retrieval score across all records, zero when empty.
func (r *RAGContext) AverageScore() float64 {
	n := r.SourceCount()
	if n == 0 {
		return 0
	}
	var sum float64
	for _, b := range r.Businesses {
		sum += b.Score
	}
	for _, d := range r.Documents {
		sum += d.Score
	}
	return sum / float64(n)
}

// BestEntity picks the single highest-scoring record to seed the session's
// entity context, or nil when the context is empty.
func (r *RAGContext) BestEntity() *EntityContext {
	var best *EntityContext
	var bestScore float64
	for _, b := range r.Businesses {
		if best == nil || b.Score > bestScore {
			bestScore = b.Score
			best = &EntityContext{
				Type: EntityBusiness,
				Name: b.Name,
				Payload: map[string]any{
					"category":    b.Category,
					"address":     b.Address,
					"phone":       b.Phone,
					"description": b.Description,
				},
			}
		}
	}
	for _, d := range r.Documents {
		if best == nil || d.Score > bestScore {
			bestScore = d.Score
			best = &EntityContext{
				Type: EntityDocument,
				Name: d.Title,
				Payload: map[string]any{
					"category": d.Category,
					"topic":    d.Topic,
				},
			}
		}
	}
	return best
}

// EntityNames lists display names in score order, for turn bookkeeping.
func (r *RAGContext) EntityNames() []string {
	names := make([]string, 0, r.SourceCount())
	for _, b := range r.Businesses {
		names = append(names, b.Name)
	}
	for _, d := range r.Documents {
		names = append(names, d.Title)
	}
	return names
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
