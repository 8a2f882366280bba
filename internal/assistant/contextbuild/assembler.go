// Package contextbuild turns a filtered candidate set into the bounded text
// context handed to the answer model. Documents get query-aware score
// adjustment and, when oversized, keyword-ranked chunking.
package contextbuild

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Civiq-core-poc-v1/server/internal/assistant/links"
	"github.com/Civiq-core-poc-v1/server/internal/assistant/model"
	logx "github.com/Civiq-core-poc-v1/server/pkg/logger"
)

var feeQueryRe = regexp.MustCompile(`(?i)\b(cost|fee|price|charge|rate)s?\b|\bhow much\b`)

// Title vocabulary is matched on word boundaries so "Maintenance" never
// reads as "main" and "coffee" never reads as "fee".
var (
	consolidatedTitleRe = regexp.MustCompile(`(?i)\b(consolidated|main)\b`)
	amendmentTitleRe    = regexp.MustCompile(`(?i)\bamendment\b`)
	feeDocRe            = regexp.MustCompile(`(?i)\bfees?\b`)
)

// Multipliers applied to document scores on fee queries. Complete fee
// schedules live in consolidated bylaws; amendments usually change one
// clause and omit the schedule entirely.
const (
	topicMatchBoost    = 2.0
	consolidatedBoost  = 1.4
	currencyBoost      = 1.3
	amendmentPenalty   = 0.6
	offTopicFeePenalty = 0.5
)

// topicTriggers maps fee-query vocabulary to the bylaw topic that owns the
// fee schedule. First match wins.
var topicTriggers = []struct {
	topic    string
	triggers []string
}{
	{"animal control", []string{"dog", "cat", "pet", "animal", "kennel"}},
	{"business licence", []string{"business licence", "business license"}},
	{"parking", []string{"parking", "trailer"}},
	{"noise", []string{"noise"}},
	{"water", []string{"water", "utility"}},
	{"property tax", []string{"property tax", "tax rate"}},
	{"recreation", []string{"pool", "swim", "aquatic", "recreation", "arena"}},
	{"building", []string{"building permit", "renovation", "construction"}},
}

// IsFeeQuery reports whether a query is asking about cost or pricing.
func IsFeeQuery(query string) bool {
	return feeQueryRe.MatchString(query)
}

func impliedTopic(query string) string {
	lower := strings.ToLower(query)
	for _, t := range topicTriggers {
		for _, trig := range t.triggers {
			if strings.Contains(lower, trig) {
				return t.topic
			}
		}
	}
	return ""
}

// Assembler builds the generation context from a RAG context.
type Assembler struct {
	cfg model.AssemblyConfig
}

func NewAssembler(cfg model.AssemblyConfig) *Assembler {
	if cfg.FullTextBudget <= 0 {
		cfg.FullTextBudget = 40000
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 2000
	}
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = 3
	}
	return &Assembler{cfg: cfg}
}

// AdjustFeeScores applies the fee-query multipliers and returns the documents
// re-sorted by adjusted score. The input slice is not modified.
func AdjustFeeScores(docs []model.ScoredDocument, query string) []model.ScoredDocument {
	topic := impliedTopic(query)
	out := make([]model.ScoredDocument, len(docs))
	copy(out, docs)
	for i := range out {
		title := strings.ToLower(out[i].Title)
		docTopic := strings.ToLower(out[i].Topic)
		hasCurrency := currencyMarkerRe.MatchString(out[i].Content)

		mult := 1.0
		if topic != "" && docTopic == topic {
			mult *= topicMatchBoost
		}
		if consolidatedTitleRe.MatchString(title) {
			mult *= consolidatedBoost
		}
		if hasCurrency {
			mult *= currencyBoost
		}
		if amendmentTitleRe.MatchString(title) && !hasCurrency {
			mult *= amendmentPenalty
		}
		if isSpecializedFeeDoc(title, docTopic) && topic != "" && docTopic != topic {
			mult *= offTopicFeePenalty
		}
		out[i].Score *= mult
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// isSpecializedFeeDoc marks documents that exist only to publish one fee
// schedule, which score well on any cost query regardless of topic.
func isSpecializedFeeDoc(title, topic string) bool {
	return feeDocRe.MatchString(title) || feeDocRe.MatchString(topic)
}

// Assemble renders the context string for the answer model and returns the
// context with document scores adjusted for the query. Blocks appear in
// descending score order. Output is deterministic for a given input.
func (a *Assembler) Assemble(rag *model.RAGContext, query string) (string, *model.RAGContext) {
	if rag == nil || rag.SourceCount() == 0 {
		return "", rag
	}

	adjusted := &model.RAGContext{Businesses: rag.Businesses, Documents: rag.Documents}
	feeQuery := IsFeeQuery(query)
	if feeQuery {
		adjusted.Documents = AdjustFeeScores(rag.Documents, query)
	}

	type block struct {
		score float64
		text  string
	}
	blocks := make([]block, 0, adjusted.SourceCount())
	for _, b := range adjusted.Businesses {
		blocks = append(blocks, block{score: b.Score, text: renderBusiness(b)})
	}
	for _, d := range adjusted.Documents {
		blocks = append(blocks, block{score: d.Score, text: a.renderDocument(d, query, feeQuery)})
	}
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].score > blocks[j].score
	})

	var sb strings.Builder
	for i, bl := range blocks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(bl.text)
	}
	logx.Debug().
		Int("blocks", len(blocks)).
		Int("chars", sb.Len()).
		Bool("fee_query", feeQuery).
		Msg("assembled generation context")
	return sb.String(), adjusted
}

func renderBusiness(b model.ScoredBusiness) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[Business] %s\n", b.Name)
	if b.Category != "" {
		cat := b.Category
		if b.Subcategory != "" {
			cat += " / " + b.Subcategory
		}
		fmt.Fprintf(&sb, "Category: %s\n", cat)
	}
	if b.Address != "" {
		fmt.Fprintf(&sb, "Address: %s\n", b.Address)
	}
	if b.Phone != "" {
		fmt.Fprintf(&sb, "Phone: %s\n", b.Phone)
	}
	if b.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", b.Description)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (a *Assembler) renderDocument(d model.ScoredDocument, query string, feeQuery bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[Document] %s\n", d.Title)
	if d.Category != "" {
		cat := d.Category
		if d.Topic != "" {
			cat += " (" + d.Topic + ")"
		}
		fmt.Fprintf(&sb, "Category: %s\n", cat)
	}
	if url, ok := links.Resolve(d.Title); ok {
		fmt.Fprintf(&sb, "Official source: %s\n", url)
	}
	sb.WriteString("Content:\n")
	sb.WriteString(a.selectContent(d, query, feeQuery))
	return sb.String()
}

// selectContent decides between full text and chunking. Fee queries keep the
// full text whenever the document fits the budget or carries pricing, so no
// tier of a fee schedule is truncated away.
func (a *Assembler) selectContent(d model.ScoredDocument, query string, feeQuery bool) string {
	text := strings.TrimSpace(d.Content)
	if len(text) <= a.cfg.FullTextBudget {
		return text
	}
	if feeQuery && currencyMarkerRe.MatchString(text) {
		return text
	}
	return selectChunks(text, query, a.cfg.ChunkSize, a.cfg.MaxChunks)
}
