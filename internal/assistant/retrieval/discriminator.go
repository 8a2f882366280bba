package retrieval

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/Civiq-core-poc-v1/server/internal/assistant/model"
	logx "github.com/Civiq-core-poc-v1/server/pkg/logger"
)

//go:embed template/discriminate_prompt.txt
var discriminateSystemPrompt string

// Ranking is the per-candidate relevance judgement.
type Ranking struct {
	ID        string  `json:"id"`
	Relevance float64 `json:"relevance"`
	Reason    string  `json:"reason,omitempty"`
}

// FilterResult is the discriminator's output: the surviving candidate ids in
// rank order plus the judgements behind them.
type FilterResult struct {
	FinalSelection []string
	Rankings       []Ranking
	Confidence     float64
	// Usage is set only when the LLM path actually ran.
	Usage *schema.TokenUsage
}

// exactMatchConfidence is reported by the deterministic shortcut.
const exactMatchConfidence = 0.95

// Discriminator removes retrieved candidates that merely share vocabulary
// with the query but not topic.
type Discriminator struct {
	llm        einomodel.BaseChatModel
	maxResults int
}

// NewDiscriminator wires the filtering chat model.
func NewDiscriminator(llm einomodel.BaseChatModel, maxResults int) *Discriminator {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &Discriminator{llm: llm, maxResults: maxResults}
}

// Filter ranks candidates against the intent. Exact-name lookups short-cut
// deterministically; everything else goes through the LLM with a top-score
// fallback on any failure.
func (d *Discriminator) Filter(ctx context.Context, originalQuery string, intent *model.StructuredIntent, candidates []model.Candidate) FilterResult {
	if len(candidates) == 0 {
		return FilterResult{}
	}

	// Deterministic shortcut for literal business lookups. Cheap, and it
	// avoids LLM false negatives on exact names.
	if intent != nil && intent.QueryScope == model.ScopeSpecificBusiness && intent.SpecificBusinessName != "" {
		if hit := matchBusinessName(intent.SpecificBusinessName, candidates); hit != nil {
			logx.Debug().Str("candidate", hit.DisplayName).Msg("exact-match shortcut selected candidate")
			return FilterResult{
				FinalSelection: []string{hit.ID},
				Rankings:       []Ranking{{ID: hit.ID, Relevance: exactMatchConfidence, Reason: "exact name match"}},
				Confidence:     exactMatchConfidence,
			}
		}
	}

	if d.llm == nil {
		return d.fallback(candidates)
	}

	resp, err := d.llm.Generate(ctx, []*schema.Message{
		schema.SystemMessage(strings.ReplaceAll(discriminateSystemPrompt, "{max_results}", strconv.Itoa(d.maxResults))),
		schema.UserMessage(buildFilterContext(originalQuery, intent, candidates)),
	})
	if err != nil {
		logx.Warn().Err(err).Msg("discriminator model unavailable, falling back to retrieval order")
		return d.fallback(candidates)
	}

	result, err := parseFilterResponse(resp.Content, candidates, d.maxResults)
	if err != nil {
		logx.Warn().Err(err).Msg("discriminator output unparsable, falling back to retrieval order")
		out := d.fallback(candidates)
		out.Usage = usageOf(resp)
		return out
	}
	result.Usage = usageOf(resp)
	return result
}

// matchBusinessName finds the first candidate whose name contains, or is
// contained by, the requested name (case-insensitive).
func matchBusinessName(wanted string, candidates []model.Candidate) *model.Candidate {
	w := strings.ToLower(strings.TrimSpace(wanted))
	for i := range candidates {
		if candidates[i].Kind != model.CandidateKindBusiness {
			continue
		}
		name := strings.ToLower(candidates[i].DisplayName)
		if strings.Contains(name, w) || strings.Contains(w, name) {
			return &candidates[i]
		}
	}
	return nil
}

// fallback keeps the top candidates by retrieval score, tagging each with
// its own score as confidence.
func (d *Discriminator) fallback(candidates []model.Candidate) FilterResult {
	n := d.maxResults
	if n > len(candidates) {
		n = len(candidates)
	}
	out := FilterResult{}
	var sum float64
	for _, c := range candidates[:n] {
		out.FinalSelection = append(out.FinalSelection, c.ID)
		out.Rankings = append(out.Rankings, Ranking{ID: c.ID, Relevance: c.RetrievalScore, Reason: "retrieval score fallback"})
		sum += c.RetrievalScore
	}
	if n > 0 {
		out.Confidence = sum / float64(n)
	}
	return out
}

func buildFilterContext(query string, intent *model.StructuredIntent, candidates []model.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", query)
	if intent != nil {
		fmt.Fprintf(&b, "Intent: %s\nQueryKind: %s\nCategoryHints: %s\n",
			intent.Intent, intent.QueryKind, strings.Join(intent.CategoryHints, ", "))
	}
	b.WriteString("Candidates:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. id=%s kind=%s name=%q category=%q score=%.2f summary=%q\n",
			i+1, c.ID, c.Kind, c.DisplayName, c.Category, c.RetrievalScore, c.Summary)
	}
	return b.String()
}

type filterWire struct {
	FinalSelection []string  `json:"final_selection"`
	Rankings       []Ranking `json:"rankings"`
}

func parseFilterResponse(content string, candidates []model.Candidate, maxResults int) (FilterResult, error) {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return FilterResult{}, fmt.Errorf("no JSON object in discriminator output")
	}

	var wire filterWire
	if err := json.Unmarshal([]byte(s[start:end+1]), &wire); err != nil {
		return FilterResult{}, err
	}

	known := map[string]float64{}
	for _, c := range candidates {
		known[c.ID] = c.RetrievalScore
	}
	relevance := map[string]float64{}
	for _, r := range wire.Rankings {
		relevance[r.ID] = r.Relevance
	}

	out := FilterResult{Rankings: wire.Rankings}
	var sum float64
	for _, id := range wire.FinalSelection {
		score, ok := known[id]
		if !ok {
			// hallucinated id
			continue
		}
		out.FinalSelection = append(out.FinalSelection, id)
		if rel, ok := relevance[id]; ok && rel > 0 {
			sum += rel
		} else {
			sum += score
		}
		if len(out.FinalSelection) == maxResults {
			break
		}
	}
	if n := len(out.FinalSelection); n > 0 {
		out.Confidence = sum / float64(n)
	}
	return out, nil
}

func usageOf(resp *schema.Message) *schema.TokenUsage {
	if resp == nil || resp.ResponseMeta == nil {
		return nil
	}
	return resp.ResponseMeta.Usage
}
