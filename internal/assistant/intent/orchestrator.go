// Package intent decomposes raw user utterances into structured intents.
// Cheap deterministic detectors run first in a fixed priority order; only
// queries none of them claim reach the LLM decomposition step. The package
// never hard-fails: any collaborator problem degrades to a keyword split.
package intent

import (
	"context"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/Civiq-core-poc-v1/server/internal/assistant/classify"
	"github.com/Civiq-core-poc-v1/server/internal/assistant/model"
	logx "github.com/Civiq-core-poc-v1/server/pkg/logger"
)

// Decomposer turns one raw query plus a session snapshot into a
// StructuredIntent.
type Decomposer struct {
	llm          einomodel.BaseChatModel
	heur         Heuristics
	historyTurns int
}

// NewDecomposer wires the decomposition chat model and detector word lists.
// A nil llm is allowed; every query then takes the keyword fallback.
func NewDecomposer(llm einomodel.BaseChatModel, heur Heuristics, cfg model.DecomposeModelConfig) *Decomposer {
	return &Decomposer{llm: llm, heur: heur, historyTurns: cfg.HistoryTurns}
}

// Decompose runs the detector chain and, when nothing claims the query, the
// LLM decomposition. Token usage of the LLM call is returned for cost
// accounting; it is nil on detector hits and fallbacks.
func (d *Decomposer) Decompose(ctx context.Context, query string, depth int, snap model.SessionSnapshot) (*model.StructuredIntent, *schema.TokenUsage) {
	cls := classify.Classify(query)
	topic := ExtractTopic(query)

	in := detectorInput{
		Query:    query,
		Lower:    strings.ToLower(query),
		Snapshot: snap,
		Heur:     d.heur,
	}
	for _, det := range orderedDetectors {
		if hit := det(in); hit != nil {
			d.finalize(hit, query, topic, cls, depth)
			logx.Debug().
				Str("query_kind", string(hit.QueryKind)).
				Bool("needs_clarification", hit.NeedsClarification).
				Msg("detector claimed query")
			return hit, nil
		}
	}

	if d.llm == nil {
		return d.fallback(query, topic, cls, depth), nil
	}

	systemPrompt, err := RenderDecomposeSystem(ctx)
	if err != nil {
		logx.Error().Err(err).Msg("render decompose system prompt")
		return d.fallback(query, topic, cls, depth), nil
	}

	resp, err := d.llm.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(BuildDecomposeContext(snap, query, d.historyTurns)),
	})
	if err != nil {
		logx.Warn().Err(err).Msg("decomposition model unavailable, using keyword fallback")
		return d.fallback(query, topic, cls, depth), nil
	}

	parsed, err := ParseDecomposition(resp.Content, query)
	if err != nil {
		logx.Warn().Err(err).Msg("decomposition output unparsable, using keyword fallback")
		return d.fallback(query, topic, cls, depth), d.usage(resp)
	}

	d.finalize(parsed, query, topic, cls, depth)
	return parsed, d.usage(resp)
}

func (d *Decomposer) usage(resp *schema.Message) *schema.TokenUsage {
	if resp == nil || resp.ResponseMeta == nil {
		return nil
	}
	return resp.ResponseMeta.Usage
}

// finalize applies the decorations shared by every path: canonical topic,
// classifier category hints and the sub-question depth cap.
func (d *Decomposer) finalize(out *model.StructuredIntent, query, topic string, cls classify.Result, depth int) {
	if out.Topic == "" {
		out.Topic = topic
	}
	if len(out.CategoryHints) == 0 && cls.Category != classify.CategoryGeneral {
		out.CategoryHints = []string{cls.Category}
		if cls.Subcategory != "" {
			out.CategoryHints = append(out.CategoryHints, cls.Subcategory)
		}
	}
	if len(out.Keywords) == 0 {
		out.Keywords = tokenizeKeywords(query)
	}
	// Sub-questions must not themselves fan out.
	if depth > 0 {
		out.IsMultiQuestion = false
		out.SubQuestions = nil
	}
}

// fallback is the pure keyword split used whenever the LLM path is
// unavailable or unusable.
func (d *Decomposer) fallback(query, topic string, cls classify.Result, depth int) *model.StructuredIntent {
	out := &model.StructuredIntent{
		Keywords:            tokenizeKeywords(query),
		Intent:              "answer municipal question",
		QueryKind:           kindForCategory(cls.Category),
		ConversationContext: model.FlowNewTopic,
		QueryScope:          model.ScopeGeneralCategory,
	}
	out.SearchTerms = strings.Join(out.Keywords, " ")
	if out.SearchTerms == "" {
		out.SearchTerms = strings.TrimSpace(query)
	}
	if subs := splitQuestions(query); len(subs) > 1 && depth == 0 {
		out.IsMultiQuestion = true
		out.SubQuestions = subs
	}
	d.finalize(out, query, topic, cls, depth)
	return out
}

func kindForCategory(category string) model.QueryKind {
	switch category {
	case classify.CategoryBylaw:
		return model.KindBylaw
	case classify.CategoryTax:
		return model.KindFinancial
	case classify.CategoryRecreation:
		return model.KindRecreation
	default:
		return model.KindMunicipalProcedure
	}
}

// splitQuestions breaks an utterance with several question marks into its
// independent asks, capped at three.
func splitQuestions(query string) []string {
	parts := strings.Split(query, "?")
	var subs []string
	for _, p := range parts {
		p = strings.TrimSpace(strings.TrimLeft(p, ".!, "))
		if len(p) >= 10 {
			subs = append(subs, p+"?")
		}
		if len(subs) == maxSubQuestions {
			break
		}
	}
	return subs
}
