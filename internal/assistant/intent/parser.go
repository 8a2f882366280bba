package intent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Civiq-core-poc-v1/server/internal/assistant/model"
	errx "github.com/Civiq-core-poc-v1/server/internal/core/error"
	logx "github.com/Civiq-core-poc-v1/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen   = 64 * 1024 // 64KB
	maxKeywords     = 12
	maxSubQuestions = 3
)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "what": {},
	"whats": {}, "how": {}, "much": {}, "many": {}, "where": {}, "when": {},
	"who": {}, "why": {}, "which": {}, "can": {}, "could": {}, "will": {},
	"would": {}, "do": {}, "does": {}, "did": {}, "for": {}, "from": {},
	"with": {}, "about": {}, "this": {}, "that": {}, "there": {}, "have": {},
	"need": {}, "want": {}, "please": {}, "tell": {}, "find": {}, "your": {},
	"their": {}, "them": {}, "they": {}, "and": {}, "or": {}, "of": {},
	"to": {}, "in": {}, "on": {}, "at": {}, "it": {}, "its": {}, "my": {},
	"me": {}, "you": {}, "i": {},
}

func isStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}

// tokenizeKeywords splits a query into lowercase content words, dropping
// stop words and punctuation.
func tokenizeKeywords(q string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(q)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if w == "" || isStopWord(w) {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
		if len(out) >= maxKeywords {
			break
		}
	}
	return out
}

// decompositionWire mirrors the JSON schema the decomposition prompt demands.
type decompositionWire struct {
	Keywords             []string `json:"keywords"`
	Intent               string   `json:"intent"`
	QueryKind            string   `json:"query_kind"`
	SearchTerms          string   `json:"search_terms"`
	CategoryHints        []string `json:"category_hints"`
	ConversationContext  string   `json:"conversation_context"`
	QueryScope           string   `json:"query_scope"`
	SpecificBusinessName string   `json:"specific_business_name"`
	IsMultiQuestion      bool     `json:"is_multi_question"`
	SubQuestions         []string `json:"sub_questions"`
}

var validKinds = map[string]model.QueryKind{
	string(model.KindBusinessDirectory):  model.KindBusinessDirectory,
	string(model.KindBylaw):              model.KindBylaw,
	string(model.KindFinancial):          model.KindFinancial,
	string(model.KindServiceInquiry):     model.KindServiceInquiry,
	string(model.KindClarificationNeed):  model.KindClarificationNeed,
	string(model.KindMunicipalProcedure): model.KindMunicipalProcedure,
	string(model.KindRecreation):         model.KindRecreation,
}

var validFlows = map[string]model.ConversationFlow{
	string(model.FlowNewTopic):      model.FlowNewTopic,
	string(model.FlowFollowup):      model.FlowFollowup,
	string(model.FlowClarification): model.FlowClarification,
}

var validScopes = map[string]model.QueryScope{
	string(model.ScopeSpecificBusiness): model.ScopeSpecificBusiness,
	string(model.ScopeGeneralCategory):  model.ScopeGeneralCategory,
	string(model.ScopeInformation):      model.ScopeInformation,
}

// ParseDecomposition validates the model's JSON decomposition and maps it
// into a StructuredIntent, defaulting every unparsable field to safe values.
// A completely unusable payload returns ErrMalformedStructuredOutput so the
// caller can fall back to the keyword split.
func ParseDecomposition(content, query string) (*model.StructuredIntent, error) {
	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "intent_parser").
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
	}

	raw := extractJSONObject(content)
	if raw == "" {
		return nil, errx.New(
			fmt.Errorf("%w: no JSON object in model output", errx.ErrMalformedStructuredOutput),
			502, errx.SystemErrorMessage)
	}

	var wire decompositionWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, errx.New(
			fmt.Errorf("%w: %w", errx.ErrMalformedStructuredOutput, err),
			502, errx.SystemErrorMessage)
	}

	out := &model.StructuredIntent{
		Intent:               strings.TrimSpace(wire.Intent),
		SearchTerms:          strings.TrimSpace(wire.SearchTerms),
		CategoryHints:        trimAll(wire.CategoryHints),
		SpecificBusinessName: strings.TrimSpace(wire.SpecificBusinessName),
	}

	for _, k := range wire.Keywords {
		if k = strings.TrimSpace(strings.ToLower(k)); k != "" && len(out.Keywords) < maxKeywords {
			out.Keywords = append(out.Keywords, k)
		}
	}
	if len(out.Keywords) == 0 {
		out.Keywords = tokenizeKeywords(query)
	}
	if out.SearchTerms == "" {
		out.SearchTerms = strings.Join(out.Keywords, " ")
	}

	var ok bool
	if out.QueryKind, ok = validKinds[strings.TrimSpace(wire.QueryKind)]; !ok {
		out.QueryKind = model.KindMunicipalProcedure
	}
	if out.ConversationContext, ok = validFlows[strings.TrimSpace(wire.ConversationContext)]; !ok {
		out.ConversationContext = model.FlowNewTopic
	}
	if out.QueryScope, ok = validScopes[strings.TrimSpace(wire.QueryScope)]; !ok {
		out.QueryScope = model.ScopeGeneralCategory
	}

	if wire.IsMultiQuestion {
		subs := trimAll(wire.SubQuestions)
		if len(subs) > maxSubQuestions {
			subs = subs[:maxSubQuestions]
		}
		// A single sub-question is just the question itself.
		if len(subs) > 1 {
			out.IsMultiQuestion = true
			out.SubQuestions = subs
		}
	}

	return out, nil
}

// extractJSONObject strips markdown fences and returns the outermost JSON
// object, tolerating prose around it.
func extractJSONObject(content string) string {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
