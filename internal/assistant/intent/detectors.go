package intent

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/Civiq-core-poc-v1/server/internal/assistant/model"
)

// Heuristics carries the parsed detector word lists. The lists come from
// configuration so they can be maintained without a rebuild.
type Heuristics struct {
	ServiceTerms []string
	PriceWords   []string
	VagueOpeners []string
	VagueMaxLen  int

	costRe *regexp.Regexp
}

// NewHeuristics splits the comma-separated envconfig values and builds the
// cost-question pattern from the configured price words.
func NewHeuristics(cfg model.HeuristicsConfig) Heuristics {
	h := Heuristics{
		ServiceTerms: splitCSV(cfg.ServiceAttributeTerms),
		PriceWords:   splitCSV(cfg.PriceWords),
		VagueOpeners: splitCSV(cfg.VagueOpeners),
		VagueMaxLen:  cfg.VagueMaxLen,
	}
	words := strings.Join(h.PriceWords, "|")
	if words == "" {
		words = "cost|price|fee"
	}
	h.costRe = regexp.MustCompile(`(?i)\bhow much\b|\bwhat(?:'s| is) the (` + words + `)\b`)
	return h
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// detectorInput bundles everything one detector may inspect.
type detectorInput struct {
	Query    string
	Lower    string
	Snapshot model.SessionSnapshot
	Heur     Heuristics
}

// detector inspects one query against the session snapshot and either
// claims it by returning a full intent or passes with nil. Detectors are
// pure; evaluation order is the priority order.
type detector func(in detectorInput) *model.StructuredIntent

// orderedDetectors is the fixed priority list. First match wins.
var orderedDetectors = []detector{
	detectVagueQuery,
	detectServiceAttribute,
	detectCostFollowup,
	detectPronounReference,
}

var (
	pronounRe     = regexp.MustCompile(`(?i)\b(them|they|it|their|its)\b`)
	serviceVerbRe = regexp.MustCompile(`(?i)^\s*(do|does|can|could|will|would|did)\b`)
	articleNounRe = regexp.MustCompile(`(?i)\b(the|a|an)\s+[a-z]{3,}`)
)

// serviceNouns are entity markers that make a short query specific enough to
// escape the vague-query guard.
var serviceNouns = []string{
	"pool", "arena", "rink", "library", "landfill", "dump", "permit",
	"license", "licence", "bylaw", "tax", "garbage", "recycling",
	"city hall", "town office", "water", "sewer",
}

// detectVagueQuery rejects very short interrogative-only utterances that name
// no entity at all. The pipeline asks the user to restate instead of guessing
// a popular business as a fallback.
func detectVagueQuery(in detectorInput) *model.StructuredIntent {
	q := strings.TrimSpace(in.Query)
	if len(q) >= in.Heur.VagueMaxLen {
		return nil
	}
	opener := false
	trimmed := strings.TrimRight(in.Lower, "?! .")
	for _, o := range in.Heur.VagueOpeners {
		if strings.HasPrefix(trimmed, o) || trimmed == o {
			opener = true
			break
		}
	}
	if !opener || hasEntityMarker(in.Query, in.Lower) {
		return nil
	}

	prompt := "Could you tell me a bit more about what you're looking for?"
	if last := in.Snapshot.LastTurn(); last != nil && model.ResponseHasDataGap(last.Response) {
		prompt = "I wasn't able to find that last time. Could you restate your question with a specific place or service, for example \"what time does the pool open\"?"
	}
	return &model.StructuredIntent{
		Intent:              "clarify",
		QueryKind:           model.KindClarificationNeed,
		ConversationContext: model.FlowClarification,
		QueryScope:          model.ScopeInformation,
		NeedsClarification:  true,
		ClarificationPrompt: prompt,
		SkipRetrieval:       true,
	}
}

// hasEntityMarker reports whether the query carries something concrete: an
// article followed by a noun, a known landmark/service noun, or a capitalized
// proper noun past the first word.
func hasEntityMarker(query, lower string) bool {
	if articleNounRe.MatchString(query) {
		return true
	}
	for _, n := range serviceNouns {
		if strings.Contains(lower, n) {
			return true
		}
	}
	words := strings.Fields(query)
	for i, w := range words {
		if i == 0 {
			continue
		}
		r := []rune(w)
		if len(r) > 1 && unicode.IsUpper(r[0]) {
			return true
		}
	}
	return false
}

// detectServiceAttribute catches "do they do financing?"-style follow-ups
// about an attribute of the previously resolved business. The ambiguous term
// must never be searched as a literal business category.
func detectServiceAttribute(in detectorInput) *model.StructuredIntent {
	if !serviceVerbRe.MatchString(in.Query) {
		return nil
	}
	var term string
	for _, t := range in.Heur.ServiceTerms {
		if strings.Contains(in.Lower, t) {
			term = t
			break
		}
	}
	if term == "" {
		return nil
	}
	biz := in.Snapshot.LastResolvedBusiness()
	if biz == nil {
		return nil
	}
	return &model.StructuredIntent{
		Keywords:             []string{term},
		Intent:               fmt.Sprintf("ask whether %s offers %s", biz.Name, term),
		QueryKind:            model.KindServiceInquiry,
		SearchTerms:          biz.Name + " " + term,
		ConversationContext:  model.FlowFollowup,
		QueryScope:           model.ScopeSpecificBusiness,
		SpecificBusinessName: biz.Name,
		SkipRetrieval:        true,
	}
}

// detectCostFollowup rewrites bare price questions against the last
// successfully resolved entity so we never literal-match an unrelated
// business whose name happens to contain a price word.
func detectCostFollowup(in detectorInput) *model.StructuredIntent {
	// Price vocabulary alone is not enough; require the question shape.
	if !in.Heur.costRe.MatchString(in.Query) {
		return nil
	}
	// A cost question that names its own subject ("what's the cost of a
	// business licence?") is not a follow-up about the cached entity; it
	// goes through full decomposition like any new question.
	rest := in.Heur.costRe.ReplaceAllString(in.Query, " ")
	if ExtractTopic(in.Query) != "" || hasEntityMarker(rest, strings.ToLower(rest)) {
		return nil
	}
	entity := in.Snapshot.LastSuccessfulEntityName()
	if entity == "" {
		return nil
	}
	return &model.StructuredIntent{
		Keywords:            append([]string{entity}, "cost", "fee"),
		Intent:              fmt.Sprintf("find the cost of %s", entity),
		QueryKind:           model.KindFinancial,
		SearchTerms:         fmt.Sprintf("%s cost price fee rate", entity),
		ConversationContext: model.FlowFollowup,
		QueryScope:          model.ScopeInformation,
		Topic:               entity,
	}
}

// detectPronounReference resolves bare pronouns against the cached entity.
// A pronoun already bound to a noun earlier in the same sentence is not a
// conversational reference and falls through to later stages.
func detectPronounReference(in detectorInput) *model.StructuredIntent {
	loc := pronounRe.FindStringIndex(in.Query)
	if loc == nil {
		return nil
	}
	if pronounBoundLocally(in.Query, loc[0]) {
		return nil
	}
	if in.Snapshot.Entity == nil && len(in.Snapshot.History) == 0 {
		return &model.StructuredIntent{
			Intent:              "clarify referent",
			QueryKind:           model.KindClarificationNeed,
			ConversationContext: model.FlowClarification,
			QueryScope:          model.ScopeInformation,
			NeedsClarification:  true,
			ClarificationPrompt: "I'm not sure what you're referring to. Which business or service do you mean?",
			SkipRetrieval:       true,
		}
	}

	referent := in.Snapshot.LastSuccessfulEntityName()
	if referent == "" && in.Snapshot.Entity != nil {
		referent = in.Snapshot.Entity.Name
	}
	if referent == "" {
		return &model.StructuredIntent{
			Intent:              "clarify referent",
			QueryKind:           model.KindClarificationNeed,
			ConversationContext: model.FlowClarification,
			QueryScope:          model.ScopeInformation,
			NeedsClarification:  true,
			ClarificationPrompt: "I'm not sure what you're referring to. Which business or service do you mean?",
			SkipRetrieval:       true,
		}
	}

	out := &model.StructuredIntent{
		Keywords:            tokenizeKeywords(in.Query),
		Intent:              fmt.Sprintf("follow-up about %s", referent),
		QueryKind:           model.KindMunicipalProcedure,
		SearchTerms:         referent + " " + stripPronouns(in.Query),
		ConversationContext: model.FlowFollowup,
		QueryScope:          model.ScopeSpecificBusiness,
	}
	if biz := in.Snapshot.LastResolvedBusiness(); biz != nil {
		out.SpecificBusinessName = biz.Name
	}
	return out
}

// pronounBoundLocally reports whether a plausible noun referent precedes the
// pronoun inside the same sentence, e.g. "do plumbers bring their own tools".
func pronounBoundLocally(query string, pronounOffset int) bool {
	sentenceStart := 0
	for i := pronounOffset - 1; i >= 0; i-- {
		if c := query[i]; c == '.' || c == '?' || c == '!' {
			sentenceStart = i + 1
			break
		}
	}
	before := strings.ToLower(query[sentenceStart:pronounOffset])
	for _, w := range strings.Fields(before) {
		w = strings.Trim(w, ",;:\"'")
		if len(w) > 3 && !isStopWord(w) {
			return true
		}
	}
	return false
}

func stripPronouns(q string) string {
	return strings.Join(strings.Fields(pronounRe.ReplaceAllString(q, " ")), " ")
}
