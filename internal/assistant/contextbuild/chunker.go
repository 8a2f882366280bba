package contextbuild

import (
	"regexp"
	"sort"
	"strings"
)

// Markers that make a chunk worth keeping even with few keyword hits.
// Bylaw text buries fee tables, contact info, and application steps deep
// in otherwise boilerplate sections.
var (
	currencyMarkerRe   = regexp.MustCompile(`(?i)\$\s?\d|\bfine\b|\bpenalt(y|ies)\b`)
	contactMarkerRe    = regexp.MustCompile(`(?i)\d{3}[-.\s]\d{4}|\bphone\b|\bemail\b|\bcontact\b|@`)
	proceduralMarkerRe = regexp.MustCompile(`(?i)\bappl(y|ication|ies)\b|\bstep\b|\bprocedure\b|\bsubmit\b`)
	obligationMarkerRe = regexp.MustCompile(`(?i)\bmust\b|\bshall\b|\brequired\b`)
)

const (
	keywordPoints    = 10
	currencyPoints   = 20
	contactPoints    = 15
	proceduralPoints = 15
	obligationPoints = 10
	leadPoints       = 5
	leadChunkCount   = 3
)

type scoredChunk struct {
	text  string
	score int
	index int
}

// splitChunks breaks a document into paragraph-aggregated chunks. Paragraphs
// are accumulated greedily until the next one would push the chunk past
// maxLen; a single paragraph longer than maxLen becomes its own chunk.
func splitChunks(text string, maxLen int) []string {
	paras := strings.Split(text, "\n\n")
	var chunks []string
	var cur strings.Builder
	for _, p := range paras {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+len(p)+2 > maxLen {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(p)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// scoreChunk weights a chunk by query-keyword density and by the presence of
// the markers readers actually ask about.
func scoreChunk(chunk string, keywords []string, index int) int {
	lower := strings.ToLower(chunk)
	score := 0
	for _, kw := range keywords {
		score += keywordPoints * strings.Count(lower, kw)
	}
	if currencyMarkerRe.MatchString(chunk) {
		score += currencyPoints
	}
	if contactMarkerRe.MatchString(chunk) {
		score += contactPoints
	}
	if proceduralMarkerRe.MatchString(chunk) {
		score += proceduralPoints
	}
	if obligationMarkerRe.MatchString(chunk) {
		score += obligationPoints
	}
	if index < leadChunkCount {
		score += leadPoints
	}
	return score
}

// selectChunks returns the best chunks of an oversized document joined with
// a separator, in ranking order. Selection is deterministic for a given
// input: ties keep the earlier chunk first.
func selectChunks(text, query string, chunkLen, keep int) string {
	chunks := splitChunks(text, chunkLen)
	if len(chunks) <= keep {
		return strings.Join(chunks, "\n\n---\n\n")
	}
	keywords := chunkKeywords(query)
	scored := make([]scoredChunk, len(chunks))
	for i, c := range chunks {
		scored[i] = scoredChunk{text: c, score: scoreChunk(c, keywords, i), index: i}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	parts := make([]string, 0, keep)
	for _, sc := range scored[:keep] {
		parts = append(parts, sc.text)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

var chunkStopWords = map[string]struct{}{
	"what": {}, "when": {}, "where": {}, "which": {}, "this": {}, "that": {},
	"with": {}, "from": {}, "about": {}, "does": {}, "have": {}, "much": {},
	"many": {}, "will": {}, "your": {}, "their": {}, "them": {}, "they": {},
	"there": {}, "here": {}, "need": {}, "want": {},
}

// chunkKeywords keeps query tokens longer than 3 characters minus stop words.
func chunkKeywords(query string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		tok = strings.Trim(tok, ".,!?;:'\"()")
		if len(tok) <= 3 {
			continue
		}
		if _, stop := chunkStopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}
