// Package classify buckets raw queries into coarse municipal topics with a
// fixed keyword table. Stateless and deterministic; unknown queries land in
// the general bucket.
package classify

import (
	"strings"
)

// Result is the classification outcome for one query.
type Result struct {
	Category        string
	Subcategory     string
	Confidence      float64
	MatchedKeywords []string
}

const (
	CategoryBylaw      = "bylaw"
	CategoryTax        = "tax"
	CategoryRecreation = "recreation"
	CategoryWaste      = "waste"
	CategoryMunicipal  = "municipal"
	CategoryGeneral    = "general"
)

var categoryKeywords = []struct {
	category string
	words    []string
}{
	{CategoryBylaw, []string{"bylaw", "by-law", "zoning", "noise", "nuisance", "animal control", "dog license", "dog licence", "parking restriction", "fence", "regulation"}},
	{CategoryTax, []string{"tax", "taxes", "assessment", "mill rate", "property value", "levy", "utility bill", "utility billing"}},
	{CategoryRecreation, []string{"pool", "arena", "rink", "swim", "skating", "gym", "park", "playground", "recreation", "community centre", "community center"}},
	{CategoryWaste, []string{"garbage", "trash", "recycling", "compost", "landfill", "waste", "pickup schedule", "collection day"}},
	{CategoryMunicipal, []string{"permit", "license", "licence", "council", "mayor", "water", "sewer", "road", "snow removal", "city hall", "town office"}},
}

// bylawSubcategories refines the bylaw bucket when its vocabulary appears.
var bylawSubcategories = []struct {
	subcategory string
	words       []string
}{
	{"zoning", []string{"zoning", "setback", "land use", "rezoning"}},
	{"animal control", []string{"animal", "dog", "cat", "leash", "barking"}},
	{"noise", []string{"noise", "quiet hours", "construction hours"}},
	{"parking", []string{"parking", "trailer", "rv", "street storage"}},
}

// Classify maps a raw query onto a topic bucket. The confidence scales with
// the number of matched keywords and never drops below the general fallback.
func Classify(query string) Result {
	q := strings.ToLower(query)

	best := Result{Category: CategoryGeneral, Confidence: 0.5}
	for _, entry := range categoryKeywords {
		var matched []string
		for _, w := range entry.words {
			if strings.Contains(q, w) {
				matched = append(matched, w)
			}
		}
		if len(matched) == 0 {
			continue
		}
		conf := 0.6 + 0.1*float64(len(matched))
		if conf > 0.95 {
			conf = 0.95
		}
		if conf > best.Confidence || best.Category == CategoryGeneral {
			best = Result{
				Category:        entry.category,
				Confidence:      conf,
				MatchedKeywords: matched,
			}
		}
	}

	if best.Category == CategoryBylaw {
		best.Subcategory = refineBylaw(q)
	}
	return best
}

func refineBylaw(q string) string {
	for _, entry := range bylawSubcategories {
		for _, w := range entry.words {
			if strings.Contains(q, w) {
				return entry.subcategory
			}
		}
	}
	return ""
}
