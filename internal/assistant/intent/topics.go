package intent

import "regexp"

// topicPatterns maps recurring municipal domains to canonical topic labels.
// The topic is recorded on every decomposition path so follow-ups can be
// interpreted even when retrieval comes up empty.
var topicPatterns = []struct {
	re    *regexp.Regexp
	topic string
}{
	{regexp.MustCompile(`(?i)utilit(y|ies)\s+bill`), "utility billing"},
	{regexp.MustCompile(`(?i)trailer\s+(parking|storage)|park(ing)?\s+(a|my)\s+trailer`), "trailer parking"},
	{regexp.MustCompile(`(?i)(building|deck|renovation)\s+permit`), "building permit"},
	{regexp.MustCompile(`(?i)dog\s+licen[cs]e`), "dog license"},
	{regexp.MustCompile(`(?i)business\s+licen[cs]e`), "business licence"},
	{regexp.MustCompile(`(?i)noise\s+(bylaw|complaint|restriction)`), "noise bylaw"},
	{regexp.MustCompile(`(?i)(garbage|recycling|compost)\s+(pickup|collection|schedule)`), "waste collection"},
	{regexp.MustCompile(`(?i)property\s+tax`), "property tax"},
	{regexp.MustCompile(`(?i)(snow\s+(removal|clearing|plow))`), "snow removal"},
	{regexp.MustCompile(`(?i)(pool|swim(ming)?\s+lesson|aquatic)`), "aquatic centre"},
	{regexp.MustCompile(`(?i)water\s+(meter|connection|main)`), "water service"},
}

// ExtractTopic returns the canonical topic label for a query, or empty when
// no known domain matches.
func ExtractTopic(query string) string {
	for _, p := range topicPatterns {
		if p.re.MatchString(query) {
			return p.topic
		}
	}
	return ""
}
