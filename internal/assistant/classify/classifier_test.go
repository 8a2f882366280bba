package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name            string
		query           string
		wantCategory    string
		wantSubcategory string
	}{
		{"dog license is a bylaw query", "how do I get a dog license", CategoryBylaw, "animal control"},
		{"zoning refinement", "what are the zoning setback rules", CategoryBylaw, "zoning"},
		{"noise refinement", "noise bylaw quiet hours", CategoryBylaw, "noise"},
		{"property tax", "when are property taxes due", CategoryTax, ""},
		{"pool hours", "what time does the pool open", CategoryRecreation, ""},
		{"garbage day", "when is garbage pickup on my street", CategoryWaste, ""},
		{"building permit", "do I need a permit for a deck", CategoryMunicipal, ""},
		{"no match falls back to general", "tell me something interesting", CategoryGeneral, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.query)
			assert.Equal(t, tt.wantCategory, got.Category)
			assert.Equal(t, tt.wantSubcategory, got.Subcategory)
		})
	}
}

func TestClassifyConfidence(t *testing.T) {
	unmatched := Classify("hello there")
	require.Equal(t, CategoryGeneral, unmatched.Category)
	require.Equal(t, 0.5, unmatched.Confidence)
	require.Empty(t, unmatched.MatchedKeywords)

	matched := Classify("noise bylaw about construction hours")
	require.Equal(t, CategoryBylaw, matched.Category)
	require.Greater(t, matched.Confidence, unmatched.Confidence)
	require.NotEmpty(t, matched.MatchedKeywords)
}

func TestClassifyIsDeterministic(t *testing.T) {
	a := Classify("dog license fee")
	b := Classify("dog license fee")
	require.Equal(t, a, b)
}
