package intent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Civiq-core-poc-v1/server/internal/assistant/model"
)

func testHeuristics() Heuristics {
	return NewHeuristics(model.HeuristicsConfig{
		ServiceAttributeTerms: "insurance, credit, financing, delivery",
		PriceWords:            "cost, price, fee, rate",
		VagueOpeners:          "what time, how much, where, when, who",
		VagueMaxLen:           20,
	})
}

func snapWithBusiness(name string) model.SessionSnapshot {
	return model.SessionSnapshot{
		Entity: &model.EntityContext{
			Type:      model.EntityBusiness,
			Name:      name,
			Timestamp: time.Now(),
		},
		History: []model.ConversationTurn{
			{
				Query:                "Find HVAC contractors",
				Response:             "I found " + name + " on Main Street.",
				RetrievedEntityNames: []string{name},
			},
		},
	}
}

func input(query string, snap model.SessionSnapshot) detectorInput {
	return detectorInput{
		Query:    query,
		Lower:    toLowerForTest(query),
		Snapshot: snap,
		Heur:     testHeuristics(),
	}
}

func toLowerForTest(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'A' && r <= 'Z' {
			out[i] = r + ('a' - 'A')
		}
	}
	return string(out)
}

func TestDetectVagueQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"bare where", "where?", true},
		{"bare how much", "how much", true},
		{"short but names a service noun", "where is pool", false},
		{"short with article and noun", "when is the game", false},
		{"short with proper noun", "where is Timmy's", false},
		{"long queries are never vague-guarded", "how much does a residential building permit cost", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectVagueQuery(input(tt.query, model.SessionSnapshot{}))
			if tt.want {
				require.NotNil(t, got)
				assert.True(t, got.NeedsClarification)
				assert.True(t, got.SkipRetrieval)
				assert.Equal(t, model.KindClarificationNeed, got.QueryKind)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestVagueQueryAfterDataGapAsksForExample(t *testing.T) {
	snap := model.SessionSnapshot{
		History: []model.ConversationTurn{
			{Query: "pool times", Response: "I don't have that information."},
		},
	}
	got := detectVagueQuery(input("when?", snap))
	require.NotNil(t, got)
	assert.Contains(t, got.ClarificationPrompt, "for example")
}

func TestDetectServiceAttribute(t *testing.T) {
	snap := snapWithBusiness("Fraser Valley Heating")

	got := detectServiceAttribute(input("do they do financing?", snap))
	require.NotNil(t, got)
	assert.Equal(t, model.KindServiceInquiry, got.QueryKind)
	assert.True(t, got.SkipRetrieval)
	assert.Equal(t, "Fraser Valley Heating", got.SpecificBusinessName)
	assert.Equal(t, model.ScopeSpecificBusiness, got.QueryScope)

	// No cached business: the detector must not claim the query.
	assert.Nil(t, detectServiceAttribute(input("do they do financing?", model.SessionSnapshot{})))

	// Cached entity is a document, not a business.
	docSnap := model.SessionSnapshot{Entity: &model.EntityContext{
		Type: model.EntityDocument, Name: "Fee Bylaw", Timestamp: time.Now(),
	}}
	assert.Nil(t, detectServiceAttribute(input("do they do financing?", docSnap)))
}

func TestDetectCostFollowup(t *testing.T) {
	snap := snapWithBusiness("Maple Ridge Kennels")

	got := detectCostFollowup(input("how much is it?", snap))
	require.NotNil(t, got)
	assert.Equal(t, model.KindFinancial, got.QueryKind)
	assert.Equal(t, "Maple Ridge Kennels cost price fee rate", got.SearchTerms)
	assert.False(t, got.SkipRetrieval)

	// A failed prior turn is not a usable referent.
	gapSnap := model.SessionSnapshot{History: []model.ConversationTurn{
		{Query: "x", Response: "I don't have that information.", RetrievedEntityNames: []string{"X Corp"}},
	}}
	assert.Nil(t, detectCostFollowup(input("how much is it?", gapSnap)))
}

func TestDetectCostFollowupIgnoresSelfContainedQuestions(t *testing.T) {
	// A cost question that names its own subject must not be anchored to
	// the previously resolved entity.
	snap := snapWithBusiness("Fraser Valley Heating")

	tests := []struct {
		name  string
		query string
	}{
		{"names a licence topic", "What's the cost of a business licence?"},
		{"names a known topic by regex", "how much is a dog licence?"},
		{"names a service noun", "how much is the pool?"},
		{"names its own proper noun", "what's the fee at Maple Ridge Kennels?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, detectCostFollowup(input(tt.query, snap)))
		})
	}

	// Referent-free phrasing still resolves against the cached entity.
	got := detectCostFollowup(input("what's the cost?", snap))
	require.NotNil(t, got)
	assert.Equal(t, "Fraser Valley Heating cost price fee rate", got.SearchTerms)
}

func TestDetectPronounReference(t *testing.T) {
	t.Run("empty history asks for clarification", func(t *testing.T) {
		got := detectPronounReference(input("what are their hours?", model.SessionSnapshot{}))
		require.NotNil(t, got)
		assert.True(t, got.NeedsClarification)
	})

	t.Run("history injects the referent into search terms", func(t *testing.T) {
		got := detectPronounReference(input("what are their hours?", snapWithBusiness("Golden Ears Bakery")))
		require.NotNil(t, got)
		assert.Equal(t, model.ScopeSpecificBusiness, got.QueryScope)
		assert.Contains(t, got.SearchTerms, "Golden Ears Bakery")
		assert.Equal(t, "Golden Ears Bakery", got.SpecificBusinessName)
	})

	t.Run("locally bound pronoun is not a reference", func(t *testing.T) {
		got := detectPronounReference(input("do plumbers bring their own tools?", model.SessionSnapshot{}))
		assert.Nil(t, got)
	})
}

func TestDetectorOrderServiceAttributeBeatsPronoun(t *testing.T) {
	// "do they do financing?" contains a pronoun AND a service term; the
	// service-attribute detector has priority and must claim it.
	snap := snapWithBusiness("Fraser Valley Heating")
	in := input("do they do financing?", snap)

	var hit *model.StructuredIntent
	for _, det := range orderedDetectors {
		if hit = det(in); hit != nil {
			break
		}
	}
	require.NotNil(t, hit)
	assert.Equal(t, model.KindServiceInquiry, hit.QueryKind)
}
