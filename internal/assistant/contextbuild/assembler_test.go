package contextbuild

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Civiq-core-poc-v1/server/internal/assistant/model"
)

func TestIsFeeQuery(t *testing.T) {
	assert.True(t, IsFeeQuery("how much is a dog license"))
	assert.True(t, IsFeeQuery("what are the business licence fees"))
	assert.True(t, IsFeeQuery("utility rates for 2026"))
	assert.False(t, IsFeeQuery("where is the aquatic centre"))
	assert.False(t, IsFeeQuery("noise bylaw quiet hours"))
}

func TestFeeScoringPrefersConsolidatedBylaw(t *testing.T) {
	docs := []model.ScoredDocument{
		{
			ID: "d-amend", Title: "Animal Control Amendment Bylaw",
			Topic: "animal control", Content: "Section 3 is amended by deleting clause (b).",
			Score: 0.80,
		},
		{
			ID: "d-cons", Title: "Animal Control Consolidated Bylaw",
			Topic: "animal control", Content: "Annual dog licence fee: $30 (spayed/neutered $20).",
			Score: 0.78,
		},
	}

	adjusted := AdjustFeeScores(docs, "how much is a dog license")

	require.Len(t, adjusted, 2)
	assert.Equal(t, "d-cons", adjusted[0].ID)
	assert.Greater(t, adjusted[0].Score, adjusted[1].Score)
	// Inputs are left untouched.
	assert.InDelta(t, 0.80, docs[0].Score, 0.001)
}

func TestFeeScoringPenalizesOffTopicFeeSchedule(t *testing.T) {
	docs := []model.ScoredDocument{
		{
			ID: "d-dev", Title: "Development Cost Charges Fee Schedule",
			Topic: "development fees", Content: "Per-lot charge: $4,500.",
			Score: 0.85,
		},
		{
			ID: "d-animal", Title: "Animal Control Consolidated Bylaw",
			Topic: "animal control", Content: "Annual dog licence fee: $30.",
			Score: 0.70,
		},
	}

	adjusted := AdjustFeeScores(docs, "how much is a dog licence")
	assert.Equal(t, "d-animal", adjusted[0].ID)
}

func TestFeeScoringMatchesTitleWordsOnly(t *testing.T) {
	// "Maintenance" must not read as the "main" bylaw and "coffee" must not
	// read as a fee schedule.
	docs := []model.ScoredDocument{
		{
			ID: "d-maint", Title: "Road Maintenance Bylaw",
			Topic: "roads", Content: "Roads are graded twice a year.",
			Score: 0.70,
		},
		{
			ID: "d-coffee", Title: "Downtown Coffee Walking Guide",
			Topic: "tourism", Content: "A stroll past the best cafes.",
			Score: 0.70,
		},
	}

	adjusted := AdjustFeeScores(docs, "how much is a dog licence")

	require.Len(t, adjusted, 2)
	for _, d := range adjusted {
		assert.InDelta(t, 0.70, d.Score, 0.001, d.Title)
	}

	// Word-boundary forms still trigger.
	boosted := AdjustFeeScores([]model.ScoredDocument{
		{ID: "d-main", Title: "Main Animal Control Bylaw", Topic: "animal control", Content: "fines apply", Score: 0.5},
	}, "how much is a dog licence")
	assert.Greater(t, boosted[0].Score, 0.5)
}

func TestFeeScoringNeutralWithoutTopicSignal(t *testing.T) {
	docs := []model.ScoredDocument{
		{ID: "a", Title: "Some Report", Topic: "general", Content: "no pricing here", Score: 0.9},
	}
	adjusted := AdjustFeeScores(docs, "how much does it cost")
	assert.InDelta(t, 0.9, adjusted[0].Score, 0.001)
}

func TestAssembleFeeQueryKeepsFullText(t *testing.T) {
	a := NewAssembler(model.AssemblyConfig{FullTextBudget: 200, ChunkSize: 80, MaxChunks: 2})
	content := strings.Repeat("Licence class details.\n\n", 20) +
		"Schedule A: base business licence fee $125, home-based $75."
	require.Greater(t, len(content), 200)

	rag := &model.RAGContext{Documents: []model.ScoredDocument{
		{ID: "d1", Title: "Business Licence Bylaw", Topic: "business licence", Content: content, Score: 0.9},
	}}

	ctx, _ := a.Assemble(rag, "What's the cost of a business licence?")

	// Oversized, but a fee query with currency keeps every pricing tier.
	assert.Contains(t, ctx, "$125")
	assert.Contains(t, ctx, "home-based $75")
	assert.NotContains(t, ctx, "---")
}

func TestAssembleChunksOversizedNonFeeDocument(t *testing.T) {
	a := NewAssembler(model.AssemblyConfig{FullTextBudget: 300, ChunkSize: 120, MaxChunks: 2})

	var sb strings.Builder
	for i := 0; i < 12; i++ {
		sb.WriteString("General provisions about municipal administration and definitions.\n\n")
	}
	sb.WriteString("Noise restrictions: construction noise is permitted 7am to 8pm weekdays.\n\n")
	sb.WriteString("More general provisions without relevant vocabulary.\n\n")

	rag := &model.RAGContext{Documents: []model.ScoredDocument{
		{ID: "d1", Title: "Noise Control Bylaw", Topic: "noise", Content: sb.String(), Score: 0.9},
	}}

	ctx, _ := a.Assemble(rag, "when is construction noise allowed")

	assert.Contains(t, ctx, "construction noise is permitted")
	assert.Less(t, len(ctx), len(sb.String()))
}

func TestAssembleIsIdempotent(t *testing.T) {
	a := NewAssembler(model.AssemblyConfig{FullTextBudget: 300, ChunkSize: 100, MaxChunks: 3})

	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("Paragraph with assorted bylaw words, permits, zoning, schedules.\n\n")
	}
	rag := &model.RAGContext{Documents: []model.ScoredDocument{
		{ID: "d1", Title: "Zoning Bylaw", Topic: "zoning", Content: sb.String(), Score: 0.8},
	}}

	first, _ := a.Assemble(rag, "zoning setback rules for sheds")
	second, _ := a.Assemble(rag, "zoning setback rules for sheds")
	assert.Equal(t, first, second)
}

func TestAssembleOrdersBlocksByScore(t *testing.T) {
	a := NewAssembler(model.AssemblyConfig{})
	rag := &model.RAGContext{
		Businesses: []model.ScoredBusiness{
			{ID: "b1", Name: "Ridge Plumbing", Category: "trades", Address: "22345 Lougheed Hwy", Phone: "604-555-0142", Score: 0.72},
		},
		Documents: []model.ScoredDocument{
			{ID: "d1", Title: "Water Service Bylaw", Topic: "water", Content: "Connection procedure.", Score: 0.91},
		},
	}

	ctx, _ := a.Assemble(rag, "water service connection")

	docAt := strings.Index(ctx, "[Document] Water Service Bylaw")
	bizAt := strings.Index(ctx, "[Business] Ridge Plumbing")
	require.GreaterOrEqual(t, docAt, 0)
	require.GreaterOrEqual(t, bizAt, 0)
	assert.Less(t, docAt, bizAt)
	assert.Contains(t, ctx, "Official source: https://www.mapleridge.ca/bylaws/water-service")
	assert.Contains(t, ctx, "Phone: 604-555-0142")
}

func TestAssembleEmptyContext(t *testing.T) {
	a := NewAssembler(model.AssemblyConfig{})
	ctx, out := a.Assemble(&model.RAGContext{}, "anything")
	assert.Empty(t, ctx)
	assert.Zero(t, out.SourceCount())
}
