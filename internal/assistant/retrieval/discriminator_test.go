package retrieval

import (
	"context"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Civiq-core-poc-v1/server/internal/assistant/model"
)

type fakeChatModel struct {
	content string
	err     error
	calls   int
}

func (f *fakeChatModel) Generate(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.content, nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported in fake")
}

func candidateFixture() []model.Candidate {
	return []model.Candidate{
		{ID: "c1", DisplayName: "TIM HORTONS #4521", Category: "restaurants", RetrievalScore: 0.85, Kind: model.CandidateKindBusiness},
		{ID: "c2", DisplayName: "Timothy's Tree Service", Category: "landscaping", RetrievalScore: 0.75, Kind: model.CandidateKindBusiness},
		{ID: "c3", DisplayName: "Business Licence Bylaw", Category: "bylaw", RetrievalScore: 0.65, Kind: model.CandidateKindDocument},
		{ID: "c4", DisplayName: "Dog Park Directory", Category: "recreation", RetrievalScore: 0.55, Kind: model.CandidateKindDocument},
	}
}

func TestExactMatchShortcutSkipsLLM(t *testing.T) {
	llm := &fakeChatModel{content: `{}`}
	d := NewDiscriminator(llm, 3)

	intent := &model.StructuredIntent{
		QueryScope:           model.ScopeSpecificBusiness,
		SpecificBusinessName: "Tim Hortons",
	}
	got := d.Filter(context.Background(), "find Tim Hortons", intent, candidateFixture())

	require.Equal(t, []string{"c1"}, got.FinalSelection)
	assert.GreaterOrEqual(t, got.Confidence, 0.9)
	assert.Zero(t, llm.calls, "the shortcut must not issue an LLM call")
}

func TestExactMatchWorksEitherDirection(t *testing.T) {
	d := NewDiscriminator(nil, 3)
	// Requested name contains the candidate name.
	candidates := []model.Candidate{
		{ID: "x1", DisplayName: "Hortons", RetrievalScore: 0.5, Kind: model.CandidateKindBusiness},
	}
	intent := &model.StructuredIntent{
		QueryScope:           model.ScopeSpecificBusiness,
		SpecificBusinessName: "Tim Hortons downtown",
	}
	got := d.Filter(context.Background(), "q", intent, candidates)
	require.Equal(t, []string{"x1"}, got.FinalSelection)
}

func TestFilterUsesLLMSelection(t *testing.T) {
	llm := &fakeChatModel{content: `{
		"final_selection": ["c3"],
		"rankings": [
			{"id": "c3", "relevance": 0.9, "reason": "fee schedule for licences"},
			{"id": "c2", "relevance": 0.1, "reason": "name collision only"}
		]
	}`}
	d := NewDiscriminator(llm, 3)

	intent := &model.StructuredIntent{QueryKind: model.KindFinancial, QueryScope: model.ScopeInformation}
	got := d.Filter(context.Background(), "how much is a business licence", intent, candidateFixture())

	require.Equal(t, []string{"c3"}, got.FinalSelection)
	assert.InDelta(t, 0.9, got.Confidence, 0.001)
	assert.Equal(t, 1, llm.calls)
}

func TestFilterDropsHallucinatedIDs(t *testing.T) {
	llm := &fakeChatModel{content: `{"final_selection": ["nope", "c1"], "rankings": []}`}
	d := NewDiscriminator(llm, 3)

	got := d.Filter(context.Background(), "q", &model.StructuredIntent{}, candidateFixture())
	assert.Equal(t, []string{"c1"}, got.FinalSelection)
}

func TestFilterFallsBackOnModelError(t *testing.T) {
	llm := &fakeChatModel{err: errors.New("timeout")}
	d := NewDiscriminator(llm, 3)

	got := d.Filter(context.Background(), "q", &model.StructuredIntent{}, candidateFixture())

	require.Equal(t, []string{"c1", "c2", "c3"}, got.FinalSelection)
	// Confidence equals the mean retrieval score of the kept candidates.
	assert.InDelta(t, 0.75, got.Confidence, 0.001)
}

func TestFilterFallsBackOnUnparsableOutput(t *testing.T) {
	llm := &fakeChatModel{content: "these all look fine to me"}
	d := NewDiscriminator(llm, 2)

	got := d.Filter(context.Background(), "q", &model.StructuredIntent{}, candidateFixture())
	require.Equal(t, []string{"c1", "c2"}, got.FinalSelection)
}

func TestFilterEmptyCandidates(t *testing.T) {
	d := NewDiscriminator(nil, 3)
	got := d.Filter(context.Background(), "q", &model.StructuredIntent{}, nil)
	assert.Empty(t, got.FinalSelection)
}
