package graph

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Civiq-core-poc-v1/server/internal/assistant/graph/nodes"
	"github.com/Civiq-core-poc-v1/server/internal/assistant/model"
	"github.com/Civiq-core-poc-v1/server/internal/assistant/session"
)

// fakeRunnable stands in for the compiled graph so coordinator behavior can
// be tested without model or database collaborators.
type fakeRunnable struct {
	calls   []model.QueryInput
	respond func(in model.QueryInput) *schema.Message
}

func (f *fakeRunnable) Invoke(_ context.Context, in model.QueryInput, _ ...compose.Option) (*schema.Message, error) {
	f.calls = append(f.calls, in)
	return f.respond(in), nil
}

func (f *fakeRunnable) Stream(context.Context, model.QueryInput, ...compose.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported in fake")
}

func (f *fakeRunnable) Collect(context.Context, *schema.StreamReader[model.QueryInput], ...compose.Option) (*schema.Message, error) {
	return nil, errors.New("collect not supported in fake")
}

func (f *fakeRunnable) Transform(context.Context, *schema.StreamReader[model.QueryInput], ...compose.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("transform not supported in fake")
}

func answerMessage(text string, conf model.Confidence, entity *model.EntityContext, names []string) *schema.Message {
	out := schema.AssistantMessage(text, nil)
	out.Extra = map[string]any{
		nodes.ExtraConfidence:     conf,
		nodes.ExtraBestEntity:     entity,
		nodes.ExtraRetrievedNames: names,
		nodes.ExtraAskedQuestion:  false,
	}
	return out
}

func newTestStore() *session.MemoryStore {
	return session.NewMemoryStore(session.Options{
		EntityTTL: 5 * time.Minute,
		IdleTTL:   30 * time.Minute,
		MaxTurns:  5,
	})
}

func TestAskCommitsTurnAndEntity(t *testing.T) {
	entity := &model.EntityContext{Type: model.EntityBusiness, Name: "Ace HVAC"}
	fake := &fakeRunnable{respond: func(model.QueryInput) *schema.Message {
		return answerMessage("Ace HVAC is at 123 Main St.", model.ConfidenceMedium, entity, []string{"Ace HVAC"})
	}}
	store := newTestStore()
	c := &coordinator{runnable: fake, store: store}

	answer, err := c.Ask(context.Background(), model.QueryInput{ConversationID: "s1", Query: "find HVAC contractors"})
	require.NoError(t, err)
	assert.Equal(t, model.ConfidenceMedium, answer.Confidence)
	assert.Equal(t, []string{"Ace HVAC"}, answer.Sources)

	snap, err := store.Snapshot(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, snap.History, 1)
	assert.Equal(t, "find HVAC contractors", snap.History[0].Query)
	require.NotNil(t, snap.Entity)
	assert.Equal(t, "Ace HVAC", snap.Entity.Name)
}

func TestAskFanOutMergesSubAnswers(t *testing.T) {
	fake := &fakeRunnable{respond: func(in model.QueryInput) *schema.Message {
		if in.Depth == 0 {
			out := schema.AssistantMessage("", nil)
			out.Extra = map[string]any{
				nodes.ExtraFanOut: []string{"when is garbage pickup?", "how much is a dog licence?"},
			}
			return out
		}
		if strings.Contains(in.Query, "garbage") {
			return answerMessage("Pickup is Thursdays.", model.ConfidenceHigh, nil, []string{"Solid Waste Bylaw"})
		}
		return answerMessage("A dog licence is $30.", model.ConfidenceMedium, nil, []string{"Animal Control Bylaw"})
	}}
	store := newTestStore()
	c := &coordinator{runnable: fake, store: store}

	answer, err := c.Ask(context.Background(), model.QueryInput{
		ConversationID: "s1",
		Query:          "When is garbage pickup? And how much is a dog licence?",
	})
	require.NoError(t, err)

	// One depth-0 pass plus one per sub-question, run sequentially.
	require.Len(t, fake.calls, 3)
	assert.Equal(t, 1, fake.calls[1].Depth)

	assert.Contains(t, answer.Text, "1. when is garbage pickup?")
	assert.Contains(t, answer.Text, "Pickup is Thursdays.")
	assert.Contains(t, answer.Text, "2. how much is a dog licence?")
	assert.Equal(t, model.ConfidenceMedium, answer.Confidence, "merged confidence is the weaker one")
	assert.ElementsMatch(t, []string{"Solid Waste Bylaw", "Animal Control Bylaw"}, answer.Sources)

	// The whole fan-out commits exactly one turn.
	snap, err := store.Snapshot(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, snap.History, 1)
	assert.Equal(t, "When is garbage pickup? And how much is a dog licence?", snap.History[0].Query)
}

func TestAskRewritesClarificationAnswer(t *testing.T) {
	askCount := 0
	fake := &fakeRunnable{respond: func(in model.QueryInput) *schema.Message {
		askCount++
		if askCount == 1 {
			out := schema.AssistantMessage("Which licence do you mean?", nil)
			out.Extra = map[string]any{
				nodes.ExtraAskedQuestion: true,
				nodes.ExtraTopic:         "dog licence",
				nodes.ExtraConfidence:    model.ConfidenceLow,
			}
			return out
		}
		return answerMessage("A dog licence is $30.", model.ConfidenceMedium, nil, []string{"Animal Control Bylaw"})
	}}
	store := newTestStore()
	c := &coordinator{runnable: fake, store: store}
	ctx := context.Background()

	first, err := c.Ask(ctx, model.QueryInput{ConversationID: "s1", Query: "how much?"})
	require.NoError(t, err)
	assert.True(t, first.AskedQuestion)

	second, err := c.Ask(ctx, model.QueryInput{ConversationID: "s1", Query: "for my dog"})
	require.NoError(t, err)
	assert.False(t, second.AskedQuestion)

	// The reply was anchored to the pending topic before decomposition.
	require.Len(t, fake.calls, 2)
	assert.Equal(t, "dog licence: for my dog", fake.calls[1].Query)

	// Pending clarification was cleared and the original query recorded.
	snap, err := store.Snapshot(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, snap.PendingTopic)
	require.Len(t, snap.History, 2)
	assert.Equal(t, "for my dog", snap.History[1].Query)
}

func TestAskRejectsEmptyQuery(t *testing.T) {
	c := &coordinator{runnable: &fakeRunnable{}, store: newTestStore()}
	_, err := c.Ask(context.Background(), model.QueryInput{ConversationID: "s1", Query: "   "})
	assert.Error(t, err)
}
