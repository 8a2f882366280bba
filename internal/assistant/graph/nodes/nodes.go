package nodes

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/Civiq-core-poc-v1/server/internal/assistant/contextbuild"
	"github.com/Civiq-core-poc-v1/server/internal/assistant/graph/conversations"
	"github.com/Civiq-core-poc-v1/server/internal/assistant/graph/prompts"
	"github.com/Civiq-core-poc-v1/server/internal/assistant/intent"
	"github.com/Civiq-core-poc-v1/server/internal/assistant/model"
	"github.com/Civiq-core-poc-v1/server/internal/assistant/retrieval"
	"github.com/Civiq-core-poc-v1/server/internal/assistant/session"
	logx "github.com/Civiq-core-poc-v1/server/pkg/logger"
)

// Node names used when wiring the graph.
const (
	NodeDecomposer      = "Decomposer"
	NodeClarification   = "Clarification"
	NodeFanoutSignal    = "FanoutSignal"
	NodeFastPath        = "FastPath"
	NodeRetriever       = "Retriever"
	NodeAnswerAssembler = "AnswerAssembler"
	NodeAnswerChatModel = "AnswerChatModel"
)

// Extra keys carried on the graph's output message so the coordinator can
// commit session state and drive fan-out without re-reading graph state.
const (
	ExtraFanOut         = "fan_out"
	ExtraConfidence     = "confidence"
	ExtraBestEntity     = "best_entity"
	ExtraRetrievedNames = "retrieved_names"
	ExtraAskedQuestion  = "asked_question"
	ExtraTopic          = "topic"
	ExtraTotalCostUSD   = "usage_cost_total_usd"
)

// NewPipelinePreHandler resets per-query state before decomposition.
func NewPipelinePreHandler() func(context.Context, model.QueryInput, *model.AppState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.AppState) (model.QueryInput, error) {
		s.ConversationID = in.ConversationID
		s.Query = in.Query
		s.Depth = in.Depth
		s.TotalCostUSD = 0
		s.AskedQuestion = false
		s.Intent = nil
		s.RAG = nil
		s.Context = ""
		s.BestEntity = nil
		s.RetrievedNames = nil
		return in, nil
	}
}

// NewDecomposerNode captures the session snapshot and runs intent
// decomposition. The snapshot is captured once per pass so every later node
// sees the same pre-query session state.
func NewDecomposerNode(store session.Store, decomposer *intent.Decomposer, modelName string) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) (*model.StructuredIntent, error) {
		snap, err := store.Snapshot(ctx, input.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("session snapshot: %w", err)
		}

		out, usage := decomposer.Decompose(ctx, input.Query, input.Depth, snap)

		err = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			state.Snapshot = snap
			state.Intent = out
			accountTokenUsage(state, usage, modelName, NodeDecomposer)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		return out, nil
	})
}

// NewRouteCondition routes a decomposed intent to clarification, fan-out,
// the cached-entity fast path, or full retrieval.
func NewRouteCondition() func(context.Context, *model.StructuredIntent) (string, error) {
	return func(ctx context.Context, in *model.StructuredIntent) (string, error) {
		if in.NeedsClarification {
			logx.Debug().Msg("routing to clarification")
			return NodeClarification, nil
		}

		var depth int
		var entity *model.EntityContext
		compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			depth = state.Depth
			entity = state.Snapshot.Entity
			return nil
		})

		if in.IsMultiQuestion && depth == 0 && len(in.SubQuestions) > 1 {
			logx.Debug().Int("sub_questions", len(in.SubQuestions)).Msg("routing to fan-out")
			return NodeFanoutSignal, nil
		}
		if IsFastPathEligible(in, entity) {
			logx.Debug().Str("entity", entity.Name).Msg("routing to fast path")
			return NodeFastPath, nil
		}
		return NodeRetriever, nil
	}
}

// IsFastPathEligible reports whether the cached entity lets this query skip
// retrieval entirely. Pure; the caller passes a still-valid entity or nil.
func IsFastPathEligible(in *model.StructuredIntent, entity *model.EntityContext) bool {
	if entity == nil || entity.Type != model.EntityBusiness {
		return false
	}
	if in.SkipRetrieval {
		return true
	}
	if in.QueryScope != model.ScopeSpecificBusiness || in.SpecificBusinessName == "" {
		return false
	}
	return namesMatch(entity.Name, in.SpecificBusinessName)
}

// namesMatch is case-insensitive containment in either direction, the same
// rule the discriminator's exact-match shortcut applies.
func namesMatch(a, b string) bool {
	al := strings.ToLower(strings.TrimSpace(a))
	bl := strings.ToLower(strings.TrimSpace(b))
	if al == "" || bl == "" {
		return false
	}
	return strings.Contains(al, bl) || strings.Contains(bl, al)
}

// NewClarificationNode emits the clarification question instead of an answer.
// No retrieval happens on this path.
func NewClarificationNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *model.StructuredIntent) (*schema.Message, error) {
		text := in.ClarificationPrompt
		var lastResponse string
		compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			state.AskedQuestion = true
			state.Confidence = model.ConfidenceLow
			if t := state.Snapshot.LastTurn(); t != nil {
				lastResponse = t.Response
			}
			return nil
		})

		if text == "" {
			text = "Could you tell me a bit more about what you're looking for?"
		}
		if model.ResponseHasDataGap(lastResponse) {
			text = "I wasn't able to find that last time. Could you restate your question with a specific business, bylaw, or service? For example: \"What are the off-leash dog park hours?\""
		}

		out := schema.AssistantMessage(text, nil)
		out.Extra = map[string]any{
			ExtraAskedQuestion: true,
			ExtraTopic:         in.Topic,
			ExtraConfidence:    model.ConfidenceLow,
		}
		return out, nil
	})
}

// NewFanoutSignalNode short-circuits a multi-question query back to the
// coordinator, which re-runs the pipeline once per sub-question.
func NewFanoutSignalNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *model.StructuredIntent) (*schema.Message, error) {
		out := schema.AssistantMessage("", nil)
		out.Extra = map[string]any{
			ExtraFanOut: append([]string(nil), in.SubQuestions...),
			ExtraTopic:  in.Topic,
		}
		return out, nil
	})
}

// NewFastPathNode rebuilds a RAG context from the cached session entity so
// follow-ups about a just-resolved business never trigger a fresh search.
func NewFastPathNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *model.StructuredIntent) (*model.RAGContext, error) {
		var entity *model.EntityContext
		compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			entity = state.Snapshot.Entity
			return nil
		})
		if entity == nil {
			return &model.RAGContext{}, nil
		}

		rag := &model.RAGContext{Businesses: []model.ScoredBusiness{{
			ID:          "cached:" + entity.Name,
			Name:        entity.Name,
			Category:    payloadString(entity.Payload, "category"),
			Address:     payloadString(entity.Payload, "address"),
			Phone:       payloadString(entity.Payload, "phone"),
			Description: payloadString(entity.Payload, "description"),
			Score:       0.95,
		}}}
		logx.Debug().Str("entity", entity.Name).Msg("fast path reused cached entity")
		return rag, nil
	})
}

// RetrieverDeps bundles the collaborators the retrieval node needs.
type RetrieverDeps struct {
	Retriever          *retrieval.Retriever
	Discriminator      *retrieval.Discriminator
	Config             model.RetrievalConfig
	DiscriminatorModel string
}

// NewRetrieverNode runs both similarity searches concurrently, merges and
// filters the candidates, and leaves the kept set in state. Search failures
// degrade to whatever the other collection returned.
func NewRetrieverNode(deps RetrieverDeps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *model.StructuredIntent) (*model.RAGContext, error) {
		terms := in.SearchTerms
		if terms == "" {
			terms = strings.Join(in.Keywords, " ")
		}
		var userQuery string
		compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			userQuery = state.Query
			return nil
		})

		var (
			wg         sync.WaitGroup
			businesses []model.ScoredBusiness
			documents  []model.ScoredDocument
			bizErr     error
			docErr     error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			businesses, bizErr = deps.Retriever.SearchBusinesses(ctx, terms, deps.Config.BusinessLimit)
		}()
		go func() {
			defer wg.Done()
			documents, docErr = deps.Retriever.SearchDocuments(ctx, terms, deps.Config.DocumentLimit)
		}()
		wg.Wait()

		if bizErr != nil {
			logx.Warn().Err(bizErr).Msg("business search failed, continuing with documents only")
		}
		if docErr != nil {
			logx.Warn().Err(docErr).Msg("document search failed, continuing with businesses only")
		}

		rag := &model.RAGContext{Businesses: businesses, Documents: documents}
		filtered := deps.Discriminator.Filter(ctx, userQuery, in, rag.Candidates())
		kept := rag.Keep(filtered.FinalSelection)

		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			accountTokenUsage(state, filtered.Usage, deps.DiscriminatorModel, NodeRetriever)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		logx.Debug().
			Int("candidates", rag.SourceCount()).
			Int("kept", kept.SourceCount()).
			Float64("filter_confidence", filtered.Confidence).
			Msg("retrieval pass complete")
		return kept, nil
	})
}

// AssemblerDeps bundles what the answer-assembly node needs.
type AssemblerDeps struct {
	Assembler    *contextbuild.Assembler
	Messages     *conversations.MessagesManager
	PromptConfig model.AnswerPromptConfig
}

// NewAnswerAssemblerNode turns the kept candidates into the answer model's
// message list and records confidence plus the entity write-back in state.
func NewAnswerAssemblerNode(deps AssemblerDeps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, rag *model.RAGContext) ([]*schema.Message, error) {
		var data model.ResponseData
		var userQuery string
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			if state.Intent == nil {
				return fmt.Errorf("missing structured intent in state")
			}
			data = model.ResponseData{
				Intent:         *state.Intent,
				Snapshot:       state.Snapshot,
				ConversationID: state.ConversationID,
			}
			userQuery = state.Query
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		contextStr, adjusted := deps.Assembler.Assemble(rag, userQuery)
		if contextStr == "" {
			contextStr = "(no records were retrieved for this query)"
		}
		data.Context = contextStr

		confidence := ComputeConfidence(adjusted.AverageScore(), adjusted.SourceCount())
		best := adjusted.BestEntity()
		if best == nil && data.Intent.Topic != "" {
			best = &model.EntityContext{Type: model.EntityTopic, Name: data.Intent.Topic}
		}
		if best != nil {
			best.OriginatingIntent = data.Intent.Intent
		}

		err = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			state.RAG = adjusted
			state.Context = contextStr
			state.Confidence = confidence
			state.BestEntity = best
			state.RetrievedNames = adjusted.EntityNames()
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		sysPrompt, err := prompts.RenderAnswerSystem(ctx, deps.PromptConfig, data, confidence)
		if err != nil {
			return nil, fmt.Errorf("generate answer prompt: %w", err)
		}
		return deps.Messages.BuildAnswerContext(data.Snapshot, sysPrompt, userQuery), nil
	})
}

// NewAnswerChatModelPostHandler accounts generation cost and copies the
// session write-back metadata onto the output message for the coordinator.
func NewAnswerChatModelPostHandler(modelName string) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if out == nil {
			return nil, fmt.Errorf("answer model returned nil message")
		}
		if out.ResponseMeta != nil {
			accountTokenUsage(state, out.ResponseMeta.Usage, modelName, NodeAnswerChatModel)
		}

		if out.Extra == nil {
			out.Extra = map[string]any{}
		}
		out.Extra[ExtraConfidence] = state.Confidence
		out.Extra[ExtraBestEntity] = state.BestEntity
		out.Extra[ExtraRetrievedNames] = append([]string(nil), state.RetrievedNames...)
		out.Extra[ExtraAskedQuestion] = state.AskedQuestion
		if state.Intent != nil {
			out.Extra[ExtraTopic] = state.Intent.Topic
		}
		out.Extra[ExtraTotalCostUSD] = state.TotalCostUSD

		logx.Debug().
			Str("conversation_id", state.ConversationID).
			Str("confidence", string(state.Confidence)).
			Int("sources", len(state.RetrievedNames)).
			Msg("answer ready")
		return out, nil
	}
}

// ComputeConfidence grades an answer by retrieval quality. High needs both a
// strong average score and several sources; medium needs either; anything
// else is low.
func ComputeConfidence(avgScore float64, sources int) model.Confidence {
	if avgScore > 0.8 && sources >= 3 {
		return model.ConfidenceHigh
	}
	if avgScore > 0.6 || sources >= 2 {
		return model.ConfidenceMedium
	}
	return model.ConfidenceLow
}

func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
