// Package graph composes the query pipeline as an Eino graph and wraps it in
// a coordinator that owns fan-out, clarification rewriting, and all session
// writes.
package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/Civiq-core-poc-v1/server/internal/assistant/contextbuild"
	"github.com/Civiq-core-poc-v1/server/internal/assistant/graph/conversations"
	"github.com/Civiq-core-poc-v1/server/internal/assistant/graph/nodes"
	"github.com/Civiq-core-poc-v1/server/internal/assistant/graph/observers"
	"github.com/Civiq-core-poc-v1/server/internal/assistant/intent"
	"github.com/Civiq-core-poc-v1/server/internal/assistant/model"
	"github.com/Civiq-core-poc-v1/server/internal/assistant/retrieval"
	"github.com/Civiq-core-poc-v1/server/internal/assistant/session"
	errx "github.com/Civiq-core-poc-v1/server/internal/core/error"
	logx "github.com/Civiq-core-poc-v1/server/pkg/logger"
)

const maxFanOut = 3

// Runner executes the full pipeline for one user query.
type Runner interface {
	Ask(ctx context.Context, in model.QueryInput) (model.Answer, error)
}

// Config holds everything needed to compose the response pipeline end-to-end.
type Config struct {
	APIKey         string
	BaseURL        string
	DecomposeModel model.DecomposeModelConfig
	AnswerModel    model.AnswerModelConfig
	AnswerPrompt   model.AnswerPromptConfig
	Heuristics     model.HeuristicsConfig
	Retrieval      model.RetrievalConfig
	Assembly       model.AssemblyConfig

	Store session.Store

	// NewSearcher builds the vector-store collaborator once the shared
	// genai client exists, so the query embedder can reuse it.
	NewSearcher func(ctx context.Context, client *genai.Client) (retrieval.VectorSearcher, error)
}

// GraphConfig carries the constructed collaborators into the graph builder.
type GraphConfig struct {
	ChatModels      *nodes.ChatModels
	Store           session.Store
	Decomposer      *intent.Decomposer
	Retriever       *retrieval.Retriever
	Discriminator   *retrieval.Discriminator
	Assembler       *contextbuild.Assembler
	MessagesManager *conversations.MessagesManager
	AnswerPrompt    model.AnswerPromptConfig
	Retrieval       model.RetrievalConfig
}

// GraphBuilder handles the construction of the pipeline graph.
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.QueryInput, *schema.Message]
}

// BuildResponseGraph constructs the chat models and collaborators from
// Config, builds the graph, and returns a Runner.
func BuildResponseGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is nil")
	}
	if cfg.NewSearcher == nil {
		return nil, fmt.Errorf("searcher factory is nil")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		DecomposeConfig: &cfg.DecomposeModel,
		AnswerConfig:    &cfg.AnswerModel,
	})
	if err != nil {
		return nil, err
	}

	searcher, err := cfg.NewSearcher(ctx, cms.Client)
	if err != nil {
		return nil, fmt.Errorf("build vector searcher: %w", err)
	}

	runnable, err := BuildGraph(ctx, &GraphConfig{
		ChatModels:      cms,
		Store:           cfg.Store,
		Decomposer:      intent.NewDecomposer(cms.Decompose, intent.NewHeuristics(cfg.Heuristics), cfg.DecomposeModel),
		Retriever:       retrieval.NewRetriever(searcher, cfg.Retrieval),
		Discriminator:   retrieval.NewDiscriminator(cms.Decompose, cfg.Retrieval.MaxResults),
		Assembler:       contextbuild.NewAssembler(cfg.Assembly),
		MessagesManager: conversations.NewMessagesManager(cfg.DecomposeModel.HistoryTurns),
		AnswerPrompt:    cfg.AnswerPrompt,
		Retrieval:       cfg.Retrieval,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Response graph built successfully")
	return &coordinator{runnable: runnable, store: cfg.Store}, nil
}

// BuildGraph constructs and compiles the pipeline graph.
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModels == nil || config.ChatModels.Decompose == nil || config.ChatModels.Answer == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.Store == nil || config.Decomposer == nil || config.Retriever == nil ||
		config.Discriminator == nil || config.Assembler == nil || config.MessagesManager == nil {
		return nil, fmt.Errorf("pipeline collaborators are not properly initialized")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.QueryInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph.
func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeDecomposer,
		nodes.NewDecomposerNode(b.config.Store, b.config.Decomposer, b.config.ChatModels.DecomposeModelName),
		compose.WithStatePreHandler(nodes.NewPipelinePreHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeClarification, nodes.NewClarificationNode())
	b.graph.AddLambdaNode(nodes.NodeFanoutSignal, nodes.NewFanoutSignalNode())
	b.graph.AddLambdaNode(nodes.NodeFastPath, nodes.NewFastPathNode())

	b.graph.AddLambdaNode(nodes.NodeRetriever,
		nodes.NewRetrieverNode(nodes.RetrieverDeps{
			Retriever:          b.config.Retriever,
			Discriminator:      b.config.Discriminator,
			Config:             b.config.Retrieval,
			DiscriminatorModel: b.config.ChatModels.DecomposeModelName,
		}),
	)

	b.graph.AddLambdaNode(nodes.NodeAnswerAssembler,
		nodes.NewAnswerAssemblerNode(nodes.AssemblerDeps{
			Assembler:    b.config.Assembler,
			Messages:     b.config.MessagesManager,
			PromptConfig: b.config.AnswerPrompt,
		}),
	)

	b.graph.AddChatModelNode(nodes.NodeAnswerChatModel,
		nodes.NewAnswerChatModelNode(b.config.ChatModels.Answer),
		compose.WithStatePostHandler(nodes.NewAnswerChatModelPostHandler(b.config.ChatModels.AnswerModelName)),
	)
}

// addEdges creates the unconditional flow connections between nodes.
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeDecomposer},
		{nodes.NodeClarification, compose.END},
		{nodes.NodeFanoutSignal, compose.END},
		{nodes.NodeFastPath, nodes.NodeAnswerAssembler},
		{nodes.NodeRetriever, nodes.NodeAnswerAssembler},
		{nodes.NodeAnswerAssembler, nodes.NodeAnswerChatModel},
		{nodes.NodeAnswerChatModel, compose.END},
	}
	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches routes the decomposed intent to one of the four paths.
func (b *GraphBuilder) addBranches() error {
	routeBranch := compose.NewGraphBranch(
		nodes.NewRouteCondition(),
		map[string]bool{
			nodes.NodeClarification: true,
			nodes.NodeFanoutSignal:  true,
			nodes.NodeFastPath:      true,
			nodes.NodeRetriever:     true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeDecomposer, routeBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding route branch")
		return fmt.Errorf("error adding route branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph.
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(20))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}
	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}

// coordinator wraps the compiled graph with the per-query orchestration the
// graph itself cannot express: clarification-answer rewriting, multi-question
// fan-out, and the single deferred session commit.
type coordinator struct {
	runnable compose.Runnable[model.QueryInput, *schema.Message]
	store    session.Store
}

// passResult is the outcome of one graph invocation.
type passResult struct {
	Text           string
	Confidence     model.Confidence
	BestEntity     *model.EntityContext
	RetrievedNames []string
	AskedQuestion  bool
	Topic          string
	CostUSD        float64
	SubQuestions   []string
}

func (c *coordinator) Ask(ctx context.Context, in model.QueryInput) (model.Answer, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return model.Answer{}, errx.New(fmt.Errorf("empty query"), 400, "query must not be empty")
	}

	// A reply right after the assistant asked a question answers that
	// question; anchor it to the pending topic before decomposition.
	snap, err := c.store.Snapshot(ctx, in.ConversationID)
	if err != nil {
		return model.Answer{}, err
	}
	effective := query
	if t := snap.LastTurn(); t != nil && t.AIAskedQuestion {
		anchor := snap.PendingTopic
		if anchor == "" && snap.Entity != nil {
			anchor = snap.Entity.Name
		}
		if anchor != "" {
			effective = anchor + ": " + query
			logx.Debug().Str("anchor", anchor).Msg("rewrote clarification answer")
		}
		if err := c.store.ClearPendingClarification(ctx, in.ConversationID); err != nil {
			logx.Warn().Err(err).Msg("clearing pending clarification failed")
		}
	}

	first, err := c.invoke(ctx, model.QueryInput{ConversationID: in.ConversationID, Query: effective, Depth: 0})
	if err != nil {
		return model.Answer{}, err
	}

	if len(first.SubQuestions) > 1 {
		return c.fanOut(ctx, in.ConversationID, query, first.SubQuestions)
	}
	return c.commit(ctx, in.ConversationID, query, first)
}

// invoke runs one graph pass and decodes the metadata the nodes attached to
// the output message.
func (c *coordinator) invoke(ctx context.Context, in model.QueryInput) (passResult, error) {
	out, err := c.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return passResult{}, errx.WrapCollaborator(err)
	}
	if out == nil {
		return passResult{}, errx.WrapCollaborator(fmt.Errorf("pipeline returned no message"))
	}

	res := passResult{Text: out.Content, Confidence: model.ConfidenceLow}
	if v, ok := out.Extra[nodes.ExtraConfidence].(model.Confidence); ok {
		res.Confidence = v
	}
	if v, ok := out.Extra[nodes.ExtraBestEntity].(*model.EntityContext); ok {
		res.BestEntity = v
	}
	if v, ok := out.Extra[nodes.ExtraRetrievedNames].([]string); ok {
		res.RetrievedNames = v
	}
	if v, ok := out.Extra[nodes.ExtraAskedQuestion].(bool); ok {
		res.AskedQuestion = v
	}
	if v, ok := out.Extra[nodes.ExtraTopic].(string); ok {
		res.Topic = v
	}
	if v, ok := out.Extra[nodes.ExtraTotalCostUSD].(float64); ok {
		res.CostUSD = v
	}
	if v, ok := out.Extra[nodes.ExtraFanOut].([]string); ok {
		res.SubQuestions = v
	}
	return res, nil
}

// fanOut runs the pipeline once per sub-question, sequentially so each pass
// sees the same committed session state, then merges the sub-answers and
// commits the session exactly once.
func (c *coordinator) fanOut(ctx context.Context, conversationID, originalQuery string, subs []string) (model.Answer, error) {
	if len(subs) > maxFanOut {
		subs = subs[:maxFanOut]
	}

	merged := passResult{Confidence: model.ConfidenceHigh}
	var parts []string
	var totalCost float64
	for i, sub := range subs {
		res, err := c.invoke(ctx, model.QueryInput{ConversationID: conversationID, Query: sub, Depth: 1})
		if err != nil {
			logx.Warn().Err(err).Str("sub_question", sub).Msg("sub-question pass failed")
			res = passResult{
				Text:       "I wasn't able to answer this part right now.",
				Confidence: model.ConfidenceLow,
			}
		}
		parts = append(parts, fmt.Sprintf("%d. %s\n%s", i+1, sub, strings.TrimSpace(res.Text)))
		merged.Confidence = model.WeakerConfidence(merged.Confidence, res.Confidence)
		merged.RetrievedNames = append(merged.RetrievedNames, res.RetrievedNames...)
		if res.BestEntity != nil {
			merged.BestEntity = res.BestEntity
		}
		if res.Topic != "" && merged.Topic == "" {
			merged.Topic = res.Topic
		}
		totalCost += res.CostUSD
	}
	merged.Text = strings.Join(parts, "\n\n")
	merged.CostUSD = totalCost

	return c.commit(ctx, conversationID, originalQuery, merged)
}

// commit performs the single deferred session write for a completed query
// and shapes the public answer.
func (c *coordinator) commit(ctx context.Context, conversationID, query string, res passResult) (model.Answer, error) {
	turn := model.ConversationTurn{
		Query:                query,
		Response:             res.Text,
		RetrievedEntityNames: res.RetrievedNames,
		AIAskedQuestion:      res.AskedQuestion,
		PendingTopic:         res.Topic,
		Timestamp:            time.Now(),
	}
	if err := c.store.RecordTurn(ctx, conversationID, turn); err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("recording turn failed")
	}

	if res.AskedQuestion {
		if err := c.store.MarkPendingClarification(ctx, conversationID, res.Topic); err != nil {
			logx.Warn().Err(err).Msg("marking pending clarification failed")
		}
	} else if res.BestEntity != nil {
		if err := c.store.SetEntity(ctx, conversationID, res.BestEntity); err != nil {
			logx.Warn().Err(err).Msg("saving entity context failed")
		}
	}

	if res.CostUSD > 0 {
		logx.Debug().
			Str("conversation_id", conversationID).
			Float64("total_cost_usd", res.CostUSD).
			Msg("query cost")
	}

	return model.Answer{
		Text:           res.Text,
		Confidence:     res.Confidence,
		Sources:        res.RetrievedNames,
		AskedQuestion:  res.AskedQuestion,
		ConversationID: conversationID,
	}, nil
}
