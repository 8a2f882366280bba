package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"google.golang.org/genai"

	"github.com/Civiq-core-poc-v1/server/internal/assistant/graph"
	"github.com/Civiq-core-poc-v1/server/internal/assistant/model"
	"github.com/Civiq-core-poc-v1/server/internal/assistant/retrieval"
	"github.com/Civiq-core-poc-v1/server/internal/assistant/session"
	"github.com/Civiq-core-poc-v1/server/internal/core"
	logx "github.com/Civiq-core-poc-v1/server/pkg/logger"
	pkgpostgres "github.com/Civiq-core-poc-v1/server/pkg/postgres"
	pkgredis "github.com/Civiq-core-poc-v1/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the assistant, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	// Infrastructure
	Postgres pkgpostgres.Config
	Redis    pkgredis.Config
	// "memory" keeps sessions in-process; "redis" shares them.
	SessionBackend string `envconfig:"SESSION_BACKEND" default:"memory"`

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Pipeline configs
	Session    model.SessionConfig
	Decompose  model.DecomposeModelConfig
	Answer     model.AnswerModelConfig
	Prompt     model.AnswerPromptConfig
	Heuristics model.HeuristicsConfig
	Retrieval  model.RetrievalConfig
	Assembly   model.AssemblyConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}
	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(os.Getenv("APP_ENV"))})

	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	db, err := envCfg.Postgres.New()
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()

	sessionOpts, err := session.ParseOptions(envCfg.Session)
	if err != nil {
		log.Fatalf("Invalid session config: %v", err)
	}
	sweepInterval, err := time.ParseDuration(envCfg.Session.SweepInterval)
	if err != nil {
		log.Fatalf("Invalid SESSION_SWEEP_INTERVAL: %v", err)
	}

	var store session.Store
	switch envCfg.SessionBackend {
	case "redis":
		rdb, err := envCfg.Redis.New()
		if err != nil {
			log.Fatalf("Failed to initialise Redis client: %v", err)
		}
		defer rdb.Close()
		store = session.NewRedisStore(rdb, sessionOpts)
	default:
		ms := session.NewMemoryStore(sessionOpts)
		ms.StartJanitor(ctx, sweepInterval)
		store = ms
	}

	cfg := graph.Config{
		APIKey:         envCfg.APIKey,
		BaseURL:        envCfg.BaseURL,
		DecomposeModel: envCfg.Decompose,
		AnswerModel:    envCfg.Answer,
		AnswerPrompt:   envCfg.Prompt,
		Heuristics:     envCfg.Heuristics,
		Retrieval:      envCfg.Retrieval,
		Assembly:       envCfg.Assembly,
		Store:          store,
		NewSearcher: func(_ context.Context, client *genai.Client) (retrieval.VectorSearcher, error) {
			embedder := retrieval.NewGeminiEmbedder(client, envCfg.Retrieval.EmbeddingModel)
			return retrieval.NewPgvectorSearcher(db, embedder, map[string]string{
				envCfg.Retrieval.BusinessCollection: "businesses",
				envCfg.Retrieval.DocumentCollection: "documents",
			}), nil
		},
	}

	runner, err := graph.BuildResponseGraph(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build graph: %v", err)
	}

	testQueries := []struct {
		description string
		query       string
	}{
		{
			description: "Business directory search",
			query:       "Find HVAC contractors in Maple Ridge",
		},
		{
			description: "Service-attribute follow-up on the cached business",
			query:       "do they do financing?",
		},
		{
			description: "Fee question about a municipal licence",
			query:       "What's the cost of a business licence?",
		},
		{
			description: "Multi-question utterance",
			query:       "When is garbage pickup? And how much is a dog licence?",
		},
	}

	conversationID := "demo-conversation-001"

	for i, test := range testQueries {
		fmt.Printf("\nTest %d: %s\n", i+1, test.description)
		fmt.Printf("Query: %q\n", test.query)

		answer, err := runner.Ask(ctx, model.QueryInput{
			ConversationID: conversationID,
			Query:          test.query,
		})
		if err != nil {
			log.Fatalf("Failed to run pipeline for test %d: %v", i+1, err)
		}

		fmt.Printf("Answer (%s confidence): %s\n", answer.Confidence, answer.Text)
		if len(answer.Sources) > 0 {
			fmt.Printf("Sources: %v\n", answer.Sources)
		}
		fmt.Println("------------------------------------------------")

		time.Sleep(500 * time.Millisecond)
	}

	fmt.Println("All pipeline checks completed.")
}
