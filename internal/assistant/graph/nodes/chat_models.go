package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/Civiq-core-poc-v1/server/internal/assistant/model"
	logx "github.com/Civiq-core-poc-v1/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation.
type ChatModelConfig struct {
	APIKey          string
	BaseURL         string
	DecomposeConfig *model.DecomposeModelConfig
	AnswerConfig    *model.AnswerModelConfig
}

// ChatModels holds the decomposition and answer chat models plus the shared
// genai client, which the embedding collaborator reuses.
type ChatModels struct {
	Decompose          *gemini.ChatModel
	Answer             *gemini.ChatModel
	Client             *genai.Client
	DecomposeModelName string
	AnswerModelName    string
}

// NewChatModels creates both chat models on one Gemini client.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	chatModelDecompose, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.DecomposeConfig.Model,
		Temperature: &config.DecomposeConfig.Temperature,
		MaxTokens:   &config.DecomposeConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating decomposition model")
		return nil, fmt.Errorf("error creating decomposition model: %w", err)
	}

	chatModelAnswer, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.AnswerConfig.Model,
		Temperature: &config.AnswerConfig.Temperature,
		MaxTokens:   &config.AnswerConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating answer model")
		return nil, fmt.Errorf("error creating answer model: %w", err)
	}

	return &ChatModels{
		Decompose:          chatModelDecompose,
		Answer:             chatModelAnswer,
		Client:             client,
		DecomposeModelName: config.DecomposeConfig.Model,
		AnswerModelName:    config.AnswerConfig.Model,
	}, nil
}

// NewAnswerChatModelNode wraps the answer chat model for use as a graph node.
func NewAnswerChatModelNode(chatModel *gemini.ChatModel) *gemini.ChatModel {
	return chatModel
}
