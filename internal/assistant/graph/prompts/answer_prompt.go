package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/Civiq-core-poc-v1/server/internal/assistant/model"
)

//go:embed template/answer_prompt.txt
var answerSystemPrompt string

// RenderAnswerSystem renders the answer system prompt with the retrieved
// context baked in. Rendering goes through the Eino prompt component so
// prompt callbacks fire.
func RenderAnswerSystem(ctx context.Context, cfg model.AnswerPromptConfig, data model.ResponseData, confidence model.Confidence) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(answerSystemPrompt),
	)
	vars := map[string]any{
		"Municipality": cfg.MunicipalityName,
		"Province":     cfg.Province,
		"QueryKind":    string(data.Intent.QueryKind),
		"Confidence":   string(confidence),
		"Context":      data.Context,
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("answer prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("answer prompt render: empty result")
	}
	return msgs[0].Content, nil
}
