package nodes

import (
	"github.com/cloudwego/eino/schema"

	"github.com/Civiq-core-poc-v1/server/internal/assistant/model"
	logx "github.com/Civiq-core-poc-v1/server/pkg/logger"
)

// accountTokenUsage converts one model call's token usage to USD and folds
// it into the per-query running total. No-op when usage is nil (detector
// hits and fallbacks never call a model).
func accountTokenUsage(state *model.AppState, usage *schema.TokenUsage, modelName, node string) {
	if !model.CostEnabled() || usage == nil {
		return
	}
	pricing := model.ResolvePricing(modelName)
	inC, outC, totalC := model.ComputeCost(usage, pricing)
	state.TotalCostUSD += totalC

	logx.Debug().
		Str("conversation_id", state.ConversationID).
		Str("node", node).
		Str("model", modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
}
