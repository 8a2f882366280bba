package intent

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/Civiq-core-poc-v1/server/internal/assistant/model"
)

//go:embed template/decompose_prompt.txt
var decomposeSystemPrompt string

// RenderDecomposeSystem renders the decomposition system prompt via the Eino
// prompt component. This triggers Prompt callbacks and returns the final
// system prompt string.
func RenderDecomposeSystem(ctx context.Context) (string, error) {
	kinds := strings.Join([]string{
		string(model.KindBusinessDirectory),
		string(model.KindBylaw),
		string(model.KindFinancial),
		string(model.KindServiceInquiry),
		string(model.KindMunicipalProcedure),
		string(model.KindRecreation),
	}, ", ")

	// Safely render known tokens only to avoid interfering with JSON braces
	// in the template.
	content := strings.NewReplacer(
		"{query_kinds}", kinds,
	).Replace(decomposeSystemPrompt)

	// Wrap via Eino prompt component using a messages placeholder to emit callbacks
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("decompose prompt callbacks: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("decompose prompt callbacks: empty result")
	}
	return msgs[0].Content, nil
}

// BuildDecomposeContext frames the recent conversation plus the current
// message the way the decomposition prompt expects.
func BuildDecomposeContext(snap model.SessionSnapshot, query string, historyTurns int) string {
	turns := snap.History
	if historyTurns > 0 && len(turns) > historyTurns {
		turns = turns[len(turns)-historyTurns:]
	}

	var b strings.Builder
	b.WriteString("<conversation_context>\n")
	for _, t := range turns {
		b.WriteString("UserMessage(" + t.Query + ")\n")
		b.WriteString("AssistantMessage(" + truncate(t.Response, 200) + ")\n")
		if len(t.RetrievedEntityNames) > 0 {
			b.WriteString("RetrievedEntities(" + strings.Join(t.RetrievedEntityNames, ", ") + ")\n")
		}
	}
	if snap.Entity != nil {
		b.WriteString(fmt.Sprintf("CurrentEntity(%s: %s)\n", snap.Entity.Type, snap.Entity.Name))
	}
	b.WriteString("</conversation_context>\n")
	b.WriteString("<current_message_to_analyze>\n")
	b.WriteString("UserMessage(" + query + ")\n")
	b.WriteString("</current_message_to_analyze>")
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
