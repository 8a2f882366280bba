package conversations

import (
	"github.com/cloudwego/eino/schema"

	"github.com/Civiq-core-poc-v1/server/internal/assistant/model"
)

// MessagesManager frames session history as chat messages for the answer
// model. It works off an immutable snapshot; the coordinator owns all
// session writes.
type MessagesManager struct {
	historyTurns int
}

func NewMessagesManager(historyTurns int) *MessagesManager {
	if historyTurns <= 0 {
		historyTurns = 5
	}
	return &MessagesManager{historyTurns: historyTurns}
}

// BuildAnswerContext produces the message list for the answer model: system
// prompt, recent turns as alternating user/assistant messages, then the
// current query.
func (cm *MessagesManager) BuildAnswerContext(snap model.SessionSnapshot, systemPrompt, query string) []*schema.Message {
	turns := trimTail(snap.History, cm.historyTurns)

	messages := make([]*schema.Message, 0, 2*len(turns)+2)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	for _, t := range turns {
		if t.Query != "" {
			messages = append(messages, schema.UserMessage(t.Query))
		}
		if t.Response != "" {
			messages = append(messages, schema.AssistantMessage(t.Response, nil))
		}
	}
	messages = append(messages, schema.UserMessage(query))
	return messages
}

func trimTail(turns []model.ConversationTurn, maxTurns int) []model.ConversationTurn {
	if len(turns) <= maxTurns {
		return turns
	}
	return turns[len(turns)-maxTurns:]
}
