package provider

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Caller generates one chat completion. The eino OpenAI ChatModel satisfies it.
type Caller interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Messages builds the message list for a single-turn query with optional
// system prompt and prior context.
func Messages(systemPrompt string, history []*schema.Message, query string) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(history)+2)
	if systemPrompt != "" {
		msgs = append(msgs, schema.SystemMessage(systemPrompt))
	}
	msgs = append(msgs, history...)
	msgs = append(msgs, schema.UserMessage(query))
	return msgs
}

// TokensOf reports the completion tokens of msg, falling back to a
// whitespace word count when the provider sent no usage block.
func TokensOf(msg *schema.Message) int {
	if msg == nil {
		return 0
	}
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil && msg.ResponseMeta.Usage.CompletionTokens > 0 {
		return msg.ResponseMeta.Usage.CompletionTokens
	}
	return len(strings.Fields(msg.Content))
}
