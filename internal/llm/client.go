package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client is the single capability the dispatcher needs from a language
// model: complete the given history with one assistant message.
type Client interface {
	Generate(ctx context.Context, messages []Message) (Response, error)
}
