// Package providers adapts hosted LLM APIs to a single text completion
// contract. Callers hand over role-tagged messages and optionally ask for
// JSON output; every adapter returns plain text that callers must parse
// defensively.
package providers

import (
	"context"
	"errors"
)

// Provider is the text completion service used by every LLM-backed
// component. Implementations must be safe for concurrent use.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Embedder turns texts into dense vectors for similarity search.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Request struct {
	Messages     []Message `json:"messages"`
	Model        string    `json:"model,omitempty"`
	MaxTokens    int       `json:"max_tokens,omitempty"`
	Temperature  *float64  `json:"temperature,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`

	// JSONMode asks the backend to constrain output to a JSON object. Not
	// every backend enforces it, so the result still needs validation.
	JSONMode bool `json:"json_mode,omitempty"`
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Response struct {
	Content    string     `json:"content"`
	Model      string     `json:"model"`
	StopReason StopReason `json:"stop_reason"`
	Usage      Usage      `json:"usage"`
}

type StopReason string

const (
	StopReasonEndTurn      StopReason = "end_turn"
	StopReasonMaxTokens    StopReason = "max_tokens"
	StopReasonStopSequence StopReason = "stop_sequence"
	StopReasonError        StopReason = "error"
)

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

var (
	ErrEmptyResponse = errors.New("provider returned no content")
	ErrNoMessages    = errors.New("request has no messages")
)

// System builds a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User builds a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant builds an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// splitSystem separates system messages from the conversation. Backends
// that take the system prompt out of band (Anthropic, Gemini) use it.
func splitSystem(req *Request) (string, []Message) {
	system := req.SystemPrompt
	rest := make([]Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if msg.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		rest = append(rest, msg)
	}
	return system, rest
}
