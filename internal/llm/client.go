package llm

import (
	"context"
	"encoding/json"
)

// Client defines the interface for LLM providers.
type Client interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// Role identifies the author of a message.
type Role string

// Message roles.
const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ToolDefinition declares a function the model may call. Parameters is a
// JSON schema object.
type ToolDefinition struct {
	Parameters  map[string]any `json:"parameters"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	Arguments json.RawMessage `json:"arguments"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
}

// ToolResult answers a ToolCall.
type ToolResult struct {
	CallID  string `json:"callId,omitempty"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"isError,omitempty"`
}

// Part is one piece of message content. Exactly one of Text, Data,
// ToolCall or ToolResult is set.
type Part struct {
	ToolCall   *ToolCall
	ToolResult *ToolResult
	Text       string
	MIMEType   string
	Data       []byte
}

// Message is a single conversation turn.
type Message struct {
	Role  Role
	Parts []Part
}

// Request is a single generation call.
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolDefinition
	// JSON asks the provider for a JSON-only response where supported.
	JSON bool
}

// Response is the model's reply. When ToolCalls is non-empty the caller
// is expected to run them and continue the conversation.
type Response struct {
	Text         string
	FinishReason string
	ToolCalls    []ToolCall
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// BlobPart builds an inline binary part such as recorded audio.
func BlobPart(mimeType string, data []byte) Part {
	return Part{MIMEType: mimeType, Data: data}
}

// UserText builds a user message holding a single text part.
func UserText(text string) Message {
	return Message{Role: RoleUser, Parts: []Part{TextPart(text)}}
}

// ModelToolCalls builds the model turn that requested calls.
func ModelToolCalls(text string, calls []ToolCall) Message {
	msg := Message{Role: RoleModel}
	if text != "" {
		msg.Parts = append(msg.Parts, TextPart(text))
	}
	for i := range calls {
		msg.Parts = append(msg.Parts, Part{ToolCall: &calls[i]})
	}
	return msg
}

// ToolResults builds the user turn answering tool calls.
func ToolResults(results []ToolResult) Message {
	msg := Message{Role: RoleUser}
	for i := range results {
		msg.Parts = append(msg.Parts, Part{ToolResult: &results[i]})
	}
	return msg
}
