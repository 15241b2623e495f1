package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const anthropicBaseURL = "https://api.anthropic.com/v1"

// anthropicClient implements the Client interface for Anthropic API.
type anthropicClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

// newAnthropicClient creates a new Anthropic API client.
func newAnthropicClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}

	return &anthropicClient{
		apiKey:      cfg.APIKey,
		model:       model,
		baseURL:     strings.TrimRight(baseURL, "/"),
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient:  newHTTPClient(),
	}, nil
}

// Generate sends a messages request to Anthropic.
func (c *anthropicClient) Generate(ctx context.Context, req Request) (Response, error) {
	system := req.System
	if req.JSON {
		system = strings.TrimSpace(system + "\n\nRespond with ONLY a valid JSON object. Do not include any text before or after the JSON.")
	}

	requestBody := map[string]any{
		"model":       c.model,
		"max_tokens":  c.maxTokens,
		"temperature": c.temperature,
		"messages":    anthropicMessages(req.Messages),
	}
	if system != "" {
		requestBody["system"] = system
	}
	if len(req.Tools) > 0 {
		tools := make([]map[string]any, len(req.Tools))
		for i, tool := range req.Tools {
			tools[i] = map[string]any{
				"name":         tool.Name,
				"description":  tool.Description,
				"input_schema": tool.Parameters,
			}
		}
		requestBody["tools"] = tools
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", strings.NewReader(string(jsonBody)))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Response{}, statusError("anthropic", resp.StatusCode, body)
	}

	var response anthropicResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return Response{}, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(response.Content) == 0 {
		return Response{}, fmt.Errorf("no content in response")
	}

	out := Response{FinishReason: response.StopReason}
	var text strings.Builder
	for _, block := range response.Content {
		switch block.Type {
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: block.ID, Name: block.Name, Arguments: block.Input})
		case "text":
			text.WriteString(block.Text)
		}
	}
	out.Text = text.String()
	return out, nil
}

func anthropicMessages(messages []Message) []map[string]any {
	out := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		role := "user"
		if msg.Role == RoleModel {
			role = "assistant"
		}

		var content []map[string]any
		for _, part := range msg.Parts {
			switch {
			case part.ToolCall != nil:
				content = append(content, map[string]any{
					"type":  "tool_use",
					"id":    part.ToolCall.ID,
					"name":  part.ToolCall.Name,
					"input": part.ToolCall.Arguments,
				})
			case part.ToolResult != nil:
				content = append(content, map[string]any{
					"type":        "tool_result",
					"tool_use_id": part.ToolResult.CallID,
					"content":     part.ToolResult.Content,
					"is_error":    part.ToolResult.IsError,
				})
			case len(part.Data) > 0:
				content = append(content, map[string]any{
					"type": "image",
					"source": map[string]string{
						"type":       "base64",
						"media_type": part.MIMEType,
						"data":       base64.StdEncoding.EncodeToString(part.Data),
					},
				})
			default:
				content = append(content, map[string]any{"type": "text", "text": part.Text})
			}
		}
		out = append(out, map[string]any{"role": role, "content": content})
	}
	return out
}

// anthropicResponse represents the Anthropic API response structure.
type anthropicResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Role       string `json:"role"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Input json.RawMessage `json:"input,omitempty"`
		Type  string          `json:"type"`
		Text  string          `json:"text,omitempty"`
		ID    string          `json:"id,omitempty"`
		Name  string          `json:"name,omitempty"`
	} `json:"content"`
}
