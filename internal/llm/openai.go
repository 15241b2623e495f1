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

const openAIBaseURL = "https://api.openai.com/v1"

// openAIClient implements the Client interface for OpenAI API.
type openAIClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

// newOpenAIClient creates a new OpenAI API client.
func newOpenAIClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
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
		baseURL = openAIBaseURL
	}

	return &openAIClient{
		apiKey:      cfg.APIKey,
		model:       model,
		baseURL:     strings.TrimRight(baseURL, "/"),
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient:  newHTTPClient(),
	}, nil
}

// Generate sends a chat completion request to OpenAI.
func (c *openAIClient) Generate(ctx context.Context, req Request) (Response, error) {
	requestBody := map[string]any{
		"model":       c.model,
		"messages":    openAIMessages(req),
		"temperature": c.temperature,
		"max_tokens":  c.maxTokens,
	}
	if req.JSON {
		requestBody["response_format"] = map[string]string{"type": "json_object"}
	}
	if len(req.Tools) > 0 {
		tools := make([]map[string]any, len(req.Tools))
		for i, tool := range req.Tools {
			tools[i] = map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        tool.Name,
					"description": tool.Description,
					"parameters":  tool.Parameters,
				},
			}
		}
		requestBody["tools"] = tools
		requestBody["tool_choice"] = "auto"
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", strings.NewReader(string(jsonBody)))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

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
		return Response{}, statusError("OpenAI", resp.StatusCode, body)
	}

	var response openAIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return Response{}, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(response.Choices) == 0 {
		return Response{}, fmt.Errorf("no completion choices returned")
	}

	choice := response.Choices[0]
	out := Response{
		Text:         choice.Message.Content,
		FinishReason: choice.FinishReason,
	}
	for _, call := range choice.Message.ToolCalls {
		args := json.RawMessage(call.Function.Arguments)
		if len(strings.TrimSpace(call.Function.Arguments)) == 0 {
			args = json.RawMessage("{}")
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: args,
		})
	}
	return out, nil
}

// openAIMessages flattens the conversation into chat completion messages.
// Tool results become one "tool" message per call.
func openAIMessages(req Request) []map[string]any {
	var messages []map[string]any
	if req.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.System})
	}

	for _, msg := range req.Messages {
		if msg.Role == RoleModel {
			assistant := map[string]any{"role": "assistant"}
			var text strings.Builder
			var calls []map[string]any
			for _, part := range msg.Parts {
				if part.ToolCall != nil {
					calls = append(calls, map[string]any{
						"id":   part.ToolCall.ID,
						"type": "function",
						"function": map[string]any{
							"name":      part.ToolCall.Name,
							"arguments": string(part.ToolCall.Arguments),
						},
					})
					continue
				}
				text.WriteString(part.Text)
			}
			assistant["content"] = text.String()
			if len(calls) > 0 {
				assistant["tool_calls"] = calls
			}
			messages = append(messages, assistant)
			continue
		}

		var content []map[string]any
		for _, part := range msg.Parts {
			switch {
			case part.ToolResult != nil:
				messages = append(messages, map[string]any{
					"role":         "tool",
					"tool_call_id": part.ToolResult.CallID,
					"content":      part.ToolResult.Content,
				})
			case len(part.Data) > 0 && strings.HasPrefix(part.MIMEType, "audio/"):
				content = append(content, map[string]any{
					"type": "input_audio",
					"input_audio": map[string]string{
						"data":   base64.StdEncoding.EncodeToString(part.Data),
						"format": strings.TrimPrefix(part.MIMEType, "audio/"),
					},
				})
			case len(part.Data) > 0:
				content = append(content, map[string]any{
					"type": "image_url",
					"image_url": map[string]string{
						"url": "data:" + part.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(part.Data),
					},
				})
			default:
				content = append(content, map[string]any{"type": "text", "text": part.Text})
			}
		}
		if len(content) > 0 {
			messages = append(messages, map[string]any{"role": "user", "content": content})
		}
	}
	return messages
}

// openAIResponse represents the OpenAI API response structure.
type openAIResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role      string `json:"role"`
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
		Index        int    `json:"index"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Created int64 `json:"created"`
}
