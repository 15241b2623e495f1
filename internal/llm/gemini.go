package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	geminiAPIBase   = "https://generativelanguage.googleapis.com/v1beta"
	vertexScope     = "https://www.googleapis.com/auth/cloud-platform"
	defaultGemini   = "gemini-2.5-pro"
	defaultLocation = "us-central1"
)

// geminiClient implements Client for the Gemini generateContent API, either
// with an API key or through Vertex AI with service account credentials.
type geminiClient struct {
	httpClient  *http.Client
	endpoint    string
	apiKey      string
	temperature float64
	maxTokens   int
}

func newGeminiClient(ctx context.Context, cfg Config) (Client, error) {
	model := cfg.Model
	if model == "" {
		model = defaultGemini
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}

	c := &geminiClient{
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}

	if cfg.APIKey != "" {
		base := cfg.BaseURL
		if base == "" {
			base = geminiAPIBase
		}
		c.httpClient = newHTTPClient()
		c.endpoint = fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(base, "/"), model)
		return c, nil
	}

	creds, err := googleCredentials(ctx, cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	project := cfg.Project
	if project == "" {
		project = creds.ProjectID
	}
	if project == "" {
		return nil, fmt.Errorf("gemini requires an API key or a Google Cloud project")
	}
	location := cfg.Location
	if location == "" {
		location = defaultLocation
	}
	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", location)
	}

	httpClient := newHTTPClient()
	httpClient.Transport = &oauth2.Transport{Source: creds.TokenSource, Base: httpClient.Transport}
	c.httpClient = httpClient
	c.endpoint = fmt.Sprintf("%s/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
		strings.TrimRight(base, "/"), project, location, model)
	return c, nil
}

func googleCredentials(ctx context.Context, credentialsFile string) (*google.Credentials, error) {
	if credentialsFile == "" {
		creds, err := google.FindDefaultCredentials(ctx, vertexScope)
		if err != nil {
			return nil, fmt.Errorf("failed to find default Google credentials: %w", err)
		}
		return creds, nil
	}

	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, vertexScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	return creds, nil
}

type geminiInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

type geminiFunctionCall struct {
	Args json.RawMessage `json:"args,omitempty"`
	Name string          `json:"name"`
}

type geminiFunctionResponse struct {
	Response map[string]any `json:"response"`
	Name     string         `json:"name"`
}

type geminiPart struct {
	InlineData       *geminiInlineData       `json:"inlineData,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
	Text             string                  `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiFunctionDeclaration struct {
	Parameters  map[string]any `json:"parameters,omitempty"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations"`
}

type geminiGenerationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	Tools             []geminiTool            `json:"tools,omitempty"`
}

type geminiResponse struct {
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	Candidates []struct {
		FinishReason string        `json:"finishReason"`
		Content      geminiContent `json:"content"`
	} `json:"candidates"`
}

// Generate sends a generateContent request.
func (c *geminiClient) Generate(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("x-goog-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Response{}, statusError("gemini", resp.StatusCode, respBody)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Response{}, fmt.Errorf("failed to parse response: %w", err)
	}
	return parsed.toResponse()
}

func (c *geminiClient) buildRequest(req Request) geminiRequest {
	out := geminiRequest{
		GenerationConfig: &geminiGenerationConfig{MaxOutputTokens: c.maxTokens},
	}
	if c.temperature > 0 {
		temperature := c.temperature
		out.GenerationConfig.Temperature = &temperature
	}
	// Function calling and JSON mode cannot be combined.
	if req.JSON && len(req.Tools) == 0 {
		out.GenerationConfig.ResponseMIMEType = "application/json"
	}
	if req.System != "" {
		out.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}

	if len(req.Tools) > 0 {
		decls := make([]geminiFunctionDeclaration, len(req.Tools))
		for i, tool := range req.Tools {
			decls[i] = geminiFunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			}
		}
		out.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}

	for _, msg := range req.Messages {
		content := geminiContent{Role: string(msg.Role)}
		for _, part := range msg.Parts {
			content.Parts = append(content.Parts, toGeminiPart(part))
		}
		out.Contents = append(out.Contents, content)
	}
	return out
}

func toGeminiPart(part Part) geminiPart {
	switch {
	case part.ToolCall != nil:
		return geminiPart{FunctionCall: &geminiFunctionCall{Name: part.ToolCall.Name, Args: part.ToolCall.Arguments}}
	case part.ToolResult != nil:
		key := "result"
		if part.ToolResult.IsError {
			key = "error"
		}
		return geminiPart{FunctionResponse: &geminiFunctionResponse{
			Name:     part.ToolResult.Name,
			Response: map[string]any{key: part.ToolResult.Content},
		}}
	case len(part.Data) > 0:
		return geminiPart{InlineData: &geminiInlineData{MIMEType: part.MIMEType, Data: part.Data}}
	default:
		return geminiPart{Text: part.Text}
	}
}

func (r geminiResponse) toResponse() (Response, error) {
	if len(r.Candidates) == 0 {
		if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
			return Response{}, fmt.Errorf("prompt blocked: %s", r.PromptFeedback.BlockReason)
		}
		return Response{}, fmt.Errorf("no candidates returned")
	}

	candidate := r.Candidates[0]
	out := Response{FinishReason: candidate.FinishReason}
	var text strings.Builder
	for i, part := range candidate.Content.Parts {
		if part.FunctionCall != nil {
			args := part.FunctionCall.Args
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        fmt.Sprintf("call_%d", i),
				Name:      part.FunctionCall.Name,
				Arguments: args,
			})
			continue
		}
		text.WriteString(part.Text)
	}
	out.Text = text.String()
	return out, nil
}
