package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/tachyon/internal/common"
)

// Config holds configuration for the LLM client and oracle.
type Config struct {
	Provider        string
	APIKey          string
	Model           string
	Project         string
	Location        string
	BaseURL         string
	CredentialsFile string
	MaxRetries      int
	RetryDelay      time.Duration
	Timeout         time.Duration
	CacheTTL        time.Duration
	RateLimit       int
	Temperature     float64
	MaxTokens       int
}

// NewClient creates a raw LLM client based on the provided configuration.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "gemini", "vertex", "":
		return newGeminiClient(ctx, cfg)
	case "openai":
		return newOpenAIClient(cfg)
	case "anthropic":
		return newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider: %s", common.ErrInvalidConfig, cfg.Provider)
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 120 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// statusError classifies a non-200 provider response. Throttling and
// server errors are retryable, everything else is permanent.
func statusError(provider string, status int, body []byte) error {
	err := fmt.Errorf("%s API error (status %d): %s", provider, status, strings.TrimSpace(string(body)))
	switch {
	case status == http.StatusTooManyRequests:
		return &common.RetryableError{Err: fmt.Errorf("%w: %w", common.ErrRateLimit, err), Retryable: true}
	case status >= 500:
		return common.Retryable(err)
	default:
		return common.Permanent(err)
	}
}
