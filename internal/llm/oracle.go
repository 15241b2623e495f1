package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/metrics"
	"github.com/Veraticus/tachyon/internal/service"
)

// Oracle wraps a Client with rate limiting, retries, per-call timeouts, and
// an optional response cache. It satisfies Client itself.
type Oracle struct {
	client      Client
	rateLimiter *rateLimiter
	cache       *responseCache
	logger      *slog.Logger
	metrics     *metrics.Metrics
	retryOpts   service.RetryOptions
	timeout     time.Duration
}

// NewOracle wraps client using the retry, rate limit, timeout and cache
// settings in cfg.
func NewOracle(client Client, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Oracle {
	if logger == nil {
		logger = slog.Default()
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	o := &Oracle{
		client:      client,
		rateLimiter: newRateLimiter(cfg.RateLimit),
		logger:      logger,
		metrics:     m,
		retryOpts:   retryOpts,
		timeout:     cfg.Timeout,
	}
	if cfg.CacheTTL > 0 {
		o.cache = newResponseCache(cfg.CacheTTL)
	}
	return o
}

// Generate runs req against the wrapped client.
func (o *Oracle) Generate(ctx context.Context, req Request) (Response, error) {
	key, cacheable := "", false
	if o.cache != nil {
		key, cacheable = cacheKey(req)
		if cacheable {
			if resp, ok := o.cache.get(key); ok {
				o.logger.Debug("oracle cache hit")
				return resp, nil
			}
		}
	}

	start := time.Now()
	var response Response
	err := common.WithRetry(ctx, func() error {
		if err := o.rateLimiter.wait(ctx); err != nil {
			return common.Permanent(err)
		}

		callCtx, cancel := o.withTimeout(ctx)
		defer cancel()

		resp, err := o.client.Generate(callCtx, req)
		if err != nil {
			o.logger.Warn("oracle call attempt failed", "error", err)
			var classified *common.RetryableError
			if errors.As(err, &classified) {
				return err
			}
			if ctx.Err() != nil {
				return common.Permanent(err)
			}
			return common.Retryable(err)
		}
		response = resp
		return nil
	}, o.retryOpts)
	o.metrics.ObserveOracleCall(err, time.Since(start))

	if err != nil {
		return Response{}, fmt.Errorf("oracle call failed: %w", err)
	}

	if cacheable {
		o.cache.set(key, response)
	}
	return response, nil
}

// GenerateJSON requests a JSON response and decodes it into v, retrying the
// decode once with markdown fences stripped.
func (o *Oracle) GenerateJSON(ctx context.Context, req Request, v any) error {
	req.JSON = true
	resp, err := o.Generate(ctx, req)
	if err != nil {
		return err
	}
	if err := ParseJSON(resp.Text, v); err != nil {
		o.logger.Debug("oracle returned unparseable JSON", "text", resp.Text)
		return err
	}
	return nil
}

// GenerateText returns the trimmed text of a single-turn prompt.
func (o *Oracle) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	resp, err := o.Generate(ctx, Request{System: system, Messages: []Message{UserText(prompt)}})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", common.ErrOracleEmpty
	}
	return text, nil
}

func (o *Oracle) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.timeout)
}
