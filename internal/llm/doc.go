// Package llm provides the oracle used by the agent pipelines. It supports
// Gemini (API key or Vertex AI), OpenAI and Anthropic, with tool calling,
// inline audio, retry logic, rate limiting, and response caching.
package llm
