// Package query answers spoken or typed questions about a user's purchase
// history, replying in the language the question was asked in.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/llm"
	"github.com/Veraticus/tachyon/internal/metrics"
	"github.com/Veraticus/tachyon/internal/model"
)

// Mode selects how the query arrives.
type Mode string

// Query modes.
const (
	ModeVoice Mode = "voice"
	ModeText  Mode = "text"
)

// Query pipeline errors.
var (
	ErrNoHistory   = errors.New("no recent records found")
	ErrEmptyQuery  = errors.New("text mode requires a query")
	ErrUnknownMode = errors.New("unknown query mode")
	ErrNoAudio     = errors.New("voice mode requires a recorder and speaker")
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeVoice:
		return ModeVoice, nil
	case ModeText:
		return ModeText, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Oracle is the slice of *llm.Oracle the pipeline calls.
type Oracle interface {
	GenerateText(ctx context.Context, system, prompt string) (string, error)
	GenerateJSON(ctx context.Context, req llm.Request, v any) error
}

// Pipeline runs detect, search, summarise and translate against the oracle.
type Pipeline struct {
	oracle      Oracle
	history     HistorySource
	recorder    Recorder
	speaker     Speaker
	synthesizer Synthesizer
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithVoice enables voice mode.
func WithVoice(recorder Recorder, synthesizer Synthesizer, speaker Speaker) Option {
	return func(p *Pipeline) {
		p.recorder = recorder
		p.synthesizer = synthesizer
		p.speaker = speaker
	}
}

// WithMetrics records query runs.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline creates a query pipeline.
func NewPipeline(oracle Oracle, history HistorySource, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{oracle: oracle, history: history, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process answers one query for name. In voice mode the query is recorded
// and the answer is also spoken; query is ignored.
func (p *Pipeline) Process(ctx context.Context, name string, mode Mode, query string) (*model.QueryResult, error) {
	result, err := p.process(ctx, name, mode, query)
	p.metrics.IncrementQueryRun(string(mode), err)
	return result, err
}

func (p *Pipeline) process(ctx context.Context, name string, mode Mode, query string) (*model.QueryResult, error) {
	switch mode {
	case ModeVoice:
		if p.recorder == nil || p.speaker == nil || p.synthesizer == nil {
			return nil, ErrNoAudio
		}
	case ModeText:
		if strings.TrimSpace(query) == "" {
			return nil, ErrEmptyQuery
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	history, err := p.history.History(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%w for user '%s'", ErrNoHistory, name)
	}

	result := &model.QueryResult{}
	if mode == ModeVoice {
		audio, err := p.recorder.Record(ctx)
		if err != nil {
			return nil, err
		}
		detected, err := p.Transcribe(ctx, name, audio)
		if err != nil {
			return nil, err
		}
		result.Language = detected.Language
		result.Query = detected.Translation
	} else {
		result.Query = strings.TrimSpace(query)
		if result.Language, err = p.DetectLanguage(ctx, name, result.Query); err != nil {
			return nil, err
		}
	}
	p.logger.Info("query received", "user", name, "mode", mode, "language", result.Language, "query", result.Query)

	if result.Search, err = p.Search(ctx, name, result.Query, history); err != nil {
		return nil, err
	}
	p.logger.Debug("search completed", "user", name, "length", len(result.Search))

	if result.Summary, err = p.oracle.GenerateText(ctx, "", fmt.Sprintf(summarizePrompt, name, result.Search)); err != nil {
		return nil, fmt.Errorf("failed to summarize: %w", err)
	}
	if result.Answer, err = p.oracle.GenerateText(ctx, "", fmt.Sprintf(translatePrompt, name, result.Language, result.Summary)); err != nil {
		return nil, fmt.Errorf("failed to translate: %w", err)
	}

	if mode == ModeVoice {
		code := LanguageCode(result.Language)
		audio, err := p.synthesizer.Synthesize(ctx, result.Answer, code)
		if err != nil {
			return nil, err
		}
		if err := p.speaker.Play(ctx, audio); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Transcribe asks the oracle to detect, transcribe and translate a spoken
// query.
func (p *Pipeline) Transcribe(ctx context.Context, name string, audio Audio) (model.Transcription, error) {
	req := llm.Request{
		Messages: []llm.Message{{
			Role: llm.RoleUser,
			Parts: []llm.Part{
				llm.TextPart(fmt.Sprintf(transcribePrompt, name)),
				llm.BlobPart(audio.MIMEType, audio.Data),
			},
		}},
	}

	var out model.Transcription
	if err := p.oracle.GenerateJSON(ctx, req, &out); err != nil {
		return model.Transcription{}, fmt.Errorf("could not parse audio: %w", err)
	}
	if strings.TrimSpace(out.Translation) == "" {
		return model.Transcription{}, fmt.Errorf("could not parse audio: %w: empty translation", common.ErrOracleResponse)
	}
	return out, nil
}

// DetectLanguage returns the language name of a typed query.
func (p *Pipeline) DetectLanguage(ctx context.Context, name, query string) (string, error) {
	text, err := p.oracle.GenerateText(ctx, "", fmt.Sprintf(detectPrompt, name, query))
	if err != nil {
		return "", fmt.Errorf("failed to detect language: %w", err)
	}
	return strings.Trim(text, "\"'` \n."), nil
}

// Search asks the oracle to pick the history entries relevant to query.
func (p *Pipeline) Search(ctx context.Context, name, query string, history []model.HistoryEntry) (string, error) {
	data, err := json.Marshal(history)
	if err != nil {
		return "", fmt.Errorf("failed to encode history: %w", err)
	}
	var found json.RawMessage
	req := llm.Request{Messages: []llm.Message{llm.UserText(fmt.Sprintf(searchPrompt, name, data, query))}}
	if err := p.oracle.GenerateJSON(ctx, req, &found); err != nil {
		return "", fmt.Errorf("failed to search: %w", err)
	}
	return string(found), nil
}

const transcribePrompt = `This prompt is for: %s
Please detect the spoken language, transcribe the speech, and translate it into English.
Respond ONLY in valid JSON:
{"language": "...", "transcription": "...", "translation": "..."}`

const detectPrompt = `This prompt is for: %s
Detect the language of the following query and respond ONLY with the language name:

%s`

const searchPrompt = `This prompt is for: %s
Search the following purchase history and return only the relevant information as JSON.

History:
%s

User Query: %q`

const summarizePrompt = `This prompt is for: %s
Summarize the following JSON in English in a short and friendly way:

%s`

const translatePrompt = `This prompt is for: %s
Translate the following into %s. Do not add any extra info. Just raw text.

%s`
