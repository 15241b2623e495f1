package query

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/gcp"
	"github.com/Veraticus/tachyon/internal/service"
	"google.golang.org/api/option"
	"google.golang.org/api/texttospeech/v1"
)

// DefaultLanguageCode is used for languages without a known voice.
const DefaultLanguageCode = "en-US"

var languageCodes = map[string]string{
	"hindi":     "hi-IN",
	"tamil":     "ta-IN",
	"telugu":    "te-IN",
	"kannada":   "kn-IN",
	"malayalam": "ml-IN",
	"bengali":   "bn-IN",
	"marathi":   "mr-IN",
	"gujarati":  "gu-IN",
	"english":   "en-US",
}

// LanguageCode maps a language name to its speech voice code.
func LanguageCode(language string) string {
	if code, ok := languageCodes[strings.ToLower(strings.TrimSpace(language))]; ok {
		return code
	}
	return DefaultLanguageCode
}

// Synthesizer turns text into speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, languageCode string) (Audio, error)
}

// TTSSynthesizer uses the Cloud Text-to-Speech API.
type TTSSynthesizer struct {
	service   *texttospeech.Service
	logger    *slog.Logger
	retryOpts service.RetryOptions
}

// NewTTSSynthesizer creates a synthesizer authenticated with credentialsFile,
// or application default credentials when it is empty.
func NewTTSSynthesizer(ctx context.Context, credentialsFile string, logger *slog.Logger) (*TTSSynthesizer, error) {
	httpClient, err := gcp.HTTPClient(ctx, credentialsFile, texttospeech.CloudPlatformScope)
	if err != nil {
		return nil, err
	}
	svc, err := texttospeech.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create text-to-speech service: %w", err)
	}
	return NewTTSSynthesizerWithService(svc, logger), nil
}

// NewTTSSynthesizerWithService wraps an existing service.
func NewTTSSynthesizerWithService(svc *texttospeech.Service, logger *slog.Logger) *TTSSynthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &TTSSynthesizer{
		service: svc,
		logger:  logger,
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// Synthesize requests LINEAR16 audio with a neutral voice.
func (s *TTSSynthesizer) Synthesize(ctx context.Context, text, languageCode string) (Audio, error) {
	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: languageCode,
			SsmlGender:   "NEUTRAL",
		},
		AudioConfig: &texttospeech.AudioConfig{AudioEncoding: "LINEAR16"},
	}

	var resp *texttospeech.SynthesizeSpeechResponse
	err := common.WithRetry(ctx, func() error {
		var callErr error
		resp, callErr = s.service.Text.Synthesize(req).Context(ctx).Do()
		return gcp.ClassifyError(callErr)
	}, s.retryOpts)
	if err != nil {
		return Audio{}, fmt.Errorf("failed to synthesize speech: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return Audio{}, fmt.Errorf("failed to decode synthesized audio: %w", err)
	}
	s.logger.Debug("speech synthesized", "language", languageCode, "bytes", len(data))
	return Audio{MIMEType: WAVMIMEType, Data: data}, nil
}
