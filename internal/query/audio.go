package query

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Audio is a recorded or synthesized clip.
type Audio struct {
	MIMEType string
	Data     []byte
}

// WAVMIMEType is the MIME type of recorded queries and synthesized answers.
const WAVMIMEType = "audio/wav"

// Recorder captures a spoken query.
type Recorder interface {
	Record(ctx context.Context) (Audio, error)
}

// Speaker plays a spoken answer.
type Speaker interface {
	Play(ctx context.Context, audio Audio) error
}

// FileRecorder reads a pre-recorded WAV file in place of a microphone.
type FileRecorder struct {
	Path string
}

// Record returns the file contents.
func (r FileRecorder) Record(ctx context.Context) (Audio, error) {
	if err := ctx.Err(); err != nil {
		return Audio{}, err
	}
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return Audio{}, fmt.Errorf("failed to read recording: %w", err)
	}
	if len(data) == 0 {
		return Audio{}, fmt.Errorf("recording %s is empty", r.Path)
	}
	return Audio{MIMEType: WAVMIMEType, Data: data}, nil
}

// FileSpeaker writes the answer to a file in place of a speaker.
type FileSpeaker struct {
	Path string
}

// Play writes the clip to Path, creating parent directories.
func (s FileSpeaker) Play(ctx context.Context, audio Audio) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o750); err != nil {
		return fmt.Errorf("failed to create audio directory: %w", err)
	}
	if err := os.WriteFile(s.Path, audio.Data, 0o600); err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}
	return nil
}
