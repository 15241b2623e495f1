package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrInputCancelled is returned when input is canceled by context.
var ErrInputCancelled = errors.New("input canceled")

// NonBlockingReader reads lines from a terminal without ignoring context
// cancellation.
type NonBlockingReader struct {
	reader      *bufio.Reader
	readingLock sync.Mutex
}

// NewNonBlockingReader creates a new non-blocking reader.
func NewNonBlockingReader(reader io.Reader) *NonBlockingReader {
	if reader == nil {
		panic("reader cannot be nil")
	}

	return &NonBlockingReader{
		reader: bufio.NewReader(reader),
	}
}

// ReadString reads a string until delim. A canceled context returns
// ErrInputCancelled immediately; the pending read finishes in the background.
func (r *NonBlockingReader) ReadString(ctx context.Context, delim byte) (string, error) {
	if ctx.Err() != nil {
		return "", ErrInputCancelled
	}

	type result struct {
		err   error
		value string
	}
	resultCh := make(chan result, 1)

	go func() {
		r.readingLock.Lock()
		defer r.readingLock.Unlock()

		value, err := r.reader.ReadString(delim)
		resultCh <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case res := <-resultCh:
		return res.value, res.err
	}
}

// ReadLine reads a trimmed line. A final line without a newline is returned
// as is.
func (r *NonBlockingReader) ReadLine(ctx context.Context) (string, error) {
	line, err := r.ReadString(ctx, '\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Prompt writes prompt to w and reads the answer, asking again while the
// answer is blank.
func (r *NonBlockingReader) Prompt(ctx context.Context, w io.Writer, prompt string) (string, error) {
	for {
		if _, err := fmt.Fprint(w, formatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("write prompt: %w", err)
		}
		answer, err := r.ReadLine(ctx)
		if err != nil {
			return "", err
		}
		if answer != "" {
			return answer, nil
		}
	}
}
