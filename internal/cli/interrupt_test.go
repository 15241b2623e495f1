package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// syncBuffer provides thread-safe access to a bytes.Buffer.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (s *syncBuffer) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestNewInterruptHandler(t *testing.T) {
	tests := []struct {
		writer io.Writer
		name   string
	}{
		{
			name:   "with custom writer",
			writer: &bytes.Buffer{},
		},
		{
			name:   "with nil writer",
			writer: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewInterruptHandler(tt.writer)
			assert.NotNil(t, handler)
			assert.NotNil(t, handler.writer)
			assert.False(t, handler.interrupted)
		})
	}
}

func TestHandleInterrupts(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)

	ctx := handler.HandleInterrupts(context.Background(), "Assessment", "Re-run: tachyon assess --uid u1 --location Nellore")

	select {
	case <-ctx.Done():
		t.Fatal("Context should not be canceled initially")
	default:
	}

	handler.interrupt()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("Context should be canceled after an interrupt")
	}

	assert.True(t, handler.WasInterrupted())
	outputStr := output.String()
	assert.Contains(t, outputStr, "Assessment interrupted!")
	assert.Contains(t, outputStr, "Re-run: tachyon assess")
}

func TestHandleInterrupts_ParentDone(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)

	parent, cancel := context.WithCancel(context.Background())
	ctx := handler.HandleInterrupts(parent, "Import", "")
	cancel()

	<-ctx.Done()
	time.Sleep(10 * time.Millisecond)

	assert.False(t, handler.WasInterrupted())
	assert.Empty(t, output.String())
}

func TestMultipleInterrupts(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)
	_ = handler.HandleInterrupts(context.Background(), "Query", "")

	handler.interrupt()
	handler.interrupt()

	count := strings.Count(output.String(), "Query interrupted!")
	assert.Equal(t, 1, count, "Interrupt message should only be shown once")
}

func TestShowInterruptMessage(t *testing.T) {
	tests := []struct {
		name        string
		operation   string
		hint        string
		expected    []string
		notExpected []string
	}{
		{
			name:      "with hint",
			operation: "Import",
			hint:      "Records saved so far are kept.",
			expected: []string{
				"Import interrupted!",
				"Records saved so far are kept.",
				"See you later!",
			},
		},
		{
			name:      "without hint",
			operation: "Operation",
			expected: []string{
				"Operation interrupted!",
				"See you later!",
			},
			notExpected: []string{
				"Records saved",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			handler := &InterruptHandler{
				writer:    &output,
				operation: tt.operation,
				hint:      tt.hint,
			}

			handler.showInterruptMessage()

			outputStr := output.String()
			for _, expected := range tt.expected {
				assert.Contains(t, outputStr, expected)
			}
			for _, notExpected := range tt.notExpected {
				assert.NotContains(t, outputStr, notExpected)
			}
		})
	}
}
