// Package cli provides styled terminal output using lipgloss.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// InterruptHandler cancels a command's context on SIGINT/SIGTERM and tells
// the user what was left unfinished.
type InterruptHandler struct {
	writer      io.Writer
	cancelFunc  context.CancelFunc
	operation   string
	hint        string
	interrupted bool
	mu          sync.Mutex
}

// NewInterruptHandler creates a new interrupt handler.
func NewInterruptHandler(writer io.Writer) *InterruptHandler {
	if writer == nil {
		writer = os.Stdout
	}
	return &InterruptHandler{
		writer:    writer,
		operation: "Operation",
	}
}

// HandleInterrupts returns a context canceled on the first interrupt.
// operation names what was running; hint, when set, is shown below it.
// Signal handling stops once ctx is done.
func (h *InterruptHandler) HandleInterrupts(ctx context.Context, operation, hint string) context.Context {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancelFunc = cancel
	if operation != "" {
		h.operation = operation
	}
	h.hint = hint
	h.mu.Unlock()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			h.interrupt()
		case <-ctx.Done():
		}
	}()

	return ctx
}

// interrupt records the interrupt, prints the message once, and cancels.
func (h *InterruptHandler) interrupt() {
	h.mu.Lock()
	if !h.interrupted {
		h.interrupted = true
		h.showInterruptMessage()
	}
	cancel := h.cancelFunc
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (h *InterruptHandler) showInterruptMessage() {
	msg := "\n\n" + FormatWarning(h.operation+" interrupted!")

	if h.hint != "" {
		msg += "\n" + FormatInfo(h.hint)
	}

	msg += "\n" + FormatInfo("See you later! "+TachyonIcon) + "\n"

	if _, err := fmt.Fprint(h.writer, msg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write interrupt message: %v\n", err)
	}
}

// WasInterrupted returns true if the process was interrupted.
func (h *InterruptHandler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}
