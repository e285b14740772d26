package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"
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

func startWatch(handler *InterruptHandler, showPending bool) (context.Context, chan os.Signal, chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	handler.cancelFunc = cancel
	handler.showPending = showPending

	signals := make(chan os.Signal, 2)
	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.watch(ctx, signals)
	}()
	return ctx, signals, done
}

func TestWatch_SignalCancels(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)

	ctx, signals, done := startWatch(handler, true)
	signals <- syscall.SIGINT

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not canceled")
	}
	<-done

	assert.True(t, handler.WasInterrupted())
	outputStr := output.String()
	assert.Contains(t, outputStr, "Sync interrupted!")
	assert.Contains(t, outputStr, "Unsynced changes stay queued")
	assert.Contains(t, outputStr, "fintrack sync")
}

func TestWatch_MessageShownOnce(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)

	_, signals, done := startWatch(handler, false)
	signals <- syscall.SIGINT
	signals <- syscall.SIGTERM
	<-done

	assert.Equal(t, 1, strings.Count(output.String(), "Sync interrupted!"))
}

func TestStop_IsNotAnInterrupt(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)

	ctx := handler.HandleInterrupts(context.Background(), true)
	handler.Stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not canceled")
	}

	// Let the watcher goroutine observe the cancellation.
	time.Sleep(20 * time.Millisecond)
	assert.False(t, handler.WasInterrupted())
	assert.Empty(t, output.String())
}

func TestShowInterruptMessage(t *testing.T) {
	tests := []struct {
		name        string
		expected    []string
		notExpected []string
		showPending bool
	}{
		{
			name:        "with pending changes",
			showPending: true,
			expected: []string{
				"Sync interrupted!",
				"Unsynced changes stay queued",
				"Resume with: fintrack sync",
				"See you later!",
			},
			notExpected: []string{},
		},
		{
			name:        "without pending changes",
			showPending: false,
			expected: []string{
				"Sync interrupted!",
				"See you later!",
			},
			notExpected: []string{
				"Unsynced changes",
				"Resume with",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			handler := &InterruptHandler{
				writer:      &output,
				showPending: tt.showPending,
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
