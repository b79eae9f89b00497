package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBuffer = 1000

// asyncWriter hands formatted records to a single writer goroutine. Writes
// never block: when the buffer is full the record is dropped.
type asyncWriter struct {
	out    io.Writer
	ch     chan []byte
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

func newAsyncWriter(out io.Writer, buffer int) *asyncWriter {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	w := &asyncWriter{
		out:  out,
		ch:   make(chan []byte, buffer),
		done: make(chan struct{}),
	}

	go func() {
		defer close(w.done)
		for msg := range w.ch {
			_, _ = w.out.Write(msg)
		}
	}()

	return w
}

func (w *asyncWriter) Write(p []byte) (int, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return len(p), nil
	}

	msg := make([]byte, len(p))
	copy(msg, p)
	select {
	case w.ch <- msg:
	default:
	}
	return len(p), nil
}

// Close drains buffered records and stops the writer goroutine.
func (w *asyncWriter) Close() error {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.ch)
		w.mu.Unlock()
	})
	<-w.done
	return nil
}

// New builds a logger writing to stderr through a buffered channel.
// format is "json" or "text".
func New(level, format string) (*slog.Logger, func() error) {
	return NewWithWriter(os.Stderr, level, format, defaultBuffer)
}

func NewWithWriter(out io.Writer, level, format string, buffer int) (*slog.Logger, func() error) {
	w := newAsyncWriter(out, buffer)
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), w.Close
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
