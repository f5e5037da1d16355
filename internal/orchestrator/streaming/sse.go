// Package streaming carries run progress to clients: SSE for the run that a
// request started, and a WebSocket hub that fans out bus events per project.
package streaming

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	v1 "github.com/agentboard/agentboard/pkg/api/v1"
)

// ErrStreamClosed is returned by Emit after Close.
var ErrStreamClosed = errors.New("event stream closed")

// SSEWriter frames progress events as server-sent events on one response.
// It is safe for concurrent use.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

// NewSSEWriter sets the event-stream headers, commits the response and
// returns a writer for it. The response writer must support flushing.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming unsupported by response writer")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// Emit writes one `data: <json>` frame and flushes it.
func (s *SSEWriter) Emit(ev v1.ProgressEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Close marks the stream finished. Only the first call has an effect.
func (s *SSEWriter) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	})
}
