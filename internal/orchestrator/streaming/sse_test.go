package streaming

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/agentboard/agentboard/pkg/api/v1"
)

func TestSSEWriter_HeadersAndFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.Emit(v1.ProgressEvent{Type: v1.EventTaskStart, TaskID: "t-1", Content: "Starting: a"}))
	require.NoError(t, w.Emit(v1.ProgressEvent{Type: v1.EventDone, Content: "All tasks completed."}))
	w.Close()

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.True(t, rec.Flushed)

	assert.Equal(t,
		`data: {"type":"task_start","taskId":"t-1","content":"Starting: a"}`+"\n\n"+
			`data: {"type":"done","content":"All tasks completed."}`+"\n\n",
		rec.Body.String())
}

func TestSSEWriter_EmitAfterClose(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	w.Close()
	w.Close()
	assert.ErrorIs(t, w.Emit(v1.ProgressEvent{Type: v1.EventLog}), ErrStreamClosed)
	assert.Empty(t, rec.Body.String())
}

type plainWriter struct {
	http.ResponseWriter
}

func TestSSEWriter_RequiresFlusher(t *testing.T) {
	_, err := NewSSEWriter(plainWriter{httptest.NewRecorder()})
	assert.Error(t, err)
}

func TestDecoder_RoundTripsWriterOutput(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	require.NoError(t, err)

	sent := []v1.ProgressEvent{
		{Type: v1.EventLog, Content: "Mode: Research"},
		{Type: v1.EventTaskComplete, TaskID: "t-1", Output: "line one\nline two", Content: "Completed: x"},
		{Type: v1.EventResearchResult, TaskID: "t-1", Markdown: "# Title", Content: "Research complete: x"},
		{Type: v1.EventDone, Content: "All tasks completed."},
	}
	for _, ev := range sent {
		require.NoError(t, w.Emit(ev))
	}

	dec := NewDecoder(strings.NewReader(rec.Body.String()))
	for _, want := range sent {
		got, err := dec.Next()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err = dec.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoder_SkipsMalformedFrames(t *testing.T) {
	body := strings.Join([]string{
		": comment",
		"",
		"data: {not json",
		"",
		"event: ping",
		"data: {}",
		"",
		"data: {\"type\":\"log\",\"content\":\"kept\"}",
		"",
		"data: {\"type\":\"done\"}",
	}, "\n")

	dec := NewDecoder(strings.NewReader(body))
	ev, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, v1.ProgressEvent{Type: v1.EventLog, Content: "kept"}, ev)

	// Final frame without a trailing blank line.
	ev, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, v1.EventDone, ev.Type)

	_, err = dec.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoder_HandlesCRLF(t *testing.T) {
	dec := NewDecoder(strings.NewReader("data: {\"type\":\"error\",\"content\":\"boom\"}\r\n\r\n"))
	ev, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, v1.ProgressEvent{Type: v1.EventError, Content: "boom"}, ev)
}
