package normalizer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/agentboard/agentboard/internal/agent/session"
	v1 "github.com/agentboard/agentboard/pkg/api/v1"
)

func text(s string) *session.AssistantEvent {
	return &session.AssistantEvent{Blocks: []session.Block{&session.TextBlock{Text: s}}}
}

func TestResultReplacesAccumulatedText(t *testing.T) {
	n := New("t1")
	n.Consume(text("foo"))
	n.Consume(text("bar"))
	if got := n.Output(); got != "foobar" {
		t.Fatalf("expected accumulated text, got %q", got)
	}

	n.Consume(&session.ResultEvent{Text: "final", HasText: true})
	if got := n.Output(); got != "final" {
		t.Errorf("expected result to override, got %q", got)
	}
}

func TestResultWithoutPayloadKeepsText(t *testing.T) {
	n := New("t1")
	n.Consume(text("partial work"))
	n.Consume(&session.ResultEvent{Subtype: "error_max_turns", IsError: true})
	if got := n.Output(); got != "partial work" {
		t.Errorf("expected partial text, got %q", got)
	}
}

func TestFallbackWhenNothingProduced(t *testing.T) {
	n := New("t1")
	n.Consume(&session.AssistantEvent{})
	n.Consume(text(""))
	n.Consume(&session.ResultEvent{})
	if got := n.Output(); got != FallbackOutput {
		t.Errorf("expected fallback, got %q", got)
	}
}

func TestProgressPreviewIsTruncated(t *testing.T) {
	long := strings.Repeat("é", 450)
	n := New("t1")
	events := n.Consume(text(long))

	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	ev := events[0]
	if ev.Type != v1.EventTaskProgress || ev.TaskID != "t1" {
		t.Errorf("unexpected event %+v", ev)
	}
	if c := utf8.RuneCountInString(ev.Content); c != PreviewLimit {
		t.Errorf("expected %d characters, got %d", PreviewLimit, c)
	}
	if !utf8.ValidString(ev.Content) {
		t.Error("preview split a rune")
	}
	if n.Output() != long {
		t.Error("accumulated output must keep the full text")
	}
}

func TestToolUseEmitsLogWithoutTouchingOutput(t *testing.T) {
	n := New("t9")
	events := n.Consume(&session.AssistantEvent{Blocks: []session.Block{
		&session.TextBlock{Text: "let me look"},
		&session.ToolUseBlock{ID: "x", Name: "Grep"},
	}})

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Type != v1.EventLog || events[1].Content != "Using tool: Grep" {
		t.Errorf("unexpected tool event %+v", events[1])
	}
	if n.Output() != "let me look" || n.ToolCalls() != 1 {
		t.Errorf("tool use changed output: %q", n.Output())
	}
}

func TestPreviewShortText(t *testing.T) {
	if Preview("short") != "short" {
		t.Error("short text should be unchanged")
	}
	exact := strings.Repeat("a", PreviewLimit)
	if Preview(exact) != exact {
		t.Error("text at the limit should be unchanged")
	}
}

func TestLogType(t *testing.T) {
	cases := map[v1.EventType]v1.LogType{
		v1.EventTaskProgress: v1.LogTypeProgress,
		v1.EventLog:          v1.LogTypeToolUse,
		v1.EventTaskComplete: v1.LogTypeResult,
		v1.EventTaskFailed:   v1.LogTypeError,
		v1.EventTaskStart:    v1.LogTypeInfo,
	}
	for in, want := range cases {
		if got := LogType(in); got != want {
			t.Errorf("LogType(%s) = %s, want %s", in, got, want)
		}
	}
}
