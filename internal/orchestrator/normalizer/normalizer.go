// Package normalizer turns decoded agent events into run progress events and
// keeps the task's accumulated output.
package normalizer

import (
	"strings"
	"unicode/utf8"

	"github.com/agentboard/agentboard/internal/agent/session"
	v1 "github.com/agentboard/agentboard/pkg/api/v1"
)

const (
	// PreviewLimit caps task_progress content, in characters.
	PreviewLimit = 200
	// FallbackOutput replaces an empty task output.
	FallbackOutput = "Task completed successfully."
)

// Normalizer is single-use: one per task invocation.
type Normalizer struct {
	taskID string
	text   strings.Builder
	result string
	final  bool
	tools  int
}

// New returns a Normalizer that stamps events with taskID.
func New(taskID string) *Normalizer {
	return &Normalizer{taskID: taskID}
}

// Consume maps one agent event to zero or more progress events.
func (n *Normalizer) Consume(ev session.Event) []v1.ProgressEvent {
	switch e := ev.(type) {
	case *session.AssistantEvent:
		var out []v1.ProgressEvent
		for _, block := range e.Blocks {
			switch b := block.(type) {
			case *session.TextBlock:
				if b.Text == "" {
					continue
				}
				n.text.WriteString(b.Text)
				out = append(out, v1.ProgressEvent{
					Type:    v1.EventTaskProgress,
					TaskID:  n.taskID,
					Content: Preview(b.Text),
				})
			case *session.ToolUseBlock:
				n.tools++
				out = append(out, v1.ProgressEvent{
					Type:    v1.EventLog,
					TaskID:  n.taskID,
					Content: "Using tool: " + b.Name,
				})
			}
		}
		return out
	case *session.ResultEvent:
		if e.HasText {
			n.result = e.Text
			n.final = true
		}
	}
	return nil
}

// Output returns the task result: the final result payload if one arrived,
// else the concatenated text, else FallbackOutput.
func (n *Normalizer) Output() string {
	if n.final && n.result != "" {
		return n.result
	}
	if n.text.Len() > 0 {
		return n.text.String()
	}
	return FallbackOutput
}

// ToolCalls reports how many tool invocations were seen.
func (n *Normalizer) ToolCalls() int {
	return n.tools
}

// Preview truncates text to PreviewLimit characters without splitting a rune.
func Preview(text string) string {
	if utf8.RuneCountInString(text) <= PreviewLimit {
		return text
	}
	count := 0
	for i := range text {
		if count == PreviewLimit {
			return text[:i]
		}
		count++
	}
	return text
}

// LogType is the execution log type a normalized event is stored as.
func LogType(t v1.EventType) v1.LogType {
	switch t {
	case v1.EventTaskProgress:
		return v1.LogTypeProgress
	case v1.EventLog:
		return v1.LogTypeToolUse
	case v1.EventTaskComplete, v1.EventDone, v1.EventResearchResult:
		return v1.LogTypeResult
	case v1.EventTaskFailed, v1.EventError:
		return v1.LogTypeError
	default:
		return v1.LogTypeInfo
	}
}
