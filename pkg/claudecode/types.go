// Package claudecode holds the wire types of the Claude Code CLI stream-json
// output and a line decoder for them.
package claudecode

import "encoding/json"

// Message types from Claude Code CLI
const (
	// MessageTypeSystem is the initial system message with session info
	MessageTypeSystem = "system"
	// MessageTypeAssistant contains text or tool calls from the assistant
	MessageTypeAssistant = "assistant"
	// MessageTypeUser carries tool results fed back to the model
	MessageTypeUser = "user"
	// MessageTypeResult is the final result message
	MessageTypeResult = "result"
)

// Content block types
const (
	BlockTypeText       = "text"
	BlockTypeThinking   = "thinking"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result"
)

// Result subtypes
const (
	ResultSuccess              = "success"
	ResultErrorMaxTurns        = "error_max_turns"
	ResultErrorDuringExecution = "error_during_execution"
)

// CLIMessage represents one line of Claude Code CLI stdout.
// The message type determines which fields are populated.
type CLIMessage struct {
	Type string `json:"type"`

	// For system messages
	SessionID string `json:"session_id,omitempty"`
	Model     string `json:"model,omitempty"`

	// For assistant and user messages
	Message *AssistantMessage `json:"message,omitempty"`

	// For result messages. Result is usually a string but is kept raw
	// because older CLI builds emitted an object.
	Result       json.RawMessage `json:"result,omitempty"`
	Subtype      string          `json:"subtype,omitempty"`
	TotalCostUSD float64         `json:"total_cost_usd,omitempty"`
	DurationMS   int64           `json:"duration_ms,omitempty"`
	IsError      bool            `json:"is_error,omitempty"`
	NumTurns     int             `json:"num_turns,omitempty"`
	Usage        *Usage          `json:"usage,omitempty"`
}

// AssistantMessage contains the assistant's response content.
type AssistantMessage struct {
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content,omitempty"`
	Model      string         `json:"model,omitempty"`
	StopReason string         `json:"stop_reason,omitempty"`
	Usage      *Usage         `json:"usage,omitempty"`
}

// ContentBlock represents a block of content in an assistant message.
type ContentBlock struct {
	Type string `json:"type"`

	// For text blocks
	Text string `json:"text,omitempty"`

	// For thinking blocks
	Thinking string `json:"thinking,omitempty"`

	// For tool_use blocks
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// For tool_result blocks
	ToolUseID string `json:"tool_use_id,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Usage contains token usage information.
type Usage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens,omitempty"`
}

type resultObject struct {
	Text string `json:"text,omitempty"`
}

// ResultText returns the result payload and whether one was present.
// Both the string form and the legacy {"text": ...} form are accepted.
func (m *CLIMessage) ResultText() (string, bool) {
	if len(m.Result) == 0 || string(m.Result) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(m.Result, &s); err == nil {
		return s, true
	}
	var obj resultObject
	if err := json.Unmarshal(m.Result, &obj); err == nil {
		return obj.Text, true
	}
	return "", false
}

// Built-in tool names
const (
	ToolBash      = "Bash"
	ToolWrite     = "Write"
	ToolEdit      = "Edit"
	ToolRead      = "Read"
	ToolGlob      = "Glob"
	ToolGrep      = "Grep"
	ToolWebFetch  = "WebFetch"
	ToolWebSearch = "WebSearch"
)
