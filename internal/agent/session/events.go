package session

// Event is one decoded agent message. The set of implementations is closed:
// *AssistantEvent and *ResultEvent.
type Event interface {
	agentEvent()
}

// Block is one content block of an assistant message: *TextBlock or *ToolUseBlock.
type Block interface {
	contentBlock()
}

// AssistantEvent carries zero or more content blocks from one assistant turn.
type AssistantEvent struct {
	Blocks []Block
}

// ResultEvent is the agent's final message. When HasText is set, Text is the
// authoritative task output.
type ResultEvent struct {
	Text    string
	HasText bool
	Subtype string
	IsError bool
	Turns   int
	CostUSD float64
}

// TextBlock is plain assistant text.
type TextBlock struct {
	Text string
}

// ToolUseBlock is a tool invocation requested by the agent.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input map[string]any
}

func (*AssistantEvent) agentEvent() {}
func (*ResultEvent) agentEvent()    {}

func (*TextBlock) contentBlock()    {}
func (*ToolUseBlock) contentBlock() {}
