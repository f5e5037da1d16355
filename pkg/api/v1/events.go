package v1

// EventType names a progress event on the run stream.
type EventType string

const (
	EventTaskStart      EventType = "task_start"
	EventTaskProgress   EventType = "task_progress"
	EventTaskComplete   EventType = "task_complete"
	EventTaskFailed     EventType = "task_failed"
	EventLog            EventType = "log"
	EventResearchResult EventType = "research_result"
	EventDone           EventType = "done"
	EventError          EventType = "error"
)

// IsTerminal reports whether the event ends a run stream.
func (t EventType) IsTerminal() bool {
	return t == EventDone || t == EventError
}

// ProgressEvent is one frame of the run stream.
type ProgressEvent struct {
	Type     EventType `json:"type"`
	TaskID   string    `json:"taskId,omitempty"`
	Content  string    `json:"content,omitempty"`
	Output   string    `json:"output,omitempty"`
	Markdown string    `json:"markdown,omitempty"`
}

// RunTask is a task as supplied in a run request.
type RunTask struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

// RunRequest starts a run. Tasks execute in the order given.
type RunRequest struct {
	Tasks             []RunTask `json:"tasks" yaml:"tasks"`
	ProjectID         string    `json:"projectId" yaml:"projectId"`
	ProjectName       string    `json:"projectName" yaml:"projectName"`
	ProjectIdentifier string    `json:"projectIdentifier" yaml:"projectIdentifier"`
	Mode              Mode      `json:"mode" yaml:"mode"`
}

// RunInfo describes an active run.
type RunInfo struct {
	RunID     string `json:"runId"`
	ProjectID string `json:"projectId"`
	Mode      Mode   `json:"mode"`
	TaskCount int    `json:"taskCount"`
	StartedAt string `json:"startedAt"`
}
