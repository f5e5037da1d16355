package v1

// Mode selects how a project's tasks are executed.
type Mode string

const (
	ModeBuild    Mode = "build"
	ModeResearch Mode = "research"
)

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	return m == ModeBuild || m == ModeResearch
}

// ProjectStatus is the run-level state of a project.
type ProjectStatus string

const (
	ProjectStatusIdle      ProjectStatus = "idle"
	ProjectStatusExecuting ProjectStatus = "executing"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusFailed    ProjectStatus = "failed"
)

// IsValid reports whether s is a known project status.
func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectStatusIdle, ProjectStatusExecuting, ProjectStatusCompleted, ProjectStatusFailed:
		return true
	}
	return false
}

// TaskStatus is the per-task state.
type TaskStatus string

const (
	TaskStatusBacklog    TaskStatus = "backlog"
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsValid reports whether s is a known task status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusBacklog, TaskStatusTodo, TaskStatusInProgress, TaskStatusDone, TaskStatusFailed:
		return true
	}
	return false
}

// TaskPriority orders tasks when the server builds a run list itself.
type TaskPriority string

const (
	PriorityUrgent TaskPriority = "urgent"
	PriorityHigh   TaskPriority = "high"
	PriorityMedium TaskPriority = "medium"
	PriorityLow    TaskPriority = "low"
	PriorityNone   TaskPriority = "none"
)

// Rank returns a sort key, lower runs first. Unknown values rank with medium.
func (p TaskPriority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityLow:
		return 3
	case PriorityNone:
		return 4
	default:
		return 2
	}
}

// IsValid reports whether p is a known priority.
func (p TaskPriority) IsValid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow, PriorityNone:
		return true
	}
	return false
}

// LogType classifies an execution log row.
type LogType string

const (
	LogTypeInfo     LogType = "info"
	LogTypeToolUse  LogType = "tool_use"
	LogTypeResult   LogType = "result"
	LogTypeError    LogType = "error"
	LogTypeProgress LogType = "progress"
)

// IsValid reports whether t is a known log type.
func (t LogType) IsValid() bool {
	switch t {
	case LogTypeInfo, LogTypeToolUse, LogTypeResult, LogTypeError, LogTypeProgress:
		return true
	}
	return false
}
