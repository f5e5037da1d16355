// Package events names the board events published on the event bus.
package events

// Event types for projects
const (
	ProjectCreated = "project.created"
	ProjectUpdated = "project.updated"
	ProjectDeleted = "project.deleted"
)

// Event types for tasks
const (
	TaskCreated = "task.created"
	TaskUpdated = "task.updated"
	TaskDeleted = "task.deleted"
)

// Event types for execution logs
const (
	LogAppended = "log.appended"
)
