// Package recorder persists run side effects without blocking the run.
//
// Writes are queued to a single goroutine and applied in order, each with its
// own timeout detached from the request context. A full queue drops the write;
// a failed write is logged at debug and forgotten. The live event stream, not
// the database, is authoritative for a connected client.
package recorder

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentboard/agentboard/internal/common/logger"
	"github.com/agentboard/agentboard/internal/task/models"
	v1 "github.com/agentboard/agentboard/pkg/api/v1"
)

const (
	DefaultQueueSize    = 1024
	DefaultWriteTimeout = 5 * time.Second
)

var (
	// ErrTimeout is returned when an awaited write did not finish in time.
	ErrTimeout = errors.New("recorder: timed out waiting for write")
	// ErrClosed is returned for awaited writes after Close.
	ErrClosed = errors.New("recorder: closed")
)

// Store is the write side of the board repository.
type Store interface {
	InsertLog(ctx context.Context, entry *models.ExecutionLog) error
	UpdateTaskStatus(ctx context.Context, id string, status v1.TaskStatus, output *string) error
	UpdateProjectStatus(ctx context.Context, id string, status v1.ProjectStatus) error
	CreateResearchSheet(ctx context.Context, sheet *models.ResearchSheet) error
}

// Options tunes the recorder. Zero values select the defaults.
type Options struct {
	QueueSize    int
	WriteTimeout time.Duration
}

type op struct {
	name string
	fn   func(ctx context.Context) error
	done chan error // nil for fire-and-forget writes
}

// Recorder is bound to one project for the lifetime of one run.
// A Recorder with an empty project id records nothing.
type Recorder struct {
	store     Store
	projectID string
	timeout   time.Duration
	logger    *logger.Logger

	ops    chan op
	exited chan struct{}

	mu      sync.Mutex
	closed  bool
	lastTS  time.Time
	dropped int
}

// New starts the writer goroutine. Call Close when the run ends.
func New(store Store, projectID string, opts Options, log *logger.Logger) *Recorder {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	r := &Recorder{
		store:     store,
		projectID: projectID,
		timeout:   opts.WriteTimeout,
		logger:    log.WithFields(zap.String("component", "recorder"), zap.String("project_id", projectID)),
		exited:    make(chan struct{}),
	}
	if !r.Enabled() {
		close(r.exited)
		return r
	}
	r.ops = make(chan op, opts.QueueSize)
	go r.loop()
	return r
}

// Enabled reports whether writes are persisted at all.
func (r *Recorder) Enabled() bool {
	return r.projectID != "" && r.store != nil
}

func (r *Recorder) loop() {
	defer close(r.exited)
	for o := range r.ops {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		err := o.fn(ctx)
		cancel()
		if err != nil {
			r.logger.Debug("persistence write failed", zap.String("op", o.name), zap.Error(err))
		}
		if o.done != nil {
			o.done <- err
		}
	}
}

// enqueue never blocks. It reports whether the op was accepted.
func (r *Recorder) enqueue(o op) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	select {
	case r.ops <- o:
		return true
	default:
		r.dropped++
		r.logger.Warn("persistence queue full, dropping write", zap.String("op", o.name), zap.Int("dropped", r.dropped))
		return false
	}
}

// nextTimestamp returns a time strictly after the previous one so log rows
// sort in emission order even when the clock does not advance.
func (r *Recorder) nextTimestamp() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts := time.Now().UTC().Truncate(time.Microsecond)
	if !ts.After(r.lastTS) {
		ts = r.lastTS.Add(time.Microsecond)
	}
	r.lastTS = ts
	return ts
}

// Log appends an execution log row. An empty taskID scopes it to the project.
func (r *Recorder) Log(taskID string, logType v1.LogType, content string) {
	if !r.Enabled() {
		return
	}
	entry := &models.ExecutionLog{
		ProjectID: r.projectID,
		TaskID:    taskID,
		Timestamp: r.nextTimestamp(),
		Type:      logType,
		Content:   content,
	}
	r.enqueue(op{name: "insert_log", fn: func(ctx context.Context) error {
		return r.store.InsertLog(ctx, entry)
	}})
}

// TaskStatus updates a task's status, and its output when output is non-nil.
func (r *Recorder) TaskStatus(taskID string, status v1.TaskStatus, output *string) {
	if !r.Enabled() {
		return
	}
	r.enqueue(r.taskStatusOp(taskID, status, output))
}

// ProjectStatus updates the project's run status.
func (r *Recorder) ProjectStatus(status v1.ProjectStatus) {
	if !r.Enabled() {
		return
	}
	r.enqueue(r.projectStatusOp(status))
}

// SettleTask records a task's final status. Unlike TaskStatus it is not
// dropped on a full queue: it waits up to timeout behind every earlier write.
func (r *Recorder) SettleTask(taskID string, status v1.TaskStatus, output *string, timeout time.Duration) error {
	if !r.Enabled() {
		return nil
	}
	return r.await(r.taskStatusOp(taskID, status, output), timeout)
}

// SettleProject records the project's final status the way SettleTask does.
func (r *Recorder) SettleProject(status v1.ProjectStatus, timeout time.Duration) error {
	if !r.Enabled() {
		return nil
	}
	return r.await(r.projectStatusOp(status), timeout)
}

func (r *Recorder) taskStatusOp(taskID string, status v1.TaskStatus, output *string) op {
	var out *string
	if output != nil {
		s := *output
		out = &s
	}
	return op{name: "update_task_status", fn: func(ctx context.Context) error {
		return r.store.UpdateTaskStatus(ctx, taskID, status, out)
	}}
}

func (r *Recorder) projectStatusOp(status v1.ProjectStatus) op {
	return op{name: "update_project_status", fn: func(ctx context.Context) error {
		return r.store.UpdateProjectStatus(ctx, r.projectID, status)
	}}
}

// SaveSheet stores a research sheet behind every earlier write and waits up
// to timeout for the result.
func (r *Recorder) SaveSheet(taskID, content string, timeout time.Duration) error {
	if !r.Enabled() {
		return nil
	}
	sheet := &models.ResearchSheet{ProjectID: r.projectID, TaskID: taskID, Content: content}
	return r.await(op{name: "create_research_sheet", fn: func(ctx context.Context) error {
		return r.store.CreateResearchSheet(ctx, sheet)
	}}, timeout)
}

// Flush waits up to timeout for every write queued so far. It reports
// whether the queue drained in time.
func (r *Recorder) Flush(timeout time.Duration) bool {
	if !r.Enabled() {
		return true
	}
	err := r.await(op{name: "flush", fn: func(context.Context) error { return nil }}, timeout)
	return err == nil
}

func (r *Recorder) await(o op, timeout time.Duration) error {
	o.done = make(chan error, 1)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// Awaited ops may block on a full queue, bounded by the same timeout.
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	select {
	case r.ops <- o:
		r.mu.Unlock()
	case <-timer.C:
		r.mu.Unlock()
		return ErrTimeout
	}

	select {
	case err := <-o.done:
		return err
	case <-timer.C:
		return ErrTimeout
	}
}

// Dropped returns how many writes were discarded because the queue was full.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close stops accepting writes and waits for queued ones to finish.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.exited
		return
	}
	r.closed = true
	if r.ops != nil {
		close(r.ops)
	}
	r.mu.Unlock()
	<-r.exited
}
