// Package orchestrator drives one run: it executes the run's tasks strictly in
// order through the agent session adapter, forwards normalized progress to
// the client stream and the event bus, and records every side effect.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/agentboard/agentboard/internal/agent/registry"
	"github.com/agentboard/agentboard/internal/agent/session"
	"github.com/agentboard/agentboard/internal/common/logger"
	"github.com/agentboard/agentboard/internal/common/tracing"
	"github.com/agentboard/agentboard/internal/events/bus"
	"github.com/agentboard/agentboard/internal/orchestrator/executor"
	"github.com/agentboard/agentboard/internal/orchestrator/metrics"
	"github.com/agentboard/agentboard/internal/orchestrator/normalizer"
	"github.com/agentboard/agentboard/internal/orchestrator/prompt"
	"github.com/agentboard/agentboard/internal/orchestrator/recorder"
	"github.com/agentboard/agentboard/internal/task/models"
	v1 "github.com/agentboard/agentboard/pkg/api/v1"
)

const (
	// CancelledOutput is stored as the output of every task a cancellation cut short.
	CancelledOutput = "Cancelled by user"

	msgAllCompleted = "All tasks completed."
	msgCancelled    = "Execution cancelled."
	msgCancelledLog = "Execution cancelled by user"

	defaultFlushTimeout = 5 * time.Second
	defaultSheetTimeout = 10 * time.Second
)

// Store is everything the orchestrator reads or writes during a run.
type Store interface {
	recorder.Store
	ListTasksByProject(ctx context.Context, projectID string) ([]*models.Task, error)
}

// Profiles resolves the agent profile of a mode.
type Profiles interface {
	Get(mode v1.Mode) (registry.Profile, error)
}

// Sink receives the run's progress events in emission order.
type Sink interface {
	Emit(event v1.ProgressEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(event v1.ProgressEvent) error

// Emit calls f.
func (f SinkFunc) Emit(event v1.ProgressEvent) error {
	return f(event)
}

// workDirMapper is implemented by runners that execute the agent somewhere
// the host workspace path is not visible, such as inside a container.
type workDirMapper interface {
	AgentPath(hostDir string) string
}

// Options configures an Orchestrator. Zero values select defaults; Bus and
// Metrics are optional.
type Options struct {
	RecorderQueueSize int
	WriteTimeout      time.Duration
	FlushTimeout      time.Duration
	SheetTimeout      time.Duration
	Bus               bus.EventBus
	Metrics           *metrics.Metrics
}

// Result summarizes a finished run.
type Result struct {
	Status    v1.ProjectStatus
	Completed int
	Failed    int
	Cancelled bool
	// Err is set when the run ended with an error event.
	Err error
}

// Orchestrator is safe for concurrent use; each Run owns its own state.
type Orchestrator struct {
	runner   session.Runner
	profiles Profiles
	store    Store
	opts     Options
	logger   *logger.Logger
	tracer   trace.Tracer
}

// New creates an Orchestrator.
func New(runner session.Runner, profiles Profiles, store Store, opts Options, log *logger.Logger) *Orchestrator {
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = defaultFlushTimeout
	}
	if opts.SheetTimeout <= 0 {
		opts.SheetTimeout = defaultSheetTimeout
	}
	return &Orchestrator{
		runner:   runner,
		profiles: profiles,
		store:    store,
		opts:     opts,
		logger:   log.WithFields(zap.String("component", "orchestrator")),
		tracer:   tracing.Tracer("agentboard-orchestrator"),
	}
}

// Run executes every task of run and returns when the terminal event has
// been emitted. Cancellation is observed through run.Context(); ctx only
// carries request-scoped values such as the trace span.
func (o *Orchestrator) Run(ctx context.Context, run *executor.Run, sink Sink) (res Result) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.run", trace.WithAttributes(
		attribute.String("run.id", run.ID),
		attribute.String("project.id", run.ProjectID),
		attribute.String("run.mode", string(run.Mode)),
		attribute.Int("run.tasks", len(run.Tasks)),
	))
	defer span.End()

	rec := recorder.New(o.store, run.ProjectID, recorder.Options{
		QueueSize:    o.opts.RecorderQueueSize,
		WriteTimeout: o.opts.WriteTimeout,
	}, o.logger)
	defer rec.Close()

	s := &runState{
		o:        o,
		run:      run,
		ctx:      run.Context(),
		traceCtx: ctx,
		sink:     sink,
		rec:      rec,
		logger:   o.logger.WithRunID(run.ID).WithProjectID(run.ProjectID),
		outcomes: make(map[string]v1.TaskStatus, len(run.Tasks)),
	}

	o.opts.Metrics.RunStarted(string(run.Mode), len(run.Tasks))
	defer o.opts.Metrics.RunFinished()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("run panicked", zap.Any("panic", r))
			s.abort(fmt.Errorf("execution failed: %v", r))
			res = s.result()
		}
		if res.Err != nil {
			span.SetStatus(codes.Error, res.Err.Error())
		}
		span.SetAttributes(attribute.String("run.status", string(res.Status)))
	}()

	s.execute()
	return s.result()
}

// runState is the mutable state of one Run call. It is confined to the
// goroutine executing the run.
type runState struct {
	o        *Orchestrator
	run      *executor.Run
	ctx      context.Context
	traceCtx context.Context
	sink     Sink
	rec      *recorder.Recorder
	logger   *logger.Logger

	outcomes   map[string]v1.TaskStatus
	completed  int
	failed     int
	cancelled  bool
	terminated bool
	status     v1.ProjectStatus
	err        error
}

func (s *runState) execute() {
	profile, err := s.o.profiles.Get(s.run.Mode)
	if err != nil {
		s.abort(err)
		return
	}
	if !s.run.IsResearch() && s.run.WorkDir == "" {
		s.abort(errors.New("build workspace is not provisioned"))
		return
	}

	s.rec.ProjectStatus(v1.ProjectStatusExecuting)
	if s.run.IsResearch() {
		s.info("", "Mode: Research")
	} else {
		s.info("", "Workspace: "+s.run.WorkDir)
	}

	for i, task := range s.run.Tasks {
		if s.ctx.Err() != nil {
			s.cancel(i)
			return
		}
		if !s.runTask(i, task, profile) {
			s.cancel(i)
			return
		}
	}
	s.finish()
}

// runTask executes one task. It returns false when the run was cancelled
// while the task was in flight.
func (s *runState) runTask(index int, task v1.RunTask, profile registry.Profile) bool {
	log := s.logger.WithTaskID(task.ID)
	_, span := s.o.tracer.Start(s.traceCtx, "orchestrator.task", trace.WithAttributes(
		attribute.String("task.id", task.ID),
		attribute.Int("task.index", index),
	))
	defer span.End()

	started := time.Now()
	content := "Starting: " + task.Title
	s.emit(v1.ProgressEvent{Type: v1.EventTaskStart, TaskID: task.ID, Content: content})
	s.rec.Log(task.ID, v1.LogTypeInfo, content)
	s.rec.TaskStatus(task.ID, v1.TaskStatusInProgress, nil)
	s.outcomes[task.ID] = v1.TaskStatusInProgress

	output, toolCalls, err := s.invoke(index, task, profile)
	if s.ctx.Err() != nil {
		span.SetStatus(codes.Error, "cancelled")
		s.o.opts.Metrics.TaskFinished(string(s.run.Mode), metrics.OutcomeCancelled, time.Since(started))
		log.Info("task cancelled")
		return false
	}

	if err != nil {
		msg := err.Error()
		span.SetStatus(codes.Error, msg)
		s.o.opts.Metrics.TaskFinished(string(s.run.Mode), metrics.OutcomeFailed, time.Since(started))
		log.Warn("task failed", zap.Error(err))

		content := "Failed: " + msg
		s.emit(v1.ProgressEvent{Type: v1.EventTaskFailed, TaskID: task.ID, Content: content, Output: msg})
		s.rec.Log(task.ID, v1.LogTypeError, content)
		s.rec.TaskStatus(task.ID, v1.TaskStatusFailed, &msg)
		s.outcomes[task.ID] = v1.TaskStatusFailed
		s.failed++
		return true
	}

	s.o.opts.Metrics.TaskFinished(string(s.run.Mode), metrics.OutcomeCompleted, time.Since(started))
	log.Info("task completed",
		zap.Duration("duration", time.Since(started)),
		zap.Int("tool_calls", toolCalls))

	content = "Completed: " + task.Title
	s.emit(v1.ProgressEvent{Type: v1.EventTaskComplete, TaskID: task.ID, Content: content, Output: output})
	s.rec.Log(task.ID, v1.LogTypeResult, content)
	s.rec.TaskStatus(task.ID, v1.TaskStatusDone, &output)
	s.outcomes[task.ID] = v1.TaskStatusDone
	s.completed++

	if s.run.IsResearch() && s.rec.Enabled() {
		if err := s.rec.SaveSheet(task.ID, output, s.o.opts.SheetTimeout); err != nil {
			log.Warn("failed to save research sheet", zap.Error(err))
		} else {
			s.emit(v1.ProgressEvent{
				Type:     v1.EventResearchResult,
				TaskID:   task.ID,
				Markdown: output,
				Content:  "Research complete: " + task.Title,
			})
		}
	}
	return true
}

// invoke runs the agent for one task and returns its output and how many
// tools it used.
func (s *runState) invoke(index int, task v1.RunTask, profile registry.Profile) (string, int, error) {
	workDir := s.run.WorkDir
	if m, ok := s.o.runner.(workDirMapper); ok {
		workDir = m.AgentPath(workDir)
	}
	text := prompt.Build(s.run.Mode, prompt.Task{Title: task.Title, Description: task.Description}, prompt.Context{
		ProjectName: s.run.ProjectName,
		WorkDir:     workDir,
		Index:       index,
		Total:       len(s.run.Tasks),
	})

	stream, err := s.o.runner.Run(s.ctx, session.Request{
		Prompt:  text,
		Profile: profile,
		WorkDir: s.run.WorkDir,
		Label:   fmt.Sprintf("%s-%d", s.run.ID, index),
	})
	if err != nil {
		return "", 0, err
	}
	defer func() {
		if err := stream.Close(); err != nil {
			s.logger.Debug("failed to close agent stream", zap.Error(err))
		}
	}()

	norm := normalizer.New(task.ID)
	for {
		ev, err := stream.Next(s.ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", norm.ToolCalls(), err
		}
		for _, pe := range norm.Consume(ev) {
			s.emit(pe)
			s.rec.Log(task.ID, normalizer.LogType(pe.Type), pe.Content)
		}
	}
	return norm.Output(), norm.ToolCalls(), nil
}

// cancel fails the task at index and every later one, then ends the stream.
// The final statuses are settled rather than queued so a backed up recorder
// cannot leave the project executing.
func (s *runState) cancel(index int) {
	s.cancelled = true
	s.logger.Info("run cancelled", zap.Int("remaining", len(s.run.Tasks)-index))
	s.drain()

	output := CancelledOutput
	for _, task := range s.run.Tasks[index:] {
		s.settled("task status", s.rec.SettleTask(task.ID, v1.TaskStatusFailed, &output, s.o.opts.FlushTimeout))
		s.outcomes[task.ID] = v1.TaskStatusFailed
		s.failed++
	}
	s.rec.Log("", v1.LogTypeInfo, msgCancelledLog)
	s.settled("project status", s.rec.SettleProject(v1.ProjectStatusFailed, s.o.opts.FlushTimeout))
	s.status = v1.ProjectStatusFailed
	s.emit(v1.ProgressEvent{Type: v1.EventDone, Content: msgCancelled})
}

// finish derives the project status and ends the stream.
func (s *runState) finish() {
	s.drain()

	failed, err := s.hasFailedTask()
	if err != nil {
		s.abort(fmt.Errorf("computing final status: %w", err))
		return
	}
	s.status = v1.ProjectStatusCompleted
	if failed {
		s.status = v1.ProjectStatusFailed
	}

	s.emit(v1.ProgressEvent{Type: v1.EventDone, Content: msgAllCompleted})
	s.rec.Log("", v1.LogTypeResult, msgAllCompleted)
	s.settled("project status", s.rec.SettleProject(s.status, s.o.opts.FlushTimeout))
	s.logger.Info("run finished",
		zap.String("status", string(s.status)),
		zap.Int("completed", s.completed),
		zap.Int("failed", s.failed))
}

// drain waits, bounded, for every queued write before final statuses go out.
func (s *runState) drain() {
	if !s.rec.Flush(s.o.opts.FlushTimeout) {
		s.logger.Warn("persistence queue did not drain before final status")
	}
}

func (s *runState) settled(write string, err error) {
	if err != nil {
		s.logger.Warn("failed to persist final state", zap.String("write", write), zap.Error(err))
	}
}

// hasFailedTask looks at every task of the project, with this run's
// outcomes taking precedence over what the store returned.
func (s *runState) hasFailedTask() (bool, error) {
	statuses := make(map[string]v1.TaskStatus, len(s.outcomes))
	if s.run.ProjectID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), s.o.opts.FlushTimeout)
		tasks, err := s.o.store.ListTasksByProject(ctx, s.run.ProjectID)
		cancel()
		if err != nil {
			return false, err
		}
		for _, t := range tasks {
			statuses[t.ID] = t.Status
		}
	}
	for id, status := range s.outcomes {
		statuses[id] = status
	}
	for _, status := range statuses {
		if status == v1.TaskStatusFailed {
			return true, nil
		}
	}
	return false, nil
}

// abort ends the run with an error event. A task still in progress is failed
// with the error. It is a no-op once the stream has terminated.
func (s *runState) abort(err error) {
	if s.terminated {
		return
	}
	s.err = err
	s.status = v1.ProjectStatusFailed
	s.logger.Error("run failed", zap.Error(err))

	msg := err.Error()
	s.emit(v1.ProgressEvent{Type: v1.EventError, Content: msg})
	s.drain()
	for id, status := range s.outcomes {
		if status != v1.TaskStatusInProgress {
			continue
		}
		s.settled("task status", s.rec.SettleTask(id, v1.TaskStatusFailed, &msg, s.o.opts.FlushTimeout))
		s.outcomes[id] = v1.TaskStatusFailed
		s.failed++
	}
	s.rec.Log("", v1.LogTypeError, msg)
	s.settled("project status", s.rec.SettleProject(v1.ProjectStatusFailed, s.o.opts.FlushTimeout))
}

func (s *runState) info(taskID, content string) {
	s.emit(v1.ProgressEvent{Type: v1.EventLog, TaskID: taskID, Content: content})
	s.rec.Log(taskID, v1.LogTypeInfo, content)
}

// emit forwards an event to the sink and the bus. Nothing follows a terminal
// event, and only a terminal event follows cancellation.
func (s *runState) emit(ev v1.ProgressEvent) {
	if s.terminated {
		return
	}
	if !ev.Type.IsTerminal() && s.ctx.Err() != nil {
		return
	}
	if ev.Type.IsTerminal() {
		s.terminated = true
	}

	if err := s.sink.Emit(ev); err != nil {
		s.logger.Debug("failed to write progress event", zap.String("type", string(ev.Type)), zap.Error(err))
	}

	if s.o.opts.Bus != nil && s.run.ProjectID != "" {
		event := bus.NewEvent(string(ev.Type), bus.SourceOrchestrator, ev)
		if err := s.o.opts.Bus.Publish(context.Background(), bus.ProjectSubject(s.run.ProjectID), event); err != nil {
			s.logger.Debug("failed to publish progress event", zap.Error(err))
		}
	}
}

func (s *runState) result() Result {
	return Result{
		Status:    s.status,
		Completed: s.completed,
		Failed:    s.failed,
		Cancelled: s.cancelled,
		Err:       s.err,
	}
}
