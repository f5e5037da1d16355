package executor

import (
	"context"
	"time"

	"github.com/google/uuid"

	v1 "github.com/agentboard/agentboard/pkg/api/v1"
)

// Run is the handle of one accepted run. It is passed explicitly to the
// orchestrator and owns the cancel function of the run's context.
type Run struct {
	ID                string
	ProjectID         string
	ProjectName       string
	ProjectIdentifier string
	Mode              v1.Mode
	Tasks             []v1.RunTask
	// WorkDir is the provisioned build directory; empty in research mode.
	WorkDir   string
	StartedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	key    string
}

// Context is cancelled when the client goes away or the run is cancelled.
func (r *Run) Context() context.Context {
	return r.ctx
}

// Cancel stops the run cooperatively.
func (r *Run) Cancel() {
	r.cancel()
}

// IsResearch reports whether the run is in research mode.
func (r *Run) IsResearch() bool {
	return r.Mode == v1.ModeResearch
}

// Info describes the run for the runs listing.
func (r *Run) Info() v1.RunInfo {
	return v1.RunInfo{
		RunID:     r.ID,
		ProjectID: r.ProjectID,
		Mode:      r.Mode,
		TaskCount: len(r.Tasks),
		StartedAt: r.StartedAt.Format(time.RFC3339),
	}
}

// NewRun builds a run handle from an already validated request. The run's
// context derives from parent.
func NewRun(parent context.Context, req v1.RunRequest, workDir string) *Run {
	ctx, cancel := context.WithCancel(parent)
	mode := req.Mode
	if mode == "" {
		mode = v1.ModeBuild
	}
	return &Run{
		ID:                uuid.New().String(),
		ProjectID:         req.ProjectID,
		ProjectName:       req.ProjectName,
		ProjectIdentifier: req.ProjectIdentifier,
		Mode:              mode,
		Tasks:             req.Tasks,
		WorkDir:           workDir,
		StartedAt:         time.Now().UTC(),
		ctx:               ctx,
		cancel:            cancel,
	}
}
