package session

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentboard/agentboard/internal/agent/docker"
	"github.com/agentboard/agentboard/internal/common/logger"
	"github.com/agentboard/agentboard/pkg/claudecode"
)

const (
	containerWorkDir = "/workspace"
	removeTimeout    = 30 * time.Second
)

// ContainerAPI is the subset of the docker client the runner uses.
type ContainerAPI interface {
	EnsureImage(ctx context.Context, ref string) error
	CreateContainer(ctx context.Context, cfg docker.ContainerConfig) (string, error)
	Attach(ctx context.Context, containerID string) (*docker.Attachment, error)
	StartContainer(ctx context.Context, containerID string) error
	WaitContainer(ctx context.Context, containerID string) (int64, error)
	RemoveContainer(ctx context.Context, containerID string) error
}

// DockerRunner runs the agent CLI in a fresh container per task with the
// workspace bind mounted at /workspace.
type DockerRunner struct {
	api    ContainerAPI
	image  string
	env    []string
	logger *logger.Logger
}

// NewDockerRunner returns a runner that starts containers from image.
func NewDockerRunner(api ContainerAPI, image string, env []string, log *logger.Logger) *DockerRunner {
	return &DockerRunner{api: api, image: image, env: env, logger: log}
}

// AgentPath maps a host workspace to the path the agent sees inside the container.
func (r *DockerRunner) AgentPath(hostDir string) string {
	if hostDir == "" {
		return ""
	}
	return containerWorkDir
}

// Run creates, attaches and starts the container, then feeds the prompt on stdin.
func (r *DockerRunner) Run(ctx context.Context, req Request) (Stream, error) {
	if err := r.api.EnsureImage(ctx, r.image); err != nil {
		return nil, err
	}

	cfg := docker.ContainerConfig{
		Name:  "agentboard-" + uuid.New().String()[:12],
		Image: r.image,
		Cmd: append([]string{"claude"}, claudecode.Args(claudecode.Options{
			Model:          req.Profile.Model,
			MaxTurns:       req.Profile.MaxTurns,
			AllowedTools:   req.Profile.Tools,
			PermissionMode: req.Profile.PermissionMode,
		})...),
		Env:        r.env,
		WorkingDir: "/tmp",
		Labels: map[string]string{
			"agentboard.task": req.Label,
			"agentboard.mode": string(req.Profile.Mode),
		},
	}
	if req.WorkDir != "" {
		src, err := filepath.Abs(req.WorkDir)
		if err != nil {
			return nil, fmt.Errorf("resolving workspace: %w", err)
		}
		cfg.Mounts = []docker.MountConfig{{Source: src, Target: containerWorkDir}}
		cfg.WorkingDir = containerWorkDir
	}

	id, err := r.api.CreateContainer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	remove := func() {
		rmCtx, cancel := context.WithTimeout(context.Background(), removeTimeout)
		defer cancel()
		if err := r.api.RemoveContainer(rmCtx, id); err != nil {
			r.logger.Warn("failed to remove agent container", zap.String("container_id", id), zap.Error(err))
		}
	}

	att, err := r.api.Attach(ctx, id)
	if err != nil {
		remove()
		return nil, err
	}
	if err := r.api.StartContainer(ctx, id); err != nil {
		_ = att.Close()
		remove()
		return nil, err
	}
	r.logger.Debug("agent container started", zap.String("container_id", id), zap.String("label", req.Label))

	go func() {
		_, _ = io.WriteString(att.Stdin, req.Prompt)
		_ = att.Stdin.Close()
	}()
	stderr := newTailBuffer(stderrTailBytes)
	go func() { _, _ = io.Copy(stderr, att.Stderr) }()

	// Closing the attachment unblocks the stdout reader on cancellation.
	stop := context.AfterFunc(ctx, func() { _ = att.Close() })

	var (
		waitOnce sync.Once
		waitErr  error
	)
	wait := func() error {
		waitOnce.Do(func() {
			code, err := r.api.WaitContainer(ctx, id)
			switch {
			case err != nil:
				waitErr = err
			case code != 0:
				waitErr = fmt.Errorf("exit code %d", code)
			}
		})
		return waitErr
	}
	closeFn := func() error {
		stop()
		_ = att.Close()
		remove()
		return nil
	}
	return newProcStream(att.Stdout, req.Profile, stderr, wait, closeFn), nil
}
