package session

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentboard/agentboard/internal/common/logger"
	"github.com/agentboard/agentboard/pkg/claudecode"
)

const (
	stderrTailBytes = 4096
	killGrace       = 5 * time.Second
)

// CLIRunner runs the agent CLI as a local child process.
type CLIRunner struct {
	binary string
	env    []string
	logger *logger.Logger
}

// NewCLIRunner returns a runner for binary. env is appended to the process environment.
func NewCLIRunner(binary string, env []string, log *logger.Logger) *CLIRunner {
	return &CLIRunner{binary: binary, env: env, logger: log}
}

// Run starts the CLI in print mode with the prompt on stdin. The process is
// killed when ctx is cancelled or the stream is closed.
func (r *CLIRunner) Run(ctx context.Context, req Request) (Stream, error) {
	procCtx, cancel := context.WithCancel(ctx)

	args := claudecode.Args(claudecode.Options{
		Model:          req.Profile.Model,
		MaxTurns:       req.Profile.MaxTurns,
		AllowedTools:   req.Profile.Tools,
		PermissionMode: req.Profile.PermissionMode,
	})
	cmd := exec.CommandContext(procCtx, r.binary, args...)
	cmd.Dir = req.WorkDir
	cmd.Env = append(os.Environ(), r.env...)
	cmd.Stdin = strings.NewReader(req.Prompt)
	cmd.WaitDelay = killGrace

	stderr := newTailBuffer(stderrTailBytes)
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("agent stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("starting agent %s: %w", r.binary, err)
	}
	r.logger.Debug("agent process started",
		zap.String("label", req.Label),
		zap.Int("pid", cmd.Process.Pid),
		zap.String("mode", string(req.Profile.Mode)),
		zap.String("dir", req.WorkDir),
	)

	var (
		waitOnce sync.Once
		waitErr  error
	)
	wait := func() error {
		waitOnce.Do(func() { waitErr = cmd.Wait() })
		return waitErr
	}
	closeFn := func() error {
		cancel()
		_ = wait()
		return nil
	}
	return newProcStream(stdout, req.Profile, stderr, wait, closeFn), nil
}
