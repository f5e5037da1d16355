package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentboard/agentboard/internal/agent/docker"
	"github.com/agentboard/agentboard/internal/common/logger"
)

type stdinRecorder struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed chan struct{}
}

func (w *stdinRecorder) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *stdinRecorder) Close() error {
	close(w.closed)
	return nil
}

func (w *stdinRecorder) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

type fakeContainers struct {
	mu       sync.Mutex
	cfg      docker.ContainerConfig
	stdout   string
	stdin    *stdinRecorder
	exitCode int64
	startErr error
	removed  []string
}

func (f *fakeContainers) EnsureImage(context.Context, string) error { return nil }

func (f *fakeContainers) CreateContainer(_ context.Context, cfg docker.ContainerConfig) (string, error) {
	f.cfg = cfg
	return "c-1", nil
}

func (f *fakeContainers) Attach(context.Context, string) (*docker.Attachment, error) {
	f.stdin = &stdinRecorder{closed: make(chan struct{})}
	return &docker.Attachment{
		Stdin:  f.stdin,
		Stdout: io.NopCloser(strings.NewReader(f.stdout)),
		Stderr: io.NopCloser(strings.NewReader("")),
	}, nil
}

func (f *fakeContainers) StartContainer(context.Context, string) error { return f.startErr }

func (f *fakeContainers) WaitContainer(context.Context, string) (int64, error) {
	return f.exitCode, nil
}

func (f *fakeContainers) RemoveContainer(_ context.Context, id string) error {
	f.mu.Lock()
	f.removed = append(f.removed, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeContainers) removedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

func TestDockerRunnerStreamsContainerOutput(t *testing.T) {
	api := &fakeContainers{stdout: strings.Join([]string{
		`{"type":"assistant","message":{"content":[{"type":"text","text":"hi"}]}}`,
		`{"type":"result","subtype":"success","result":"ok"}`,
	}, "\n")}
	runner := NewDockerRunner(api, "agent:latest", []string{"ANTHROPIC_API_KEY=k"}, logger.NewNop())

	workDir := t.TempDir()
	stream, err := runner.Run(context.Background(), Request{
		Prompt:  "do it",
		Profile: buildProfile,
		WorkDir: workDir,
		Label:   "run-0",
	})
	require.NoError(t, err)

	events, err := drain(t, stream)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ok", events[1].(*ResultEvent).Text)

	<-api.stdin.closed
	assert.Equal(t, "do it", api.stdin.String())

	assert.Equal(t, "agent:latest", api.cfg.Image)
	assert.Equal(t, "claude", api.cfg.Cmd[0])
	assert.Contains(t, api.cfg.Cmd, "--max-turns")
	assert.Equal(t, containerWorkDir, api.cfg.WorkingDir)
	require.Len(t, api.cfg.Mounts, 1)
	assert.Equal(t, workDir, api.cfg.Mounts[0].Source)
	assert.Equal(t, "run-0", api.cfg.Labels["agentboard.task"])

	require.NoError(t, stream.Close())
	assert.Equal(t, []string{"c-1"}, api.removedIDs())
}

func TestDockerRunnerNonZeroExitFails(t *testing.T) {
	api := &fakeContainers{exitCode: 2}
	stream, err := NewDockerRunner(api, "agent", nil, logger.NewNop()).
		Run(context.Background(), Request{Profile: buildProfile})
	require.NoError(t, err)
	defer stream.Close()

	_, err = drain(t, stream)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit code 2")
}

func TestDockerRunnerRemovesContainerWhenStartFails(t *testing.T) {
	api := &fakeContainers{startErr: errors.New("no such image")}
	_, err := NewDockerRunner(api, "agent", nil, logger.NewNop()).
		Run(context.Background(), Request{Profile: buildProfile})
	require.Error(t, err)
	assert.Equal(t, []string{"c-1"}, api.removedIDs())
}

func TestDockerRunnerAgentPath(t *testing.T) {
	runner := NewDockerRunner(&fakeContainers{}, "agent", nil, logger.NewNop())
	assert.Equal(t, "/workspace", runner.AgentPath("/srv/ws/proj"))
	assert.Equal(t, "", runner.AgentPath(""))
}
