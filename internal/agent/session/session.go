// Package session runs the external agent for one task and exposes its output
// as a lazy sequence of decoded events.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/agentboard/agentboard/internal/agent/registry"
	"github.com/agentboard/agentboard/pkg/claudecode"
)

var (
	// ErrToolDenied is returned when the agent invokes a tool outside the profile.
	ErrToolDenied = errors.New("tool not permitted")
	// ErrAgentFailed wraps an error result reported by the agent itself.
	ErrAgentFailed = errors.New("agent run failed")
)

// Request describes one agent invocation.
type Request struct {
	Prompt  string
	Profile registry.Profile
	// WorkDir is the build workspace; empty in research mode.
	WorkDir string
	// Label is attached to the process or container for diagnostics.
	Label string
}

// Runner starts agent invocations.
type Runner interface {
	Run(ctx context.Context, req Request) (Stream, error)
}

// Stream is a finite, non-restartable sequence of events. Next returns io.EOF
// after the agent concludes normally. Close must always be called.
type Stream interface {
	Next(ctx context.Context) (Event, error)
	Close() error
}

// procStream decodes stream-json from a running process or container.
type procStream struct {
	dec     *claudecode.Decoder
	profile registry.Profile
	stderr  *tailBuffer
	// wait reaps the process; it is called once after stdout ends.
	wait  func() error
	close func() error

	sawResult bool
	finished  bool
	closeOnce sync.Once
	closeErr  error
}

func newProcStream(stdout io.Reader, profile registry.Profile, stderr *tailBuffer, wait, closeFn func() error) *procStream {
	return &procStream{
		dec:     claudecode.NewDecoder(stdout),
		profile: profile,
		stderr:  stderr,
		wait:    wait,
		close:   closeFn,
	}
}

// Next returns the next event that matters to the caller. System and user
// (tool result) messages are skipped.
func (s *procStream) Next(ctx context.Context) (Event, error) {
	if s.finished {
		return nil, io.EOF
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg, err := s.dec.Next()
		if err != nil {
			return nil, s.finish(ctx, err)
		}

		ev, err := s.convert(msg)
		if err != nil {
			s.finished = true
			return nil, err
		}
		if ev != nil {
			return ev, nil
		}
	}
}

func (s *procStream) convert(msg *claudecode.CLIMessage) (Event, error) {
	switch msg.Type {
	case claudecode.MessageTypeAssistant:
		ev := decodeAssistant(msg)
		for _, b := range ev.Blocks {
			if tu, ok := b.(*ToolUseBlock); ok && !s.profile.Allows(tu.Name) {
				return nil, fmt.Errorf("%w: %s (allowed: %s)", ErrToolDenied, tu.Name, strings.Join(s.profile.Tools, ", "))
			}
		}
		return ev, nil
	case claudecode.MessageTypeResult:
		s.sawResult = true
		ev := decodeResult(msg)
		if ev.IsError && ev.Subtype != claudecode.ResultErrorMaxTurns {
			detail := ev.Text
			if detail == "" {
				detail = ev.Subtype
			}
			return nil, fmt.Errorf("%w: %s", ErrAgentFailed, detail)
		}
		return ev, nil
	default:
		return nil, nil
	}
}

// finish turns end of output into io.EOF or the process failure.
func (s *procStream) finish(ctx context.Context, readErr error) error {
	s.finished = true
	waitErr := s.wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	if readErr != nil && !errors.Is(readErr, io.EOF) {
		return fmt.Errorf("reading agent output: %w", readErr)
	}
	if waitErr != nil && !s.sawResult {
		if n := s.dec.Skipped(); n > 0 {
			waitErr = fmt.Errorf("%w after %d unparsed output lines", waitErr, n)
		}
		if tail := s.stderr.String(); tail != "" {
			return fmt.Errorf("agent exited: %w: %s", waitErr, tail)
		}
		return fmt.Errorf("agent exited: %w", waitErr)
	}
	return io.EOF
}

func (s *procStream) Close() error {
	s.closeOnce.Do(func() {
		if s.close != nil {
			s.closeErr = s.close()
		}
	})
	return s.closeErr
}

func decodeAssistant(msg *claudecode.CLIMessage) *AssistantEvent {
	ev := &AssistantEvent{}
	if msg.Message == nil {
		return ev
	}
	for _, cb := range msg.Message.Content {
		switch cb.Type {
		case claudecode.BlockTypeText:
			ev.Blocks = append(ev.Blocks, &TextBlock{Text: cb.Text})
		case claudecode.BlockTypeToolUse:
			ev.Blocks = append(ev.Blocks, &ToolUseBlock{ID: cb.ID, Name: cb.Name, Input: cb.Input})
		}
	}
	return ev
}

func decodeResult(msg *claudecode.CLIMessage) *ResultEvent {
	text, ok := msg.ResultText()
	return &ResultEvent{
		Text:    text,
		HasText: ok && text != "",
		Subtype: msg.Subtype,
		IsError: msg.IsError,
		Turns:   msg.NumTurns,
		CostUSD: msg.TotalCostUSD,
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
