package claudecode

import (
	"strconv"
	"strings"
)

// Options are the print-mode flags passed to the CLI.
type Options struct {
	Model          string
	MaxTurns       int
	AllowedTools   []string
	PermissionMode string
}

// Args builds the argument list for a non-interactive stream-json run.
// The prompt itself is written to stdin.
func Args(opts Options) []string {
	args := []string{"-p", "--output-format", "stream-json", "--verbose"}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if opts.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(opts.MaxTurns))
	}
	if len(opts.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(opts.AllowedTools, ","))
	}
	if opts.PermissionMode != "" {
		args = append(args, "--permission-mode", opts.PermissionMode)
	}
	return args
}
