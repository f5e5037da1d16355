package executor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeDirChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// ErrInvalidWorkspace is wrapped by errors caused by the request rather than
// the filesystem.
var ErrInvalidWorkspace = errors.New("invalid workspace")

// Workspace provisions per-project build directories under a root.
type Workspace struct {
	root string
}

// NewWorkspace returns a Workspace rooted at root, made absolute.
func NewWorkspace(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// DirName returns the directory name of a project: the identifier when set,
// else the name with unsafe characters replaced by '-' and lower-cased.
func DirName(name, identifier string) string {
	if identifier != "" {
		return identifier
	}
	return strings.ToLower(unsafeDirChars.ReplaceAllString(name, "-"))
}

// Path returns the project directory without creating it.
func (w *Workspace) Path(name, identifier string) (string, error) {
	dir := DirName(name, identifier)
	if dir == "" {
		return "", fmt.Errorf("%w: project name or identifier is required", ErrInvalidWorkspace)
	}
	path := filepath.Join(w.root, dir)
	// An identifier like "../x" must not escape the root.
	if rel, err := filepath.Rel(w.root, path); err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: directory %q escapes the root", ErrInvalidWorkspace, dir)
	}
	return path, nil
}

// Ensure creates the project directory if needed and returns its path.
func (w *Workspace) Ensure(name, identifier string) (string, error) {
	path, err := w.Path(name, identifier)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("failed to create workspace %s: %w", path, err)
	}
	return path, nil
}
