// Package registry maps a run mode to the capabilities and limits the agent runs with.
package registry

import (
	"fmt"
	"slices"

	"github.com/agentboard/agentboard/internal/common/config"
	v1 "github.com/agentboard/agentboard/pkg/api/v1"
	"github.com/agentboard/agentboard/pkg/claudecode"
)

// Profile is the allow-list and turn ceiling for one mode.
type Profile struct {
	Mode           v1.Mode
	Tools          []string
	MaxTurns       int
	Model          string
	PermissionMode string
}

// Allows reports whether tool is on the profile's allow-list.
func (p Profile) Allows(tool string) bool {
	return slices.Contains(p.Tools, tool)
}

// ResearchTools may only read, search and fetch.
var ResearchTools = []string{
	claudecode.ToolWebSearch,
	claudecode.ToolWebFetch,
	claudecode.ToolRead,
	claudecode.ToolGrep,
	claudecode.ToolGlob,
}

// BuildTools may read, write, edit and execute inside the workspace.
var BuildTools = []string{
	claudecode.ToolRead,
	claudecode.ToolWrite,
	claudecode.ToolEdit,
	claudecode.ToolBash,
	claudecode.ToolGlob,
	claudecode.ToolGrep,
}

// Registry holds one profile per mode.
type Registry struct {
	profiles map[v1.Mode]Profile
}

// New builds the registry from agent configuration.
func New(cfg config.AgentConfig) *Registry {
	return &Registry{profiles: map[v1.Mode]Profile{
		v1.ModeBuild: {
			Mode:           v1.ModeBuild,
			Tools:          slices.Clone(BuildTools),
			MaxTurns:       cfg.BuildMaxTurns,
			Model:          cfg.Model,
			PermissionMode: cfg.PermissionMode,
		},
		v1.ModeResearch: {
			Mode:           v1.ModeResearch,
			Tools:          slices.Clone(ResearchTools),
			MaxTurns:       cfg.ResearchMaxTurns,
			Model:          cfg.Model,
			PermissionMode: cfg.PermissionMode,
		},
	}}
}

// List returns every profile, build first.
func (r *Registry) List() []Profile {
	out := make([]Profile, 0, len(r.profiles))
	for _, mode := range []v1.Mode{v1.ModeBuild, v1.ModeResearch} {
		if p, ok := r.profiles[mode]; ok {
			p.Tools = slices.Clone(p.Tools)
			out = append(out, p)
		}
	}
	return out
}

// Get returns the profile for mode.
func (r *Registry) Get(mode v1.Mode) (Profile, error) {
	p, ok := r.profiles[mode]
	if !ok {
		return Profile{}, fmt.Errorf("no agent profile for mode %q", mode)
	}
	p.Tools = slices.Clone(p.Tools)
	return p, nil
}
