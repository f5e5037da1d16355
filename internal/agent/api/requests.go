// Package api exposes the agent side of the server: the per-mode profiles the
// agent runs with and whether its runtime is reachable.
package api

import "time"

// ProfileResponse describes the agent profile of one mode
type ProfileResponse struct {
	Mode           string   `json:"mode"`
	Tools          []string `json:"tools"`
	MaxTurns       int      `json:"maxTurns"`
	Model          string   `json:"model"`
	PermissionMode string   `json:"permissionMode"`
}

// ProfilesListResponse for profile listing
type ProfilesListResponse struct {
	Profiles []ProfileResponse `json:"profiles"`
	Total    int               `json:"total"`
}

// RuntimeHealthResponse reports whether the agent runtime can start sessions
type RuntimeHealthResponse struct {
	Runtime   string    `json:"runtime"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
