// Package credentials collects the environment the agent process needs to authenticate.
package credentials

import (
	"os"
	"sort"
	"strings"
)

// agentKeys are the variables the Claude CLI reads for auth and endpoint selection.
var agentKeys = []string{
	"ANTHROPIC_API_KEY",
	"ANTHROPIC_AUTH_TOKEN",
	"ANTHROPIC_BASE_URL",
	"CLAUDE_CODE_OAUTH_TOKEN",
	"CLAUDE_CODE_USE_BEDROCK",
	"CLAUDE_CODE_USE_VERTEX",
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"AWS_REGION",
	"GITHUB_TOKEN",
}

// EnvProvider resolves agent credentials from the process environment.
// A key may also be supplied with the prefix (e.g. AGENTBOARD_ANTHROPIC_API_KEY),
// which wins over the bare name.
type EnvProvider struct {
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvProvider creates a provider reading os environment variables.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix, lookup: os.LookupEnv}
}

// Name returns the provider name.
func (p *EnvProvider) Name() string {
	return "environment"
}

// Get returns the value for key, checking the prefixed name first.
func (p *EnvProvider) Get(key string) (string, bool) {
	if p.prefix != "" {
		if v, ok := p.lookup(p.prefix + key); ok && v != "" {
			return v, true
		}
	}
	v, ok := p.lookup(key)
	return v, ok && v != ""
}

// Env returns KEY=VALUE pairs for every known agent key that is set, plus
// extra entries verbatim. Extra entries override known keys with the same name.
func (p *EnvProvider) Env(extra []string) []string {
	merged := make(map[string]string)
	for _, key := range agentKeys {
		if v, ok := p.Get(key); ok {
			merged[key] = v
		}
	}
	for _, kv := range extra {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		merged[key] = value
	}

	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
