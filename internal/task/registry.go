package task

import (
	"fmt"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/agentcore/core/pkg/types"
)

// SubagentConfig names a delegatable sub-agent type: its system prompt, the
// model it runs under, and which tools it may call. Trimmed from the
// teacher's internal/agent.Agent (permission-ask fields dropped: tool
// permission confirmation assumes an interactive TUI client, out of scope
// per spec.md §1's CLI/TUI non-goal).
type SubagentConfig struct {
	Name        string
	Description string
	Prompt      string
	Model       types.ModelRef
	// Tools lists glob patterns (matched with doublestar) naming the tools
	// this subagent may call. A nil/empty list allows every tool.
	Tools []string
}

// ToolAllowed reports whether tool matches one of cfg's glob patterns.
func (cfg SubagentConfig) ToolAllowed(tool string) bool {
	if len(cfg.Tools) == 0 {
		return true
	}
	for _, pattern := range cfg.Tools {
		if ok, _ := doublestar.Match(pattern, tool); ok {
			return true
		}
	}
	return false
}

// Registry resolves subagent type names to their configuration.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]SubagentConfig
}

// NewRegistry creates a Registry seeded with the built-in subagent types.
func NewRegistry() *Registry {
	r := &Registry{configs: make(map[string]SubagentConfig)}
	for _, cfg := range builtInSubagents() {
		r.configs[cfg.Name] = cfg
	}
	return r
}

// Register adds or overwrites a subagent type.
func (r *Registry) Register(cfg SubagentConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Name] = cfg
}

// Get resolves a subagent type by name.
func (r *Registry) Get(name string) (SubagentConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	if !ok {
		return SubagentConfig{}, fmt.Errorf("task: unknown subagent type %q", name)
	}
	return cfg, nil
}

// builtInSubagents mirrors the teacher's general/explore subagent presets
// (internal/agent.BuiltInAgents), stripped of their permission-ask rules.
func builtInSubagents() []SubagentConfig {
	return []SubagentConfig{
		{
			Name:        "general",
			Description: "General-purpose subagent for searches and exploration",
			Tools:       []string{"read", "glob", "grep", "webfetch"},
		},
		{
			Name:        "explore",
			Description: "Fast subagent specialized for codebase exploration",
			Tools:       []string{"read", "glob", "grep", "ls"},
		},
	}
}
