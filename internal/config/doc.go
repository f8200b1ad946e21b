// Package config loads the core's runtime configuration (spec.md §6's
// env vars, generalized to a config file) and resolves the XDG-ish data
// directory the persistence layer writes under.
//
// Grounded on the teacher's internal/config (same load-order idea:
// optional file, then environment overrides) and pkg/types.Config's
// YAML+JSONC shape, trimmed to the fields this core's domain actually
// uses -- provider/agent/MCP/formatter/LSP sub-configs are dropped since
// nothing in this core wires concrete providers, MCP, or tooling (all
// named out of scope by spec.md §1).
package config
