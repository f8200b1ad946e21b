// Package executor implements the query executor contract (spec.md §4.8):
// drive a tool-calling loop against an injected ModelClient, stream
// progress through internal/event and internal/session via the streaming
// bridge, and retry transient provider errors with bounded exponential
// backoff.
//
// Concrete LLM provider wiring and concrete tool implementations are out of
// scope for this repository (spec.md §1): ModelClient and ToolRegistry are
// the narrow interfaces a caller supplies at startup. Executor also
// implements session.TextCompleter, so it doubles as the text-generation
// backend for Session.Compact and Session.GenerateTitle.
package executor
