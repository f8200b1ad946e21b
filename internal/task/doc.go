// Package task implements the background task manager (spec.md §4.6):
// asynchronous, delegated sub-agent executions, each exclusively owning a
// child session until it reaches a terminal status (completed, failed,
// stopped, or timeout).
//
// The teacher's internal/executor.SubagentExecutor runs a subtask
// synchronously in the caller's goroutine with no registry, timeout, or
// cancellation at all; this package is the net-new component spec.md §4.6
// describes, generalizing that call-and-return shape into a scheduled,
// cancellable, timed goroutine per task (see DESIGN.md).
package task
