// Package server provides the HTTP/SSE adapter (spec.md §4.9/§6): the six
// routes a client uses to create sessions, send prompts, and stream
// events, plus a shared-bearer-token auth middleware the teacher's
// equivalent server has no need for (it has no auth at all).
//
// Prompts are accepted synchronously (202 Accepted, the user message is
// persisted before the handler returns) but processed asynchronously: the
// handler hands the turn to the query executor contract in its own
// goroutine, and the caller observes progress exclusively through the SSE
// stream, matching the teacher's own sendMessage-returns-immediately shape
// in internal/server/handlers_message.go.
package server
