// Package session implements the append-only session and message model:
// session CRUD, message/part construction, forking, compaction, and
// pruning.
//
// # Architecture
//
// Service is the sole entry point. It persists through a storage.Store and
// keeps a capped in-memory view of each session's messages (FIFO eviction
// once a session crosses its message cap; evicted messages stay durable in
// the store, only the in-memory view forgets them).
//
// Summarization (used by both Compact and GenerateTitle) is delegated to a
// TextCompleter supplied by the caller, so this package has no dependency
// on the query executor or any model provider.
//
// # Compaction
//
// Compact does not rewrite a session in place. It creates a new child
// session whose sole initial message is a system-role summary of the
// parent's history, and returns that child. The parent session is
// untouched; callers that want to "continue" a conversation after
// compaction switch to operating on the child session ID.
//
// # Pruning
//
// Prune is unrelated to compaction: it walks a session's already-persisted
// tool parts and replaces the Output of completed, non-protected tool
// calls with a placeholder once the estimated token cost of a session's
// parts crosses a threshold. Protected tool names are matched with
// doublestar glob patterns so callers can protect whole families of tools
// (e.g. "write*") from pruning.
package session
