/*
Package event provides a type-safe pub/sub event system for the agent core
server.

The event system decouples the session service, the background task
manager, and the event processor from the HTTP/SSE adapter: publishers
emit events without knowing who (if anyone) is listening.

# Architecture

Each subscriber owns a persistent goroutine and an unbounded FIFO queue
(see subscriberQueue in bus.go). Publish enqueues onto every matching
subscriber's queue and returns without waiting on delivery; a slow
subscriber only ever delays its own queue, never another subscriber's,
while a single subscriber still sees every event in the order it was
published. It supports synchronous and asynchronous publishing, and both
global and per-session scoped subscriptions.

# Event Types

Stream events (one query invocation's incremental output):

  - stream.start: a new assistant response has begun
  - stream.text: an incremental text delta
  - stream.reasoning: the cumulative reasoning trace so far
  - stream.tool.call: a tool invocation was requested
  - stream.tool.result: a tool invocation resolved
  - stream.completed: the response finished normally (terminal)
  - stream.error: the response failed (terminal)

Background task events (one delegated sub-agent execution's outcome):

  - background_task.completed
  - background_task.failed
  - background_task.timeout
  - background_task.stopped

Exactly one of these four fires per task; never more than one.

Server events:

  - server.connected: a new SSE client attached
  - server.heartbeat: the 30s SSE keepalive tick
  - application.exit: a graceful shutdown is underway

# Basic Usage

Publishing events:

	// Asynchronous publishing (non-blocking)
	event.Publish(event.Event{
		Type:      event.StreamStart,
		SessionID: sessionID,
		Data:      event.StreamStartData{SessionID: sessionID, MessageID: msgID},
	})

	// Synchronous publishing (blocking until all subscribers complete)
	event.PublishSync(event.Event{
		Type:      event.StreamCompleted,
		SessionID: sessionID,
		Data:      event.StreamCompletedData{SessionID: sessionID, MessageID: msgID},
	})

Subscribing to every event of a type, across all sessions:

	unsubscribe := event.Subscribe(event.BackgroundCompleted, func(e event.Event) {
		data := e.Data.(event.BackgroundCompletedData)
		logging.Info().Str("taskID", data.TaskID).Msg("background task completed")
	})
	defer unsubscribe()

Subscribing scoped to one session (used by the SSE adapter so a client
only sees events for the session it asked about):

	unsubscribe := event.SubscribeToSession(event.StreamText, sessionID, func(e event.Event) {
		// ...
	})
	defer unsubscribe()

Waiting for exactly one terminal event:

	unsubscribe := event.Once(event.BackgroundCompleted, sessionID, handler)

# Subscriber Safety Guidelines

When using PublishSync, subscribers are called synchronously in the
publisher's goroutine. To avoid blocking or deadlocks, subscribers MUST:

  - Complete quickly (avoid long-running operations)
  - Use non-blocking channel sends (select with default case)
  - Never call Publish/PublishSync from within a subscriber (no re-entrant publishing)
  - Never acquire locks that the publisher might hold

# Custom Event Bus

For testing or isolation, create custom bus instances:

	bus := event.NewBus()
	defer bus.Close()

	unsubscribe := bus.Subscribe(event.StreamStart, handler)
	bus.PublishSync(event.Event{Type: event.StreamStart, Data: data})

# Testing

	// Reset global bus state (use in test cleanup)
	event.Reset()

# Thread Safety

The event bus is thread-safe and can be used concurrently from multiple
goroutines. Both publishing and subscribing operations are protected by
internal synchronization.
*/
package event
