// Package processor implements the event processor (spec.md §4.7):
// re-entry of asynchronous events (chiefly background_task.completed) into
// the session that triggered them, so the agent loop can react to work it
// didn't directly await.
//
// It synthesizes a three-message round trip -- a user-role summary of the
// event, a pending assistant tool call, and the tool's resolved result --
// appends it to the triggering session, then re-invokes the query
// executor contract on top of it. From the model's perspective this looks
// exactly like it called an introspection tool and got an answer.
//
// Grounded in idiom on the teacher's internal/session/compact.go message
// + part + event-publish sequencing, though the three-message shape and
// the call_<eventID> correlation are net-new (the teacher has no
// equivalent async re-entry mechanism).
package processor
