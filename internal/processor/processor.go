package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentcore/core/internal/event"
	"github.com/agentcore/core/internal/executor"
	"github.com/agentcore/core/internal/session"
)

// Environment bundles processor's two collaborators: the session store it
// appends the synthetic round trip to, and the query executor contract it
// re-invokes once the round trip is persisted.
type Environment struct {
	Sessions *session.Service
	Invoker  executor.QueryInvoker
}

// Options configures ProcessEventInSession. Use DefaultOptions and
// override fields rather than constructing a zero Options, since
// IncludeToolCall defaults to true (not Go's zero value for bool).
type Options struct {
	// Prompt overrides the default "Process event: <type>" re-entry
	// instruction passed to handle_query.
	Prompt string
	// IncludeToolCall, when false, appends only the synthetic user message
	// and skips the assistant-tool-call/tool-result pair.
	IncludeToolCall bool
	// ToolName names the synthetic tool call. Defaults to "get_event_info".
	ToolName string
}

// DefaultOptions returns the spec's default Options: IncludeToolCall =
// true, ToolName = "get_event_info".
func DefaultOptions() Options {
	return Options{IncludeToolCall: true, ToolName: "get_event_info"}
}

// ProcessEventInSession resolves the session an event should re-enter,
// appends a synthetic observation of the event to its history, and
// re-invokes the query executor contract on top of it.
//
// Resolution is by ev.SessionID alone: unlike the spec's generic
// metadata.triggerSessionID/clientID fallback, this codebase's Event
// already carries its target session directly (the background task
// manager sets it to the task's parent session when publishing
// background_task.* events), so there is no separate clientID-keyed
// active-session registry to consult (see DESIGN.md Open Questions).
func ProcessEventInSession(ctx context.Context, env Environment, ev event.Event, opts Options) (string, error) {
	sessionID := ev.SessionID
	if sessionID == "" {
		return "", fmt.Errorf("processor: event %s carries no session to re-enter", ev.Type)
	}
	if _, err := env.Sessions.Get(ctx, sessionID); err != nil {
		return "", fmt.Errorf("processor: resolve session %s: %w", sessionID, err)
	}

	toolName := opts.ToolName
	if toolName == "" {
		toolName = "get_event_info"
	}

	eventID := ev.ID
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	summary := fmt.Sprintf("Observed event: %s\nEvent ID: %s\nTime: %s", ev.Type, eventID, ts.Format(time.RFC3339))
	if _, err := env.Sessions.AddUserMessage(ctx, sessionID, summary); err != nil {
		return "", fmt.Errorf("processor: seed synthetic observation: %w", err)
	}

	if opts.IncludeToolCall {
		if err := appendSyntheticToolRoundTrip(ctx, env.Sessions, sessionID, eventID, toolName, ev); err != nil {
			return "", err
		}
	}

	history, err := env.Sessions.ToHistory(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("processor: load history: %w", err)
	}

	prompt := opts.Prompt
	if prompt == "" {
		prompt = fmt.Sprintf("Process event: %s", ev.Type)
	}

	return env.Invoker.HandleQuery(ctx, prompt, executor.QueryContext{SessionID: sessionID}, history)
}

// appendSyntheticToolRoundTrip appends the assistant-pending-tool-call and
// tool-result messages of the synthetic triple. The call ID is derived
// from eventID ("call_<eventID>") so a reader of the transcript can
// correlate the two without a side channel.
func appendSyntheticToolRoundTrip(ctx context.Context, sessions *session.Service, sessionID, eventID, toolName string, ev event.Event) error {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("processor: marshal event payload: %w", err)
	}

	assistantMsg, err := sessions.AddAssistantMessageWithTool(ctx, sessionID, nil)
	if err != nil {
		return fmt.Errorf("processor: seed synthetic tool call: %w", err)
	}

	callID := "call_" + eventID
	toolArgs := map[string]any{"event_ids": []string{eventID}}
	if _, err := sessions.AddToolCallWithID(ctx, sessionID, assistantMsg.ID, callID, toolName, toolArgs); err != nil {
		return fmt.Errorf("processor: append synthetic tool call: %w", err)
	}

	if _, err := sessions.AddToolMessage(ctx, sessionID, callID, toolName, string(payload), nil); err != nil {
		return fmt.Errorf("processor: append synthetic tool result: %w", err)
	}

	return nil
}
