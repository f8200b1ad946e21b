package event

import "time"

// EventType represents the type of event published on the bus. The set is
// closed: these are the only event kinds the core ever emits.
type EventType string

const (
	StreamStart         EventType = "stream.start"
	StreamText          EventType = "stream.text"
	StreamReasoning     EventType = "stream.reasoning"
	StreamToolCall      EventType = "stream.tool.call"
	StreamToolResult    EventType = "stream.tool.result"
	StreamCompleted     EventType = "stream.completed"
	StreamError         EventType = "stream.error"
	BackgroundCompleted EventType = "background_task.completed"
	BackgroundFailed    EventType = "background_task.failed"
	BackgroundTimeout   EventType = "background_task.timeout"
	BackgroundStopped   EventType = "background_task.stopped"
	ServerConnected     EventType = "server.connected"
	ServerHeartbeat     EventType = "server.heartbeat"
	ApplicationExit     EventType = "application.exit"
)

// Event is the record published and delivered by the bus. SessionID scopes
// delivery to SubscribeToSession; events without a SessionID (server.* and
// application.exit) reach SubscribeAll and unscoped Subscribe subscribers,
// never SubscribeToSession ones.
//
// ID and Timestamp are assigned by the bus at Publish/PublishSync time when
// the caller leaves them unset; a caller-set ID or Timestamp is kept, so a
// re-published event keeps its identity.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	SessionID string            `json:"sessionID,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Data      any               `json:"data"`
}

// Usage mirrors the token accounting carried on stream.completed.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// StreamStartData is published once, before any other stream event for a
// given (sessionID, messageID) pair.
type StreamStartData struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
	Model     string `json:"model"`
}

// StreamTextData carries an incremental text delta.
type StreamTextData struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
	Delta     string `json:"delta"`
}

// StreamReasoningData carries the cumulative reasoning trace so far.
//
// Open Question resolution: reasoning is sent cumulative (the full trace
// to date) while text above is sent delta, matching how providers
// typically stream each of those fields.
type StreamReasoningData struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
	Content   string `json:"content"`
}

// StreamToolCallData announces a tool invocation.
type StreamToolCallData struct {
	SessionID  string         `json:"sessionID"`
	MessageID  string         `json:"messageID"`
	ToolCallID string         `json:"toolCallID"`
	ToolName   string         `json:"toolName"`
	ToolArgs   map[string]any `json:"toolArgs"`
}

// StreamToolResultData carries a resolved tool's output.
type StreamToolResultData struct {
	SessionID  string `json:"sessionID"`
	MessageID  string `json:"messageID"`
	ToolCallID string `json:"toolCallID"`
	ToolName   string `json:"toolName"`
	Result     string `json:"result"`
	Success    bool   `json:"success"`
}

// StreamCompletedData is terminal and published exactly once per stream.
type StreamCompletedData struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
	Usage     *Usage `json:"usage,omitempty"`
}

// StreamErrorData is terminal and published exactly once per stream.
type StreamErrorData struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID,omitempty"`
	Error     string `json:"error"`
}

// BackgroundCompletedData reports a successful background task.
type BackgroundCompletedData struct {
	TaskID          string `json:"taskID"`
	SubSessionID    string `json:"subSessionID"`
	Description     string `json:"description"`
	Result          string `json:"result"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
	SubagentType    string `json:"subagentType"`
}

// BackgroundFailedData reports a background task that exhausted retries or
// threw.
type BackgroundFailedData struct {
	TaskID          string `json:"taskID"`
	SubSessionID    string `json:"subSessionID"`
	Description     string `json:"description"`
	Error           string `json:"error"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
	SubagentType    string `json:"subagentType"`
}

// BackgroundTimeoutData reports a background task that exceeded its
// deadline.
type BackgroundTimeoutData struct {
	TaskID          string `json:"taskID"`
	SubSessionID    string `json:"subSessionID"`
	Description     string `json:"description"`
	Message         string `json:"message"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
}

// BackgroundStoppedData reports a background task cancelled by a caller.
type BackgroundStoppedData struct {
	TaskID          string `json:"taskID"`
	SubSessionID    string `json:"subSessionID"`
	Message         string `json:"message"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
}

// ServerConnectedData is sent once per new SSE connection.
type ServerConnectedData struct {
	ClientID string `json:"clientID"`
}

// ServerHeartbeatData is sent on the 30s SSE keepalive tick.
type ServerHeartbeatData struct{}

// ApplicationExitData announces a graceful shutdown in progress.
type ApplicationExitData struct {
	Reason string `json:"reason,omitempty"`
}
