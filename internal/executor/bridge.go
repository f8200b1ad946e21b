package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/agentcore/core/internal/event"
	"github.com/agentcore/core/internal/logging"
	"github.com/agentcore/core/internal/session"
	"github.com/agentcore/core/pkg/types"
)

// pendingToolCall tracks a tool call being assembled from stream chunks,
// keyed by its eino stream Index (falling back to ID when the provider
// omits one).
type pendingToolCall struct {
	callID string
	name   string
	args   string
	input  map[string]any
}

// streamBridge translates one assistant message's provider chunk stream
// into session parts (via session.Service) and bus events (via
// internal/event), mirroring the teacher's processMessageChunk state
// machine: text arrives delta, reasoning arrives cumulative, tool call
// arguments arrive as a sequence of partial-JSON fragments keyed by index.
type streamBridge struct {
	sessions  *session.Service
	sessionID string
	messageID string

	pending map[string]*pendingToolCall
}

func newStreamBridge(sessions *session.Service, sessionID, messageID string) *streamBridge {
	return &streamBridge{
		sessions:  sessions,
		sessionID: sessionID,
		messageID: messageID,
		pending:   make(map[string]*pendingToolCall),
	}
}

// start publishes stream.start, once, before any chunk is consumed.
func (b *streamBridge) start(model string) {
	event.Publish(event.Event{
		Type:      event.StreamStart,
		SessionID: b.sessionID,
		Data:      event.StreamStartData{SessionID: b.sessionID, MessageID: b.messageID, Model: model},
	})
}

// consume applies one chunk's content and returns a non-empty finish reason
// once the provider signals one via ResponseMeta.
func (b *streamBridge) consume(ctx context.Context, msg *schema.Message) string {
	if msg.Content != "" {
		if _, err := b.sessions.AppendText(ctx, b.sessionID, b.messageID, msg.Content); err != nil {
			logging.Logger.Warn().Err(err).Msg("executor: append text delta failed")
		} else {
			event.Publish(event.Event{
				Type:      event.StreamText,
				SessionID: b.sessionID,
				Data:      event.StreamTextData{SessionID: b.sessionID, MessageID: b.messageID, Delta: msg.Content},
			})
		}
	}

	if msg.ReasoningContent != "" {
		if _, err := b.sessions.SetReasoning(ctx, b.sessionID, b.messageID, msg.ReasoningContent); err != nil {
			logging.Logger.Warn().Err(err).Msg("executor: set reasoning failed")
		} else {
			event.Publish(event.Event{
				Type:      event.StreamReasoning,
				SessionID: b.sessionID,
				Data:      event.StreamReasoningData{SessionID: b.sessionID, MessageID: b.messageID, Content: msg.ReasoningContent},
			})
		}
	}

	for _, tc := range msg.ToolCalls {
		b.consumeToolCall(ctx, tc)
	}

	if msg.ResponseMeta != nil {
		if msg.ResponseMeta.Usage != nil {
			usage := &types.TokenUsage{
				PromptTokens:     msg.ResponseMeta.Usage.PromptTokens,
				CompletionTokens: msg.ResponseMeta.Usage.CompletionTokens,
				TotalTokens:      msg.ResponseMeta.Usage.PromptTokens + msg.ResponseMeta.Usage.CompletionTokens,
			}
			if err := b.sessions.SetMessageTokens(ctx, b.sessionID, b.messageID, usage); err != nil {
				logging.Logger.Warn().Err(err).Msg("executor: set token usage failed")
			}
		}
		if msg.ResponseMeta.FinishReason != "" {
			return msg.ResponseMeta.FinishReason
		}
	}

	return ""
}

// consumeToolCall accumulates one tool-call chunk. A call's ID and Name
// arrive on its first chunk; subsequent chunks carry only an Arguments
// fragment to append.
func (b *streamBridge) consumeToolCall(ctx context.Context, tc schema.ToolCall) {
	var key string
	switch {
	case tc.Index != nil:
		key = fmt.Sprintf("idx:%d", *tc.Index)
	case tc.ID != "":
		key = tc.ID
	default:
		return
	}

	call, exists := b.pending[key]
	if !exists && tc.ID != "" && tc.Function.Name != "" {
		call = &pendingToolCall{callID: tc.ID, name: tc.Function.Name}
		b.pending[key] = call

		if _, err := b.sessions.AddToolCallWithID(ctx, b.sessionID, b.messageID, tc.ID, tc.Function.Name, nil); err != nil {
			logging.Logger.Warn().Err(err).Msg("executor: add tool call failed")
		}
		event.Publish(event.Event{
			Type:      event.StreamToolCall,
			SessionID: b.sessionID,
			Data: event.StreamToolCallData{
				SessionID: b.sessionID, MessageID: b.messageID,
				ToolCallID: tc.ID, ToolName: tc.Function.Name,
			},
		})
	}

	if call == nil || tc.Function.Arguments == "" {
		return
	}

	call.args += tc.Function.Arguments
	var input map[string]any
	if err := json.Unmarshal([]byte(call.args), &input); err == nil {
		call.input = input
		if err := b.sessions.UpdateToolCallInput(ctx, b.sessionID, b.messageID, call.callID, input); err != nil {
			logging.Logger.Warn().Err(err).Msg("executor: update tool call input failed")
		}
	}
}

// openToolCalls returns every tool call accumulated so far, for dispatch
// once a tool-calls finish reason arrives.
func (b *streamBridge) openToolCalls() []pendingToolCall {
	out := make([]pendingToolCall, 0, len(b.pending))
	for _, c := range b.pending {
		out = append(out, *c)
	}
	return out
}

// resolve marks callID's tool part completed or errored and publishes its
// result.
func (b *streamBridge) resolve(ctx context.Context, callID, toolName, output string, toolErr error) {
	if err := b.sessions.UpdateToolResult(ctx, b.sessionID, b.messageID, callID, output, toolErr); err != nil {
		logging.Logger.Warn().Err(err).Msg("executor: update tool result failed")
	}
	result := output
	if toolErr != nil {
		result = toolErr.Error()
	}
	event.Publish(event.Event{
		Type:      event.StreamToolResult,
		SessionID: b.sessionID,
		Data: event.StreamToolResultData{
			SessionID: b.sessionID, MessageID: b.messageID,
			ToolCallID: callID, ToolName: toolName, Result: result, Success: toolErr == nil,
		},
	})
}

// finish publishes the terminal stream.completed event.
func (b *streamBridge) finish(usage *event.Usage) {
	event.Publish(event.Event{
		Type:      event.StreamCompleted,
		SessionID: b.sessionID,
		Data:      event.StreamCompletedData{SessionID: b.sessionID, MessageID: b.messageID, Usage: usage},
	})
}

// fail publishes the terminal stream.error event.
func (b *streamBridge) fail(err error) {
	event.Publish(event.Event{
		Type:      event.StreamError,
		SessionID: b.sessionID,
		Data:      event.StreamErrorData{SessionID: b.sessionID, MessageID: b.messageID, Error: err.Error()},
	})
}
