package session

import (
	"context"
	"fmt"
	"time"

	"github.com/agentcore/core/internal/id"
	"github.com/agentcore/core/pkg/types"
)

// cacheAndPersist appends msg to the session's in-memory view (evicting
// the oldest entries past the cap) and durably saves it, all under the
// session's lock so concurrent writers on the same session can't race.
func (s *Service) cacheAndPersist(ctx context.Context, msg *types.Message) error {
	view := s.viewFor(msg.SessionID)
	view.mu.Lock()
	defer view.mu.Unlock()

	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return fmt.Errorf("session: save message: %w", err)
	}

	view.messages = append(view.messages, msg)
	if len(view.messages) > s.messageCap {
		view.messages = view.messages[len(view.messages)-s.messageCap:]
	}

	s.touchSession(ctx, msg.SessionID)
	return nil
}

// mutateMessage loads messageID (preferring the in-memory view), applies
// fn, and persists the result, all under the session's lock.
func (s *Service) mutateMessage(ctx context.Context, sessionID, messageID string, fn func(*types.Message) error) error {
	view := s.viewFor(sessionID)
	view.mu.Lock()
	defer view.mu.Unlock()

	var target *types.Message
	for _, m := range view.messages {
		if m.ID == messageID {
			target = m
			break
		}
	}
	if target == nil {
		loaded, err := s.store.GetMessage(ctx, sessionID, messageID)
		if err != nil {
			return err
		}
		target = loaded
	}

	if err := fn(target); err != nil {
		return err
	}

	if err := s.store.SaveMessage(ctx, target); err != nil {
		return fmt.Errorf("session: save message: %w", err)
	}

	for i, m := range view.messages {
		if m.ID == messageID {
			view.messages[i] = target
		}
	}

	return nil
}

func newMessage(sessionID string, role types.Role) *types.Message {
	return &types.Message{
		ID:        id.Ascending(id.PrefixMessage),
		SessionID: sessionID,
		Role:      role,
		Timestamp: time.Now().UnixMilli(),
	}
}

// AddUserMessage creates a user-role message with a single text part.
func (s *Service) AddUserMessage(ctx context.Context, sessionID, text string) (*types.Message, error) {
	msg := newMessage(sessionID, types.RoleUser)
	msg.Parts = []types.Part{
		&types.TextPart{ID: id.Ascending(id.PrefixPart), SessionID: sessionID, MessageID: msg.ID, Type: "text", Text: text},
	}
	if err := s.cacheAndPersist(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// AddSystemMessage creates a system-role message with a single text part,
// used for injected summaries (compaction).
func (s *Service) AddSystemMessage(ctx context.Context, sessionID, text string) (*types.Message, error) {
	msg := newMessage(sessionID, types.RoleSystem)
	msg.Parts = []types.Part{
		&types.TextPart{ID: id.Ascending(id.PrefixPart), SessionID: sessionID, MessageID: msg.ID, Type: "text", Text: text},
	}
	if err := s.cacheAndPersist(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// AddAssistantMessage creates a complete assistant-role message with a
// single text part, for non-streaming responses.
func (s *Service) AddAssistantMessage(ctx context.Context, sessionID, text string, model *types.ModelRef, tokens *types.TokenUsage) (*types.Message, error) {
	msg := newMessage(sessionID, types.RoleAssistant)
	msg.Model = model
	msg.Tokens = tokens
	msg.Parts = []types.Part{
		&types.TextPart{ID: id.Ascending(id.PrefixPart), SessionID: sessionID, MessageID: msg.ID, Type: "text", Text: text},
	}
	if err := s.cacheAndPersist(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// AddAssistantMessageWithTool creates an empty assistant-role message
// that accumulates parts incrementally: the streaming bridge calls
// AppendText/SetReasoning/AddToolCallWithID against its ID as chunks
// arrive, then UpdateToolResult once each tool call resolves.
func (s *Service) AddAssistantMessageWithTool(ctx context.Context, sessionID string, model *types.ModelRef) (*types.Message, error) {
	msg := newMessage(sessionID, types.RoleAssistant)
	msg.Model = model
	if err := s.cacheAndPersist(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// AddToolMessage creates a complete tool-role message wrapping a single
// resolved tool part, for non-streaming tool round trips.
func (s *Service) AddToolMessage(ctx context.Context, sessionID, callID, tool, output string, toolErr error) (*types.Message, error) {
	msg := newMessage(sessionID, types.RoleTool)
	part := &types.ToolPart{
		ID: id.Ascending(id.PrefixPart), SessionID: sessionID, MessageID: msg.ID, Type: "tool",
		CallID: callID, Tool: tool,
	}
	if toolErr != nil {
		errStr := toolErr.Error()
		part.State = types.ToolError
		part.Error = &errStr
	} else {
		part.State = types.ToolCompleted
		part.Output = &output
	}
	msg.Parts = []types.Part{part}
	if err := s.cacheAndPersist(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// AddReasoning appends a reasoning part to an existing message.
func (s *Service) AddReasoning(ctx context.Context, sessionID, messageID, text string) (*types.ReasoningPart, error) {
	part := &types.ReasoningPart{
		ID: id.Ascending(id.PrefixPart), SessionID: sessionID, MessageID: messageID, Type: "reasoning", Text: text,
	}
	err := s.mutateMessage(ctx, sessionID, messageID, func(m *types.Message) error {
		m.Parts = append(m.Parts, part)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return part, nil
}

// AddFile appends a file part to an existing message.
func (s *Service) AddFile(ctx context.Context, sessionID, messageID, mime, url, filename string) (*types.FilePart, error) {
	part := &types.FilePart{
		ID: id.Ascending(id.PrefixPart), SessionID: sessionID, MessageID: messageID, Type: "file",
		Mime: mime, URL: url, Filename: filename,
	}
	err := s.mutateMessage(ctx, sessionID, messageID, func(m *types.Message) error {
		m.Parts = append(m.Parts, part)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return part, nil
}

// AddToolCall appends a pending tool part to an existing message and
// returns it; UpdateToolResult later transitions it to completed or error.
func (s *Service) AddToolCall(ctx context.Context, sessionID, messageID, tool string, input map[string]any) (*types.ToolPart, error) {
	return s.AddToolCallWithID(ctx, sessionID, messageID, id.Ascending(id.PrefixPart), tool, input)
}

// AddToolCallWithID is AddToolCall for callers that must correlate the
// call ID with an identifier from outside the session (the event
// processor's synthetic tool calls carry a call ID derived from the
// triggering event's ID).
func (s *Service) AddToolCallWithID(ctx context.Context, sessionID, messageID, callID, tool string, input map[string]any) (*types.ToolPart, error) {
	now := time.Now().UnixMilli()
	part := &types.ToolPart{
		ID: id.Ascending(id.PrefixPart), SessionID: sessionID, MessageID: messageID, Type: "tool",
		CallID: callID, Tool: tool, State: types.ToolPending, Input: input,
		Time: types.PartTime{Start: now},
	}
	err := s.mutateMessage(ctx, sessionID, messageID, func(m *types.Message) error {
		m.Parts = append(m.Parts, part)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return part, nil
}

// UpdateToolResult transitions the pending tool part identified by callID
// within messageID to completed (toolErr == nil) or error.
func (s *Service) UpdateToolResult(ctx context.Context, sessionID, messageID, callID, output string, toolErr error) error {
	return s.mutateMessage(ctx, sessionID, messageID, func(m *types.Message) error {
		for _, p := range m.Parts {
			tp, ok := p.(*types.ToolPart)
			if !ok || tp.CallID != callID {
				continue
			}
			end := time.Now().UnixMilli()
			tp.Time.End = &end
			if toolErr != nil {
				errStr := toolErr.Error()
				tp.State = types.ToolError
				tp.Error = &errStr
			} else {
				tp.State = types.ToolCompleted
				tp.Output = &output
			}
			return nil
		}
		return fmt.Errorf("session: tool call %q not found on message %q", callID, messageID)
	})
}

// AppendText appends a text delta to messageID's open text part, creating
// one on first call. Used by the streaming bridge, which receives text as
// incremental deltas.
func (s *Service) AppendText(ctx context.Context, sessionID, messageID, delta string) (*types.TextPart, error) {
	var result *types.TextPart
	err := s.mutateMessage(ctx, sessionID, messageID, func(m *types.Message) error {
		for _, p := range m.Parts {
			if tp, ok := p.(*types.TextPart); ok {
				tp.Text += delta
				result = tp
				return nil
			}
		}
		tp := &types.TextPart{ID: id.Ascending(id.PrefixPart), SessionID: sessionID, MessageID: messageID, Type: "text", Text: delta}
		m.Parts = append(m.Parts, tp)
		result = tp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetReasoning overwrites messageID's reasoning part with the cumulative
// trace so far, creating one on first call. Used by the streaming bridge,
// which receives reasoning content cumulative rather than delta.
func (s *Service) SetReasoning(ctx context.Context, sessionID, messageID, content string) (*types.ReasoningPart, error) {
	var result *types.ReasoningPart
	err := s.mutateMessage(ctx, sessionID, messageID, func(m *types.Message) error {
		for _, p := range m.Parts {
			if rp, ok := p.(*types.ReasoningPart); ok {
				rp.Text = content
				result = rp
				return nil
			}
		}
		rp := &types.ReasoningPart{ID: id.Ascending(id.PrefixPart), SessionID: sessionID, MessageID: messageID, Type: "reasoning", Text: content}
		m.Parts = append(m.Parts, rp)
		result = rp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateToolCallInput overwrites the parsed input of a still-pending tool
// part as its streamed arguments accumulate.
func (s *Service) UpdateToolCallInput(ctx context.Context, sessionID, messageID, callID string, input map[string]any) error {
	return s.mutateMessage(ctx, sessionID, messageID, func(m *types.Message) error {
		for _, p := range m.Parts {
			tp, ok := p.(*types.ToolPart)
			if !ok || tp.CallID != callID {
				continue
			}
			tp.Input = input
			return nil
		}
		return fmt.Errorf("session: tool call %q not found on message %q", callID, messageID)
	})
}

// SetMessageTokens records token usage on messageID, once the provider's
// response metadata reports it.
func (s *Service) SetMessageTokens(ctx context.Context, sessionID, messageID string, tokens *types.TokenUsage) error {
	return s.mutateMessage(ctx, sessionID, messageID, func(m *types.Message) error {
		m.Tokens = tokens
		return nil
	})
}

// GetMessages returns every message of a session, ascending by timestamp.
func (s *Service) GetMessages(ctx context.Context, sessionID string) ([]*types.Message, error) {
	return s.store.GetMessages(ctx, sessionID)
}

// GetMessage returns a single message by ID.
func (s *Service) GetMessage(ctx context.Context, sessionID, messageID string) (*types.Message, error) {
	return s.store.GetMessage(ctx, sessionID, messageID)
}

// GetLastMessage returns the most recently added message of a session, or
// nil if the session has none.
func (s *Service) GetLastMessage(ctx context.Context, sessionID string) (*types.Message, error) {
	messages, err := s.store.GetMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, nil
	}
	return messages[len(messages)-1], nil
}

// ToHistory projects a session's messages down to the role+parts shape
// the query executor contract expects as prompt history. Reasoning parts
// are dropped.
func (s *Service) ToHistory(ctx context.Context, sessionID string) ([]types.HistoryMessage, error) {
	messages, err := s.store.GetMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	history := make([]types.HistoryMessage, 0, len(messages))
	for _, m := range messages {
		parts := make([]types.Part, 0, len(m.Parts))
		for _, p := range m.Parts {
			if _, ok := p.(*types.ReasoningPart); ok {
				continue
			}
			parts = append(parts, p)
		}
		history = append(history, types.HistoryMessage{Role: m.Role, Parts: parts})
	}
	return history, nil
}
