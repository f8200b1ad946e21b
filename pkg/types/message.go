package types

import "encoding/json"

// Role distinguishes who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// Message is an append-only, part-structured entry in a session's history.
// A message may grow new parts while "live" (an assistant message's pending
// tool parts transition to completed); completed messages are immutable.
type Message struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionID"`
	Role      Role           `json:"role"`
	Timestamp int64          `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Parts     []Part         `json:"parts"`

	// ModelRef and Tokens are carried on assistant messages only; they
	// supplement the stream.completed event payload with a persisted record.
	Model  *ModelRef   `json:"model,omitempty"`
	Tokens *TokenUsage `json:"tokens,omitempty"`
}

// ModelRef names the provider/model pair that produced an assistant message.
type ModelRef struct {
	ProviderID string `json:"providerID"`
	ModelID    string `json:"modelID"`
}

// TokenUsage mirrors the usage payload carried on stream.completed.
type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// HistoryMessage is the role-tagged projection produced by Session.ToHistory:
// text/file/tool parts are preserved, reasoning parts are dropped.
type HistoryMessage struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// messageAlias avoids recursing back into Message's custom (un)marshaler.
type messageAlias Message

// messageJSON mirrors Message but stores parts as raw JSON so each one can
// be sniffed and decoded into its concrete type.
type messageJSON struct {
	messageAlias
	Parts []json.RawMessage `json:"parts"`
}

// MarshalJSON encodes the polymorphic Parts slice field by field.
func (m Message) MarshalJSON() ([]byte, error) {
	raw := messageJSON{messageAlias: messageAlias(m)}
	for _, p := range m.Parts {
		data, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		raw.Parts = append(raw.Parts, data)
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes Parts using UnmarshalPart's type discriminator.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Message(raw.messageAlias)
	m.Parts = nil
	for _, rp := range raw.Parts {
		part, err := UnmarshalPart(rp)
		if err != nil {
			return err
		}
		m.Parts = append(m.Parts, part)
	}
	return nil
}
