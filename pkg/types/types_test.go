package types_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/pkg/types"
)

func TestMessageRoundTripsPolymorphicParts(t *testing.T) {
	msg := types.Message{
		ID:        "msg_1",
		SessionID: "ses_1",
		Role:      types.RoleAssistant,
		Timestamp: 1000,
		Parts: []types.Part{
			&types.TextPart{ID: "prt_1", SessionID: "ses_1", MessageID: "msg_1", Type: "text", Text: "hello"},
			&types.ToolPart{
				ID: "prt_2", SessionID: "ses_1", MessageID: "msg_1", Type: "tool",
				CallID: "call_1", Tool: "get_weather", State: types.ToolCompleted,
				Input: map[string]any{"city": "Beijing"},
			},
		},
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded types.Message
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Len(t, decoded.Parts, 2)
	assert.Equal(t, "text", decoded.Parts[0].PartType())
	assert.IsType(t, &types.TextPart{}, decoded.Parts[0])
	assert.Equal(t, "hello", decoded.Parts[0].(*types.TextPart).Text)

	assert.Equal(t, "tool", decoded.Parts[1].PartType())
	tp := decoded.Parts[1].(*types.ToolPart)
	assert.Equal(t, "call_1", tp.CallID)
	assert.Equal(t, types.ToolCompleted, tp.State)
}

func TestUnmarshalPartUnknownTypeFallsBackToText(t *testing.T) {
	data := []byte(`{"id":"prt_9","type":"mystery","text":"fallback"}`)
	part, err := types.UnmarshalPart(data)
	require.NoError(t, err)
	assert.Equal(t, "text", part.PartType())
}

func TestSessionInfoProjection(t *testing.T) {
	parent := "ses_parent"
	s := types.Session{ID: "ses_1", ParentID: &parent, Title: "t", Directory: "/tmp", Created: 1, Updated: 2}
	info := s.Info()
	assert.Equal(t, s.ID, info.ID)
	assert.Equal(t, s.ParentID, info.ParentID)
}
