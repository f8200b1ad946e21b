package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/internal/session"
	"github.com/agentcore/core/pkg/types"
)

type stubCompleter struct {
	text string
	err  error

	gotSystemPrompt string
	gotUserPrompt   string
}

func (c *stubCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.gotSystemPrompt = systemPrompt
	c.gotUserPrompt = userPrompt
	return c.text, c.err
}

func TestCompactWithoutCompleterErrors(t *testing.T) {
	svc, sessionID := newTestSessionWithID(t)
	_, err := svc.Compact(context.Background(), sessionID, session.CompactOptions{})
	assert.Error(t, err)
}

func TestCompactCreatesChildWithSummarySeed(t *testing.T) {
	svc, sessionID := newTestSessionWithID(t)
	ctx := context.Background()
	_, err := svc.AddUserMessage(ctx, sessionID, "please implement feature X")
	require.NoError(t, err)
	_, err = svc.AddAssistantMessage(ctx, sessionID, "done, added feature X", nil, nil)
	require.NoError(t, err)

	completer := &stubCompleter{text: "Summary: implemented feature X."}
	svc.SetCompleter(completer)

	result, err := svc.Compact(ctx, sessionID, session.CompactOptions{})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotNil(t, result.Session.ParentID)
	assert.Equal(t, sessionID, *result.Session.ParentID)
	assert.Contains(t, result.Session.Title, "compacted")
	assert.Contains(t, completer.gotUserPrompt, "feature X")

	childMsgs, err := svc.GetMessages(ctx, result.Session.ID)
	require.NoError(t, err)
	require.Len(t, childMsgs, 1)
	assert.Equal(t, types.RoleSystem, childMsgs[0].Role)
	text, ok := childMsgs[0].Parts[0].(*types.TextPart)
	require.True(t, ok)
	assert.Equal(t, "Summary: implemented feature X.", text.Text)
}

func TestCompactDoesNotModifyParentSession(t *testing.T) {
	svc, sessionID := newTestSessionWithID(t)
	ctx := context.Background()
	_, err := svc.AddUserMessage(ctx, sessionID, "hi")
	require.NoError(t, err)

	svc.SetCompleter(&stubCompleter{text: "summary"})
	_, err = svc.Compact(ctx, sessionID, session.CompactOptions{})
	require.NoError(t, err)

	parentMsgs, err := svc.GetMessages(ctx, sessionID)
	require.NoError(t, err)
	assert.Len(t, parentMsgs, 1)
}

func TestCompactSurfacesCompleterErrorWithoutGoError(t *testing.T) {
	svc, sessionID := newTestSessionWithID(t)
	ctx := context.Background()
	_, err := svc.AddUserMessage(ctx, sessionID, "hi")
	require.NoError(t, err)

	svc.SetCompleter(&stubCompleter{err: errors.New("provider unavailable")})
	result, err := svc.Compact(ctx, sessionID, session.CompactOptions{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "provider unavailable", result.Error)
	assert.Nil(t, result.Session)

	parentMsgs, err := svc.GetMessages(ctx, sessionID)
	require.NoError(t, err)
	assert.Len(t, parentMsgs, 1)
}

func TestCompactSummaryPromptIncludesToolOutput(t *testing.T) {
	svc, sessionID := newTestSessionWithID(t)
	ctx := context.Background()
	assistantMsg, err := svc.AddAssistantMessageWithTool(ctx, sessionID, nil)
	require.NoError(t, err)
	part, err := svc.AddToolCall(ctx, sessionID, assistantMsg.ID, "read_file", nil)
	require.NoError(t, err)
	require.NoError(t, svc.UpdateToolResult(ctx, sessionID, assistantMsg.ID, part.CallID, "file output here", nil))

	completer := &stubCompleter{text: "ok"}
	svc.SetCompleter(completer)
	_, err = svc.Compact(ctx, sessionID, session.CompactOptions{})
	require.NoError(t, err)
	assert.Contains(t, completer.gotUserPrompt, "[Tool: read_file]")
	assert.Contains(t, completer.gotUserPrompt, "file output here")
}

func TestCompactKeepMessagesLimitsHistorySentToSummarizer(t *testing.T) {
	svc, sessionID := newTestSessionWithID(t)
	ctx := context.Background()
	_, err := svc.AddUserMessage(ctx, sessionID, "old message that should be dropped")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := svc.AddUserMessage(ctx, sessionID, "recent message")
		require.NoError(t, err)
	}

	completer := &stubCompleter{text: "ok"}
	svc.SetCompleter(completer)

	result, err := svc.Compact(ctx, sessionID, session.CompactOptions{KeepMessages: 2})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.NotContains(t, completer.gotUserPrompt, "should be dropped")
	assert.Contains(t, completer.gotUserPrompt, "recent message")
}

func TestCompactCustomPromptReplacesDefaultInstruction(t *testing.T) {
	svc, sessionID := newTestSessionWithID(t)
	ctx := context.Background()
	_, err := svc.AddUserMessage(ctx, sessionID, "hi")
	require.NoError(t, err)

	completer := &stubCompleter{text: "ok"}
	svc.SetCompleter(completer)

	_, err = svc.Compact(ctx, sessionID, session.CompactOptions{CustomPrompt: "Focus only on open bugs."})
	require.NoError(t, err)
	assert.Contains(t, completer.gotUserPrompt, "Focus only on open bugs.")
	assert.NotContains(t, completer.gotUserPrompt, "main user goals")
}
