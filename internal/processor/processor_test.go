package processor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/internal/event"
	"github.com/agentcore/core/internal/executor"
	"github.com/agentcore/core/internal/processor"
	"github.com/agentcore/core/internal/session"
	"github.com/agentcore/core/internal/storage"
	"github.com/agentcore/core/pkg/types"
)

// recordingInvoker captures the prompt and history it was handed, so tests
// can assert the synthetic round trip was visible to the query executor.
type recordingInvoker struct {
	gotPrompt  string
	gotHistory []types.HistoryMessage
	result     string
	err        error
}

func (r *recordingInvoker) HandleQuery(ctx context.Context, prompt string, qctx executor.QueryContext, history []types.HistoryMessage) (string, error) {
	r.gotPrompt = prompt
	r.gotHistory = history
	return r.result, r.err
}

func newTestSession(t *testing.T) (*session.Service, string) {
	t.Helper()
	svc := session.NewService(storage.NewMemory())
	sess, err := svc.Create(context.Background(), "/tmp/work", "", "")
	require.NoError(t, err)
	return svc, sess.ID
}

func TestProcessEventInSession_AppendsSyntheticTripleAndReenters(t *testing.T) {
	svc, sessionID := newTestSession(t)
	invoker := &recordingInvoker{result: "acknowledged"}

	ev := event.Event{
		Type:      event.BackgroundCompleted,
		SessionID: sessionID,
		Data: event.BackgroundCompletedData{
			TaskID: "task_1", SubSessionID: "ses_child", Description: "explore", Result: "done",
		},
	}

	result, err := processor.ProcessEventInSession(context.Background(), processor.Environment{
		Sessions: svc, Invoker: invoker,
	}, ev, processor.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "acknowledged", result)
	assert.Contains(t, invoker.gotPrompt, string(event.BackgroundCompleted))

	msgs, err := svc.GetMessages(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, types.RoleUser, msgs[0].Role)
	userText, ok := msgs[0].Parts[0].(*types.TextPart)
	require.True(t, ok)
	assert.Contains(t, userText.Text, "Observed event: background_task.completed")

	assert.Equal(t, types.RoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].Parts, 1)
	toolPart, ok := msgs[1].Parts[0].(*types.ToolPart)
	require.True(t, ok)
	assert.Equal(t, "get_event_info", toolPart.Tool)
	assert.Equal(t, types.ToolPending, toolPart.State)

	assert.Equal(t, types.RoleTool, msgs[2].Role)
	require.Len(t, msgs[2].Parts, 1)
	resultPart, ok := msgs[2].Parts[0].(*types.ToolPart)
	require.True(t, ok)
	assert.Equal(t, toolPart.CallID, resultPart.CallID)
	assert.Equal(t, types.ToolCompleted, resultPart.State)
	require.NotNil(t, resultPart.Output)
	assert.Contains(t, *resultPart.Output, "task_1")

	assert.Len(t, invoker.gotHistory, 3)
}

func TestProcessEventInSession_WithoutToolCall(t *testing.T) {
	svc, sessionID := newTestSession(t)
	invoker := &recordingInvoker{result: "ok"}

	ev := event.Event{Type: event.BackgroundFailed, SessionID: sessionID, Data: event.BackgroundFailedData{TaskID: "task_2"}}

	opts := processor.DefaultOptions()
	opts.IncludeToolCall = false

	_, err := processor.ProcessEventInSession(context.Background(), processor.Environment{
		Sessions: svc, Invoker: invoker,
	}, ev, opts)
	require.NoError(t, err)

	msgs, err := svc.GetMessages(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestProcessEventInSession_CustomPrompt(t *testing.T) {
	svc, sessionID := newTestSession(t)
	invoker := &recordingInvoker{result: "ok"}

	ev := event.Event{Type: event.BackgroundTimeout, SessionID: sessionID, Data: event.BackgroundTimeoutData{TaskID: "task_3"}}

	opts := processor.DefaultOptions()
	opts.Prompt = "The exploration subagent timed out, summarize for the user"

	_, err := processor.ProcessEventInSession(context.Background(), processor.Environment{
		Sessions: svc, Invoker: invoker,
	}, ev, opts)
	require.NoError(t, err)
	assert.Equal(t, opts.Prompt, invoker.gotPrompt)
}

func TestProcessEventInSession_UnknownSessionErrors(t *testing.T) {
	svc, _ := newTestSession(t)
	invoker := &recordingInvoker{}

	ev := event.Event{Type: event.BackgroundCompleted, SessionID: "ses_does_not_exist"}

	_, err := processor.ProcessEventInSession(context.Background(), processor.Environment{
		Sessions: svc, Invoker: invoker,
	}, ev, processor.DefaultOptions())
	assert.Error(t, err)
}

func TestProcessEventInSession_MissingSessionIDErrors(t *testing.T) {
	svc, _ := newTestSession(t)
	invoker := &recordingInvoker{}

	ev := event.Event{Type: event.BackgroundCompleted}

	_, err := processor.ProcessEventInSession(context.Background(), processor.Environment{
		Sessions: svc, Invoker: invoker,
	}, ev, processor.DefaultOptions())
	assert.Error(t, err)
}
