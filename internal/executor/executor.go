package executor

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/agentcore/core/internal/session"
	"github.com/agentcore/core/pkg/types"
)

const (
	// MaxSteps bounds the number of tool-calling loop iterations for a
	// single HandleQuery call.
	MaxSteps = 50
	// MaxRetries bounds the number of retries for transient provider errors.
	MaxRetries = 3
	// RetryInitialInterval is the first backoff interval.
	RetryInitialInterval = time.Second
	// RetryMaxInterval caps the backoff interval.
	RetryMaxInterval = 30 * time.Second
	// RetryMaxElapsedTime caps total time spent retrying one completion.
	RetryMaxElapsedTime = 2 * time.Minute
	// MaxContextTokens is the threshold above which a caller should compact
	// a session before continuing (see session.Service.Compact).
	MaxContextTokens = 150000
)

// newRetryBackoff builds an exponential backoff with jitter, bounded by
// MaxRetries and cancelled alongside ctx.
func newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryInitialInterval
	b.MaxInterval = RetryMaxInterval
	b.MaxElapsedTime = RetryMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, MaxRetries), ctx)
}

// Executor drives the tool-calling loop against a ModelClient, streaming
// progress through the streamBridge and persisting parts via
// session.Service. It also implements session.TextCompleter so Compact and
// GenerateTitle can use it for their one-shot, toolless completions.
type Executor struct {
	sessions     *session.Service
	models       ModelClient
	tools        ToolRegistry
	defaultModel types.ModelRef
}

var (
	_ session.TextCompleter = (*Executor)(nil)
	_ QueryInvoker          = (*Executor)(nil)
)

// New creates an Executor. tools may be nil, in which case no tool
// definitions are ever offered to the model.
func New(sessions *session.Service, models ModelClient, tools ToolRegistry, defaultModel types.ModelRef) *Executor {
	if tools == nil {
		tools = noTools{}
	}
	return &Executor{sessions: sessions, models: models, tools: tools, defaultModel: defaultModel}
}

// Complete implements session.TextCompleter: a single, toolless completion,
// used by Session.Compact (to summarize) and Session.GenerateTitle.
func (e *Executor) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := CompletionRequest{
		SystemPrompt: systemPrompt,
		History: []types.HistoryMessage{{
			Role:  types.RoleUser,
			Parts: []types.Part{&types.TextPart{Type: "text", Text: userPrompt}},
		}},
		Model: e.defaultModel,
	}

	retryBackoff := newRetryBackoff(ctx)
	for {
		stream, err := e.models.CreateCompletion(ctx, req)
		if err != nil {
			if !waitRetry(retryBackoff) {
				return "", fmt.Errorf("executor: complete: %w", err)
			}
			continue
		}
		text, err := drainText(stream)
		stream.Close()
		if err != nil {
			if !waitRetry(retryBackoff) {
				return "", fmt.Errorf("executor: complete: %w", err)
			}
			continue
		}
		return text, nil
	}
}

// HandleQuery implements QueryInvoker: it seeds an assistant message,
// drives the model/tool loop until a terminal finish reason or MaxSteps is
// reached, and returns the assistant's final text.
func (e *Executor) HandleQuery(ctx context.Context, prompt string, qctx QueryContext, history []types.HistoryMessage) (string, error) {
	model := qctx.Model
	if model.ModelID == "" {
		model = e.defaultModel
	}

	assistantMsg, err := e.sessions.AddAssistantMessageWithTool(ctx, qctx.SessionID, &model)
	if err != nil {
		return "", fmt.Errorf("executor: seed assistant message: %w", err)
	}

	fullHistory := append(append([]types.HistoryMessage{}, history...), types.HistoryMessage{
		Role:  types.RoleUser,
		Parts: []types.Part{&types.TextPart{Type: "text", Text: prompt}},
	})

	bridge := newStreamBridge(e.sessions, qctx.SessionID, assistantMsg.ID)
	bridge.start(model.ModelID)

	retryBackoff := newRetryBackoff(ctx)
	for step := 0; ; {
		select {
		case <-ctx.Done():
			bridge.fail(ctx.Err())
			return "", ctx.Err()
		default:
		}

		if step >= MaxSteps {
			err := fmt.Errorf("executor: max steps exceeded")
			bridge.fail(err)
			return "", err
		}

		req := CompletionRequest{History: fullHistory, Tools: e.tools.Definitions(), Model: model}
		stream, err := e.models.CreateCompletion(ctx, req)
		if err != nil {
			if !waitRetry(retryBackoff) {
				bridge.fail(err)
				return "", fmt.Errorf("executor: create completion: %w", err)
			}
			continue
		}

		finishReason, err := e.consumeStream(ctx, stream, bridge)
		stream.Close()
		if err != nil {
			if !waitRetry(retryBackoff) {
				bridge.fail(err)
				return "", fmt.Errorf("executor: stream: %w", err)
			}
			continue
		}
		retryBackoff = newRetryBackoff(ctx)

		switch finishReason {
		case "tool_use", "tool-calls":
			assistantSoFar, err := e.sessions.GetMessage(ctx, qctx.SessionID, assistantMsg.ID)
			if err != nil {
				return "", err
			}
			fullHistory = append(fullHistory, types.HistoryMessage{Role: types.RoleAssistant, Parts: assistantSoFar.Parts})

			for _, call := range bridge.openToolCalls() {
				output, toolErr := e.runTool(ctx, qctx.SessionID, call)
				bridge.resolve(ctx, call.callID, call.name, output, toolErr)

				toolMsg, err := e.sessions.AddToolMessage(ctx, qctx.SessionID, call.callID, call.name, output, toolErr)
				if err != nil {
					return "", err
				}
				fullHistory = append(fullHistory, types.HistoryMessage{Role: types.RoleTool, Parts: toolMsg.Parts})
			}

			assistantMsg, err = e.sessions.AddAssistantMessageWithTool(ctx, qctx.SessionID, &model)
			if err != nil {
				return "", fmt.Errorf("executor: seed next assistant message: %w", err)
			}
			bridge = newStreamBridge(e.sessions, qctx.SessionID, assistantMsg.ID)
			bridge.start(model.ModelID)
			step++
			continue

		default:
			// "stop", "end_turn", an empty reason (EOF with no
			// ResponseMeta), "max_tokens"/"length", or anything the
			// provider sends that this core doesn't special-case --
			// all of these end the loop.
			bridge.finish(nil)
			final, err := e.sessions.GetMessage(ctx, qctx.SessionID, assistantMsg.ID)
			if err != nil {
				return "", err
			}
			return textOf(final), nil
		}
	}
}

func (e *Executor) runTool(ctx context.Context, sessionID string, call pendingToolCall) (string, error) {
	tool, ok := e.tools.Get(call.name)
	if !ok {
		return "", fmt.Errorf("executor: unknown tool %q", call.name)
	}
	return tool.Execute(ctx, sessionID, call.input)
}

// consumeStream drains stream, feeding each chunk to bridge, until EOF or a
// non-empty finish reason arrives.
func (e *Executor) consumeStream(ctx context.Context, stream ChunkStream, bridge *streamBridge) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		msg, err := stream.Recv()
		if err == io.EOF {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		if reason := bridge.consume(ctx, msg); reason != "" {
			return reason, nil
		}
	}
}

// waitRetry advances b and sleeps for its next interval, reporting whether
// another attempt should be made.
func waitRetry(b backoff.BackOff) bool {
	next := b.NextBackOff()
	if next == backoff.Stop {
		return false
	}
	time.Sleep(next)
	return true
}

func drainText(stream ChunkStream) (string, error) {
	var text string
	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			return text, nil
		}
		if err != nil {
			return text, err
		}
		text += msg.Content
	}
}

func textOf(msg *types.Message) string {
	for _, p := range msg.Parts {
		if tp, ok := p.(*types.TextPart); ok {
			return tp.Text
		}
	}
	return ""
}
