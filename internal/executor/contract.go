package executor

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/agentcore/core/pkg/types"
)

// QueryContext addresses one HandleQuery call: which session it belongs to
// and which model to request from the ModelClient.
type QueryContext struct {
	SessionID string
	Model     types.ModelRef
}

// QueryInvoker is the query executor contract spec.md §4.8 names: run a
// prompt against a session's history and return the assistant's final
// text, streaming progress as it goes.
type QueryInvoker interface {
	HandleQuery(ctx context.Context, prompt string, qctx QueryContext, history []types.HistoryMessage) (string, error)
}

// ChunkStream is a provider-agnostic handle over a streaming completion,
// mirroring the teacher's provider.CompletionStream shape.
type ChunkStream interface {
	Recv() (*schema.Message, error)
	Close() error
}

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// CompletionRequest is what a ModelClient needs to start a streaming
// completion.
type CompletionRequest struct {
	SystemPrompt string
	History      []types.HistoryMessage
	Tools        []ToolDefinition
	Model        types.ModelRef
}

// ModelClient is the concrete LLM provider collaborator. Concrete provider
// wiring is out of scope for this repository (spec.md §1); callers inject
// whatever SDK-backed implementation they need at startup.
type ModelClient interface {
	CreateCompletion(ctx context.Context, req CompletionRequest) (ChunkStream, error)
}

// Tool is a single callable tool's execution side.
type Tool interface {
	Execute(ctx context.Context, sessionID string, input map[string]any) (string, error)
}

// ToolRegistry resolves tool names to their definitions and their
// execution. Concrete tool logic (bash/file/web/MCP) is out of scope for
// this repository (spec.md §1).
type ToolRegistry interface {
	Get(name string) (Tool, bool)
	Definitions() []ToolDefinition
}

// noTools is the zero-value ToolRegistry used when Executor is built
// without one -- no tool definitions are ever offered to the model.
type noTools struct{}

func (noTools) Get(string) (Tool, bool)       { return nil, false }
func (noTools) Definitions() []ToolDefinition { return nil }

// NoTools returns a ToolRegistry that offers no tools. Callers (chiefly
// cmd/agentcore-server, until a concrete tool registry is wired in) use
// this when the deployment has none to register.
func NoTools() ToolRegistry {
	return noTools{}
}
