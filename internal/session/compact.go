package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentcore/core/pkg/types"
)

// DefaultKeepMessages is the number of trailing messages Compact summarizes
// when CompactOptions.KeepMessages is left at its zero value.
const DefaultKeepMessages = 50

// defaultSummaryInstruction is the instruction combined with the rendered
// transcript when CompactOptions.CustomPrompt is empty.
const defaultSummaryInstruction = "Summarize: main user goals, key decisions, current state, next steps."

// compactionSystemPrompt mirrors the summarizer persona used to generate
// the single seed message of a compacted child session.
const compactionSystemPrompt = `You are a conversation summarizer. Create a concise summary of the conversation that preserves key context for continuing the discussion.

Focus on:
1. What was accomplished
2. Current work in progress
3. Files involved
4. Next steps
5. Any key user requests or constraints

Be concise but detailed enough that work can continue seamlessly.`

// CompactOptions configures Compact. KeepMessages defaults to
// DefaultKeepMessages when zero. CustomPrompt, if set, replaces the default
// summarization instruction combined with the rendered transcript.
type CompactOptions struct {
	KeepMessages int
	CustomPrompt string
}

// CompactionResult reports the outcome of a Compact call. On failure,
// Session is nil and Error carries the invoker's error message; the parent
// session is always left unchanged either way.
type CompactionResult struct {
	Success bool
	Session *types.Session
	Error   string
}

// Compact creates a new child session of sessionID whose sole initial
// message is a system-role summary of the last opts.KeepMessages
// messages of the parent's history. It does not modify the parent session
// in any way -- compaction is a fork operation, not an in-place rewrite.
// Callers that want to continue the conversation with a smaller context
// operate on the returned child's ID from then on.
func (s *Service) Compact(ctx context.Context, sessionID string, opts CompactOptions) (CompactionResult, error) {
	if s.completer == nil {
		return CompactionResult{}, fmt.Errorf("session: compact: no TextCompleter configured")
	}

	keepMessages := opts.KeepMessages
	if keepMessages <= 0 {
		keepMessages = DefaultKeepMessages
	}

	parent, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return CompactionResult{}, err
	}

	messages, err := s.store.GetMessages(ctx, sessionID)
	if err != nil {
		return CompactionResult{}, err
	}
	if len(messages) > keepMessages {
		messages = messages[len(messages)-keepMessages:]
	}

	prompt := buildSummaryPrompt(messages, opts.CustomPrompt)
	summary, err := s.completer.Complete(ctx, compactionSystemPrompt, prompt)
	if err != nil {
		return CompactionResult{Success: false, Error: err.Error()}, nil
	}

	child, err := s.Create(ctx, parent.Directory, parent.Title+" (compacted)", parent.ID)
	if err != nil {
		return CompactionResult{}, err
	}

	if _, err := s.AddSystemMessage(ctx, child.ID, summary); err != nil {
		return CompactionResult{}, fmt.Errorf("session: compact: seed summary message: %w", err)
	}

	return CompactionResult{Success: true, Session: child}, nil
}

// buildSummaryPrompt flattens messages into a plain-text transcript and
// combines it with customPrompt (if set) or the default summarization
// instruction, suitable as the user turn of a summarization request.
func buildSummaryPrompt(messages []*types.Message, customPrompt string) string {
	instruction := defaultSummaryInstruction
	if customPrompt != "" {
		instruction = customPrompt
	}

	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\n---\n\n")

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleUser:
			b.WriteString("USER:\n")
		case types.RoleAssistant:
			b.WriteString("ASSISTANT:\n")
		default:
			continue
		}
		for _, part := range msg.Parts {
			switch pt := part.(type) {
			case *types.TextPart:
				b.WriteString(pt.Text)
				b.WriteString("\n")
			case *types.ToolPart:
				fmt.Fprintf(&b, "[Tool: %s]\n", pt.Tool)
				if pt.Output != nil {
					out := *pt.Output
					if len(out) > 500 {
						out = out[:500] + "..."
					}
					b.WriteString(out)
					b.WriteString("\n")
				}
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

// estimateTokens is a rough, provider-agnostic token estimate used to
// decide when pruning and compaction should trigger: about 4 characters
// per token.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
