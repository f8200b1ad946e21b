package session

import (
	"context"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/agentcore/core/pkg/types"
)

// prunedPlaceholder replaces a pruned tool part's output.
const prunedPlaceholder = "[output pruned to save context]"

// isProtected reports whether tool matches any of the glob-style protected
// patterns (e.g. "write*" protects every tool whose name starts with
// "write"). An empty pattern list protects nothing.
func isProtected(tool string, protected []string) bool {
	for _, pattern := range protected {
		if ok, _ := doublestar.Match(pattern, tool); ok {
			return true
		}
	}
	return false
}

// sessionTokenEstimate sums estimateTokens across every text/reasoning
// part and every still-present tool output in a message set.
func sessionTokenEstimate(messages []*types.Message) int {
	total := 0
	for _, msg := range messages {
		for _, part := range msg.Parts {
			switch p := part.(type) {
			case *types.TextPart:
				total += estimateTokens(p.Text)
			case *types.ReasoningPart:
				total += estimateTokens(p.Text)
			case *types.ToolPart:
				if p.Output != nil {
					total += estimateTokens(*p.Output)
				}
			}
		}
	}
	return total
}

// Prune replaces the output of completed, non-protected tool parts with a
// placeholder, oldest first, until the session's estimated token usage
// drops below threshold or there is nothing left prunable. It never
// touches pending or errored tool parts, and it is not a structural
// operation -- unlike Compact, it edits messages in place and creates no
// new session.
func (s *Service) Prune(ctx context.Context, sessionID string, protectedTools []string, tokenThreshold int) (int, error) {
	messages, err := s.store.GetMessages(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	prunedCount := 0
	for _, msg := range messages {
		if sessionTokenEstimate(messages) <= tokenThreshold {
			break
		}

		changed := false
		for _, part := range msg.Parts {
			tp, ok := part.(*types.ToolPart)
			if !ok || tp.State != types.ToolCompleted || tp.Pruned {
				continue
			}
			if isProtected(tp.Tool, protectedTools) {
				continue
			}
			placeholder := prunedPlaceholder
			tp.Output = &placeholder
			tp.Pruned = true
			changed = true
			prunedCount++
		}

		if changed {
			if err := s.store.SaveMessage(ctx, msg); err != nil {
				return prunedCount, fmt.Errorf("session: prune: save message: %w", err)
			}
		}
	}

	return prunedCount, nil
}
