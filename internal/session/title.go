package session

import (
	"context"
	"strings"
)

const titleSystemPrompt = `You are a title generator. You output ONLY a thread title. Nothing else.

Generate a brief title that would help the user find this conversation later.

Rules:
- A single line, <=50 characters
- No explanations
- Use -ing verbs for actions (Debugging, Implementing, Analyzing)
- Keep exact: technical terms, numbers, filenames
- Remove: the, this, my, a, an
- Always output something meaningful

Examples:
"debug 500 errors in production" -> Debugging production 500 errors
"refactor user service" -> Refactoring user service
"implement rate limiting" -> Implementing rate limiting`

const defaultTitle = "New Session"

func isDefaultTitle(title string) bool {
	return title == defaultTitle || strings.HasPrefix(title, defaultTitle)
}

// GenerateTitle replaces a session's default title with one generated from
// its first user message. It is a no-op for child sessions (forks and
// compaction results keep their inherited title), sessions whose title has
// already been customized, and when no TextCompleter is configured.
func (s *Service) GenerateTitle(ctx context.Context, sessionID, userContent string) error {
	if s.completer == nil {
		return nil
	}

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.ParentID != nil {
		return nil
	}
	if !isDefaultTitle(sess.Title) {
		return nil
	}

	title, err := s.completer.Complete(ctx, titleSystemPrompt, "Generate a title for this conversation:\n\n"+userContent)
	if err != nil {
		return nil // title generation is best-effort
	}

	title = strings.TrimSpace(title)
	for _, line := range strings.Split(title, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			title = line
			break
		}
	}
	if len(title) > 100 {
		title = title[:97] + "..."
	}
	if title == "" {
		return nil
	}

	return s.SetTitle(ctx, sessionID, title)
}
