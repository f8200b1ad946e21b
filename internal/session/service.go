package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentcore/core/internal/id"
	"github.com/agentcore/core/internal/storage"
	"github.com/agentcore/core/pkg/types"
)

// DefaultMessageCap is the number of messages kept in a session's
// in-memory view before the oldest are evicted (FIFO). Eviction never
// touches the persisted copy.
const DefaultMessageCap = 100

// TextCompleter generates text from a system/user prompt pair. It is the
// only way this package talks to a model; Compact and GenerateTitle both
// depend on it, and neither depends on the query executor directly.
type TextCompleter interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// sessionView is the per-session in-memory cache: a capped window over the
// tail of that session's messages, plus the lock serializing mutation of
// that session (spec's per-session locking, so concurrent AddXMessage
// calls on the same session can't interleave, while different sessions
// proceed independently).
type sessionView struct {
	mu       sync.Mutex
	messages []*types.Message
}

// Service is the public API for session and message lifecycle operations.
type Service struct {
	store      storage.Store
	completer  TextCompleter
	messageCap int

	mu     sync.Mutex
	active map[string]*sessionView
}

// NewService creates a Service with the default message cap and no
// TextCompleter (GenerateTitle is a no-op and Compact returns an error
// until one is set with SetCompleter).
func NewService(store storage.Store) *Service {
	return &Service{
		store:      store,
		messageCap: DefaultMessageCap,
		active:     make(map[string]*sessionView),
	}
}

// SetCompleter wires a TextCompleter in after construction, since the
// query executor that implements it is typically built after the session
// service during startup.
func (s *Service) SetCompleter(c TextCompleter) {
	s.completer = c
}

func (s *Service) viewFor(sessionID string) *sessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.active[sessionID]
	if !ok {
		v = &sessionView{}
		s.active[sessionID] = v
	}
	return v
}

// Create starts a new root session (or a child of parentID, if non-empty)
// rooted at directory. Session IDs are descending-ordered so that listing
// sessions by ID naturally yields newest-first.
func (s *Service) Create(ctx context.Context, directory, title string, parentID string) (*types.Session, error) {
	if title == "" {
		title = "New Session"
	}
	now := time.Now().UnixMilli()

	sess := &types.Session{
		ID:        id.Descending(id.PrefixSession),
		Directory: directory,
		Title:     title,
		Created:   now,
		Updated:   now,
	}
	if parentID != "" {
		sess.ParentID = &parentID
	}

	if err := s.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("session: create: %w", err)
	}
	return sess, nil
}

// Get retrieves a session by ID.
func (s *Service) Get(ctx context.Context, sessionID string) (*types.Session, error) {
	return s.store.GetSession(ctx, sessionID)
}

// List returns every session, newest-updated first.
func (s *Service) List(ctx context.Context) ([]*types.Session, error) {
	return s.store.ListSessions(ctx)
}

// GetChildren returns sessions whose ParentID is sessionID, such as
// compaction results and forks.
func (s *Service) GetChildren(ctx context.Context, sessionID string) ([]*types.Session, error) {
	all, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	var children []*types.Session
	for _, sess := range all {
		if sess.ParentID != nil && *sess.ParentID == sessionID {
			children = append(children, sess)
		}
	}
	return children, nil
}

// Delete removes a session, all of its messages, and recursively every
// transitive child (forks and compaction results). Children are deleted
// before their parent so a failure partway through never leaves a session
// referencing an already-deleted ParentID.
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	children, err := s.GetChildren(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("session: delete: list children: %w", err)
	}
	for _, child := range children {
		if err := s.Delete(ctx, child.ID); err != nil {
			return err
		}
	}

	if err := s.store.DeleteMessages(ctx, sessionID); err != nil {
		return fmt.Errorf("session: delete messages: %w", err)
	}
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	s.mu.Lock()
	delete(s.active, sessionID)
	s.mu.Unlock()
	return nil
}

// Fork creates a new session that copies all messages of sessionID up to
// and including messageID, linked as a child via ParentID.
func (s *Service) Fork(ctx context.Context, sessionID, messageID string) (*types.Session, error) {
	parent, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	child, err := s.Create(ctx, parent.Directory, parent.Title+" (fork)", parent.ID)
	if err != nil {
		return nil, err
	}

	messages, err := s.store.GetMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	for _, msg := range messages {
		cp := *msg
		cp.SessionID = child.ID
		if err := s.store.SaveMessage(ctx, &cp); err != nil {
			return nil, fmt.Errorf("session: fork: copy message: %w", err)
		}
		if msg.ID == messageID {
			break
		}
	}

	return child, nil
}

// SetTitle overwrites a session's title.
func (s *Service) SetTitle(ctx context.Context, sessionID, title string) error {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.Title = title
	sess.Updated = time.Now().UnixMilli()
	return s.store.SaveSession(ctx, sess)
}

// SetSummary overwrites a session's diff-stat summary.
func (s *Service) SetSummary(ctx context.Context, sessionID string, summary types.SessionSummary) error {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.Summary = &summary
	sess.Updated = time.Now().UnixMilli()
	return s.store.SaveSession(ctx, sess)
}

// SetMetadata merges keys into a session's metadata map, creating it if
// necessary. A nil value for a key deletes that key.
func (s *Service) SetMetadata(ctx context.Context, sessionID string, updates map[string]any) error {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Metadata == nil {
		sess.Metadata = make(map[string]any)
	}
	for k, v := range updates {
		if v == nil {
			delete(sess.Metadata, k)
			continue
		}
		sess.Metadata[k] = v
	}
	sess.Updated = time.Now().UnixMilli()
	return s.store.SaveSession(ctx, sess)
}

// Share assigns a share URL to a session and returns it. The URL is a
// stub: this package does not implement an actual sharing transport.
func (s *Service) Share(ctx context.Context, sessionID string) (string, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("https://agentcore.example/share/%s", sessionID)
	sess.Share = &types.SessionShare{URL: url}
	sess.Updated = time.Now().UnixMilli()
	if err := s.store.SaveSession(ctx, sess); err != nil {
		return "", err
	}
	return url, nil
}

// Unshare clears a session's share URL.
func (s *Service) Unshare(ctx context.Context, sessionID string) error {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.Share = nil
	sess.Updated = time.Now().UnixMilli()
	return s.store.SaveSession(ctx, sess)
}

// touchSession bumps Updated so List's newest-first ordering reflects
// conversation activity, not just metadata edits.
func (s *Service) touchSession(ctx context.Context, sessionID string) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return
	}
	sess.Updated = time.Now().UnixMilli()
	_ = s.store.SaveSession(ctx, sess)
}
