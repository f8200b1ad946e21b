package types

// Session is a single conversation context with messages and a parent/child
// lineage. ParentID references by ID only (never by pointer) so traversal
// always goes through the store, avoiding cycles entirely.
type Session struct {
	ID        string         `json:"id"`
	ParentID  *string        `json:"parentID,omitempty"`
	Title     string         `json:"title"`
	Directory string         `json:"directory"`
	Created   int64          `json:"created"`
	Updated   int64          `json:"updated"`
	Summary   *SessionSummary `json:"summary,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	// Share is a supplemented, no-op-backend capability: the core issues a
	// placeholder URL and persists it on the session. No event is published
	// for it.
	Share *SessionShare `json:"share,omitempty"`
}

// SessionSummary holds the code-change statistics a compaction or a tool run
// may attach to a session (additions/deletions/files touched).
type SessionSummary struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
	Files     int `json:"files"`
}

// SessionShare carries the placeholder share URL for Session.Share.
type SessionShare struct {
	URL string `json:"url"`
}

// SessionInfo is the trimmed projection returned by list/create endpoints.
type SessionInfo struct {
	ID        string  `json:"id"`
	ParentID  *string `json:"parentID,omitempty"`
	Title     string  `json:"title"`
	Directory string  `json:"directory"`
	Created   int64   `json:"created"`
	Updated   int64   `json:"updated"`
}

// Info projects a Session down to its SessionInfo form.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:        s.ID,
		ParentID:  s.ParentID,
		Title:     s.Title,
		Directory: s.Directory,
		Created:   s.Created,
		Updated:   s.Updated,
	}
}
