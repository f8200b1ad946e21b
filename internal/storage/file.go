package storage

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/agentcore/core/pkg/types"
)

// File is a Store backed by one JSON file per session and per message,
// using the fileBackend/fileLock primitives for atomic, advisory-locked
// writes. Writes are queued and applied on a single background goroutine
// so callers never block on disk I/O; Flush drains the queue and reports
// the most recent write error.
type File struct {
	fs *fileBackend

	mu      sync.Mutex
	lastErr error

	wg    sync.WaitGroup
	queue chan func() error
	done  chan struct{}
}

// NewFile creates a File store rooted at dir. The directory is created
// lazily by the underlying fileBackend on first write.
func NewFile(dir string) *File {
	f := &File{
		fs:    newFileBackend(dir),
		queue: make(chan func() error, 256),
		done:  make(chan struct{}),
	}
	go f.worker()
	return f
}

func (f *File) worker() {
	for job := range f.queue {
		err := job()
		f.mu.Lock()
		if err != nil {
			f.lastErr = err
		}
		f.mu.Unlock()
		f.wg.Done()
	}
	close(f.done)
}

func (f *File) enqueue(job func() error) {
	f.wg.Add(1)
	f.queue <- job
}

func (f *File) SaveSession(ctx context.Context, session *types.Session) error {
	cp := *session
	f.enqueue(func() error {
		return f.fs.Put(ctx, []string{"sessions", cp.ID}, &cp)
	})
	return nil
}

func (f *File) GetSession(ctx context.Context, id string) (*types.Session, error) {
	var s types.Session
	if err := f.fs.Get(ctx, []string{"sessions", id}, &s); err != nil {
		if err == ErrNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (f *File) ListSessions(ctx context.Context) ([]*types.Session, error) {
	ids, err := f.fs.List(ctx, []string{"sessions"})
	if err != nil {
		return nil, err
	}
	out := make([]*types.Session, 0, len(ids))
	err = f.fs.Scan(ctx, []string{"sessions"}, func(key string, data json.RawMessage) error {
		var s types.Session
		if unmarshalErr := json.Unmarshal(data, &s); unmarshalErr != nil {
			// A corrupt record must not prevent the rest of the listing
			// from loading.
			return nil
		}
		out = append(out, &s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortSessionsByUpdatedDesc(out)
	return out, nil
}

func (f *File) DeleteSession(ctx context.Context, id string) error {
	f.enqueue(func() error {
		if err := f.fs.Delete(ctx, []string{"sessions", id}); err != nil {
			return err
		}
		return deleteDir(f.fs.pathToDir([]string{"messages", id}))
	})
	return nil
}

func (f *File) SaveMessage(ctx context.Context, message *types.Message) error {
	cp := *message
	f.enqueue(func() error {
		return f.fs.Put(ctx, []string{"messages", cp.SessionID, cp.ID}, &cp)
	})
	return nil
}

func (f *File) GetMessage(ctx context.Context, sessionID, messageID string) (*types.Message, error) {
	var m types.Message
	if err := f.fs.Get(ctx, []string{"messages", sessionID, messageID}, &m); err != nil {
		if err == ErrNotFound {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (f *File) GetMessages(ctx context.Context, sessionID string) ([]*types.Message, error) {
	var out []*types.Message
	err := f.fs.Scan(ctx, []string{"messages", sessionID}, func(key string, data json.RawMessage) error {
		var m types.Message
		if unmarshalErr := json.Unmarshal(data, &m); unmarshalErr != nil {
			// Skip corrupt records rather than fail the whole read.
			return nil
		}
		out = append(out, &m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortMessagesByTimestampAsc(out)
	return out, nil
}

func (f *File) DeleteMessages(ctx context.Context, sessionID string) error {
	f.enqueue(func() error {
		return deleteDir(f.fs.pathToDir([]string{"messages", sessionID}))
	})
	return nil
}

func (f *File) Flush(ctx context.Context) error {
	waited := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.lastErr
	f.lastErr = nil
	return err
}

func (f *File) Clear(ctx context.Context) error {
	if err := f.Flush(ctx); err != nil {
		return err
	}
	return deleteDir(f.fs.basePath)
}

func (f *File) Close() error {
	close(f.queue)
	<-f.done
	return nil
}

var _ Store = (*File)(nil)
