package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentcore/core/internal/event"
	"github.com/agentcore/core/internal/executor"
	"github.com/agentcore/core/internal/session"
	"github.com/agentcore/core/pkg/types"
)

// DefaultTimeout bounds a background task with no explicit timeout.
const DefaultTimeout = 10 * time.Minute

// CreateOptions configures a new background task.
type CreateOptions struct {
	// Timeout bounds the task's execution; DefaultTimeout is used when zero.
	Timeout time.Duration
	// Cleanup selects what happens to the task's sub-session once it goes
	// terminal. Zero value is types.CleanupKeep.
	Cleanup types.Cleanup
	// Model overrides the subagent config's default model, if set.
	Model types.ModelRef
}

// runningTask pairs a BackgroundTask record with the cancel func that Stop
// uses to interrupt its goroutine.
type runningTask struct {
	mu     sync.Mutex
	task   *types.BackgroundTask
	cancel context.CancelFunc
}

// Manager schedules, tracks, and can cancel background sub-agent
// executions. Each task owns its sub-session exclusively until it reaches
// a terminal status, at which point it publishes exactly one
// background_task.* event.
type Manager struct {
	sessions *session.Service
	invoker  executor.QueryInvoker
	registry *Registry

	mu    sync.RWMutex
	tasks map[string]*runningTask
}

// NewManager creates a Manager. registry may be nil, in which case a
// NewRegistry() holding the built-in subagent types is used.
func NewManager(sessions *session.Service, invoker executor.QueryInvoker, registry *Registry) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Manager{
		sessions: sessions,
		invoker:  invoker,
		registry: registry,
		tasks:    make(map[string]*runningTask),
	}
}

// CreateTask schedules a new background task: it creates a child session
// under parentSessionID, seeds it with description as the user prompt, and
// runs the subagent's query asynchronously. It returns immediately with the
// task in pending status; the goroutine transitions it to running and then
// to exactly one terminal status.
func (m *Manager) CreateTask(ctx context.Context, parentSessionID, subagentType, description string, opts CreateOptions) (*types.BackgroundTask, error) {
	cfg, err := m.registry.Get(subagentType)
	if err != nil {
		return nil, err
	}

	parent, err := m.sessions.Get(ctx, parentSessionID)
	if err != nil {
		return nil, fmt.Errorf("task: parent session: %w", err)
	}

	child, err := m.sessions.Create(ctx, parent.Directory, fmt.Sprintf("Subtask: %s", subagentType), parentSessionID)
	if err != nil {
		return nil, fmt.Errorf("task: create sub-session: %w", err)
	}

	if _, err := m.sessions.AddUserMessage(ctx, child.ID, description); err != nil {
		return nil, fmt.Errorf("task: seed sub-session prompt: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cleanup := opts.Cleanup
	if cleanup == "" {
		cleanup = types.CleanupKeep
	}
	model := opts.Model
	if model.ModelID == "" {
		model = cfg.Model
	}

	bt := &types.BackgroundTask{
		ID:              "task_" + uuid.NewString(),
		ParentSessionID: parentSessionID,
		SubSessionID:    child.ID,
		Description:     description,
		SubagentType:    subagentType,
		Status:          types.TaskPending,
		StartedAt:       time.Now().UnixMilli(),
		Cleanup:         cleanup,
	}

	runCtx, cancel := context.WithCancel(context.Background())
	rt := &runningTask{task: bt, cancel: cancel}

	m.mu.Lock()
	m.tasks[bt.ID] = rt
	m.mu.Unlock()

	go m.run(runCtx, rt, cfg, description, model, timeout, cleanup)

	return bt, nil
}

// run executes the subagent's query, racing it against timeout and the
// task's own cancellation, and publishes exactly one terminal event.
func (m *Manager) run(ctx context.Context, rt *runningTask, cfg SubagentConfig, prompt string, model types.ModelRef, timeout time.Duration, cleanup types.Cleanup) {
	rt.mu.Lock()
	rt.task.Status = types.TaskRunning
	rt.mu.Unlock()

	deadline, cancelDeadline := context.WithTimeout(ctx, timeout)
	defer cancelDeadline()

	type outcome struct {
		result string
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		systemPrompt := cfg.Prompt
		history := []types.HistoryMessage{{Role: types.RoleSystem, Parts: []types.Part{&types.TextPart{Type: "text", Text: systemPrompt}}}}
		if systemPrompt == "" {
			history = nil
		}
		result, err := m.invoker.HandleQuery(deadline, prompt, executor.QueryContext{SessionID: rt.task.SubSessionID, Model: model}, history)
		done <- outcome{result: result, err: err}
	}()

	start := time.Now()
	select {
	case out := <-done:
		elapsed := time.Since(start).Milliseconds()
		if out.err != nil {
			m.finish(rt, types.TaskFailed, cleanup, func() {
				event.Publish(event.Event{
					Type:      event.BackgroundFailed,
					SessionID: rt.task.ParentSessionID,
					Data: event.BackgroundFailedData{
						TaskID: rt.task.ID, SubSessionID: rt.task.SubSessionID,
						Description: rt.task.Description, Error: out.err.Error(),
						ExecutionTimeMs: elapsed, SubagentType: rt.task.SubagentType,
					},
				})
			})
			return
		}
		m.finish(rt, types.TaskCompleted, cleanup, func() {
			event.Publish(event.Event{
				Type:      event.BackgroundCompleted,
				SessionID: rt.task.ParentSessionID,
				Data: event.BackgroundCompletedData{
					TaskID: rt.task.ID, SubSessionID: rt.task.SubSessionID,
					Description: rt.task.Description, Result: out.result,
					ExecutionTimeMs: elapsed, SubagentType: rt.task.SubagentType,
				},
			})
		})

	case <-deadline.Done():
		elapsed := time.Since(start).Milliseconds()
		if ctx.Err() == context.Canceled {
			// The task's own context was cancelled -- StopTask was called,
			// as opposed to the timeout deadline elapsing.
			m.finish(rt, types.TaskStopped, cleanup, func() {
				event.Publish(event.Event{
					Type:      event.BackgroundStopped,
					SessionID: rt.task.ParentSessionID,
					Data: event.BackgroundStoppedData{
						TaskID: rt.task.ID, SubSessionID: rt.task.SubSessionID,
						Message: "stopped by caller", ExecutionTimeMs: elapsed,
					},
				})
			})
			return
		}
		m.finish(rt, types.TaskTimeout, cleanup, func() {
			event.Publish(event.Event{
				Type:      event.BackgroundTimeout,
				SessionID: rt.task.ParentSessionID,
				Data: event.BackgroundTimeoutData{
					TaskID: rt.task.ID, SubSessionID: rt.task.SubSessionID,
					Description: rt.task.Description, Message: "task exceeded its timeout",
					ExecutionTimeMs: elapsed,
				},
			})
		})
	}
}

// finish sets rt's terminal status, publishes its single terminal event,
// and applies the cleanup policy.
func (m *Manager) finish(rt *runningTask, status types.TaskStatus, cleanup types.Cleanup, publish func()) {
	rt.mu.Lock()
	now := time.Now().UnixMilli()
	rt.task.Status = status
	rt.task.EndedAt = &now
	subSessionID := rt.task.SubSessionID
	rt.mu.Unlock()

	publish()

	if cleanup == types.CleanupDelete {
		_ = m.sessions.Delete(context.Background(), subSessionID)
	}
}

// StopTask cancels a running task, which resolves to TaskStopped. It has
// no effect on a task that is already terminal, and returns an error if
// the task does not exist.
func (m *Manager) StopTask(taskID string) error {
	m.mu.RLock()
	rt, ok := m.tasks[taskID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("task: not found: %s", taskID)
	}
	rt.cancel()
	return nil
}

// GetTask returns the current state of a task.
func (m *Manager) GetTask(taskID string) (*types.BackgroundTask, error) {
	m.mu.RLock()
	rt, ok := m.tasks[taskID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("task: not found: %s", taskID)
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	cp := *rt.task
	return &cp, nil
}

// ListTasks returns every task this Manager has created, in no particular
// order.
func (m *Manager) ListTasks() []*types.BackgroundTask {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.BackgroundTask, 0, len(m.tasks))
	for _, rt := range m.tasks {
		rt.mu.Lock()
		cp := *rt.task
		rt.mu.Unlock()
		out = append(out, &cp)
	}
	return out
}
