// Package event provides a pub/sub event system for the server.
package event

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentcore/core/internal/id"
)

// Subscriber is a function that receives events.
type Subscriber func(event Event)

// subscriberQueue is a single-consumer FIFO mailbox backing one subscriber.
// Publish appends to it and returns immediately; a persistent goroutine
// drains it and calls the subscriber function one event at a time, so a
// slow subscriber only ever delays its own deliveries, never another
// subscriber's, while still seeing events in the order Publish enqueued
// them.
type subscriberQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	events []Event
	closed bool
}

func newSubscriberQueue() *subscriberQueue {
	q := &subscriberQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *subscriberQueue) push(ev Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.events = append(q.events, ev)
	q.mu.Unlock()
	q.cond.Signal()
}

func (q *subscriberQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// run drains the queue until closed and no events remain, calling fn for
// each event in enqueue order. Intended to be the body of the one goroutine
// owned by this queue.
func (q *subscriberQueue) run(fn Subscriber) {
	for {
		q.mu.Lock()
		for len(q.events) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.events) == 0 {
			q.mu.Unlock()
			return
		}
		ev := q.events[0]
		q.events = q.events[1:]
		q.mu.Unlock()
		fn(ev)
	}
}

// subscriberEntry wraps a subscriber with an ID, optional session scope,
// and the queue feeding its delivery goroutine. once subscribers
// unsubscribe themselves after their first delivery.
type subscriberEntry struct {
	id        uint64
	fn        Subscriber
	sessionID string // empty means unscoped
	once      bool
	queue     *subscriberQueue
}

// Bus is the event bus: a typed, in-process pub/sub transport. Each
// subscriber owns a persistent goroutine and FIFO queue (see
// subscriberQueue); Publish enqueues without blocking on any subscriber's
// processing.
type Bus struct {
	mu sync.RWMutex

	subscribers map[EventType][]subscriberEntry
	global      []subscriberEntry

	nextID       uint64
	closed       bool
	closedCancel context.CancelFunc
	closedCtx    context.Context
}

// globalBus is the default event bus instance.
var globalBus = newBus()

// newBus creates a new event bus.
func newBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		subscribers:  make(map[EventType][]subscriberEntry),
		closedCtx:    ctx,
		closedCancel: cancel,
	}
}

// newID generates a unique subscriber ID.
func (b *Bus) newID() uint64 {
	return atomic.AddUint64(&b.nextID, 1)
}

// Subscribe registers a subscriber for a specific event type, across all
// sessions. Returns an unsubscribe function.
func Subscribe(eventType EventType, fn Subscriber) func() {
	return globalBus.Subscribe(eventType, fn)
}

func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	return b.subscribe(eventType, "", false, fn)
}

// SubscribeToSession registers a subscriber for a specific event type,
// scoped to a single session. Events published with a different
// SessionID (or events of the same type but no SessionID) are not
// delivered to it. Used by the HTTP/SSE adapter's per-connection fan-out.
func SubscribeToSession(eventType EventType, sessionID string, fn Subscriber) func() {
	return globalBus.SubscribeToSession(eventType, sessionID, fn)
}

func (b *Bus) SubscribeToSession(eventType EventType, sessionID string, fn Subscriber) func() {
	return b.subscribe(eventType, sessionID, false, fn)
}

// Once registers a subscriber that is automatically unsubscribed after its
// first delivery.
func Once(eventType EventType, sessionID string, fn Subscriber) func() {
	return globalBus.Once(eventType, sessionID, fn)
}

func (b *Bus) Once(eventType EventType, sessionID string, fn Subscriber) func() {
	return b.subscribe(eventType, sessionID, true, fn)
}

func (b *Bus) subscribe(eventType EventType, sessionID string, once bool, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	subID := b.newID()
	queue := newSubscriberQueue()
	entry := subscriberEntry{id: subID, fn: fn, sessionID: sessionID, once: once, queue: queue}
	b.subscribers[eventType] = append(b.subscribers[eventType], entry)
	go queue.run(fn)

	return func() {
		b.unsubscribe(eventType, subID)
	}
}

// SubscribeAll registers a subscriber for all events.
// Returns an unsubscribe function.
func SubscribeAll(fn Subscriber) func() {
	return globalBus.SubscribeAll(fn)
}

func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	subID := b.newID()
	queue := newSubscriberQueue()
	entry := subscriberEntry{id: subID, fn: fn, queue: queue}
	b.global = append(b.global, entry)
	go queue.run(fn)

	return func() {
		b.unsubscribeGlobal(subID)
	}
}

// unsubscribe removes a subscriber for a specific event type.
func (b *Bus) unsubscribe(eventType EventType, subID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[eventType]
	for i, entry := range subs {
		if entry.id == subID {
			entry.queue.close()
			b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

// unsubscribeGlobal removes a global subscriber.
func (b *Bus) unsubscribeGlobal(subID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, entry := range b.global {
		if entry.id == subID {
			entry.queue.close()
			b.global = append(b.global[:i], b.global[i+1:]...)
			break
		}
	}
}

// matches reports whether entry should receive ev, honoring session scoping.
func (entry subscriberEntry) matches(ev Event) bool {
	return entry.sessionID == "" || entry.sessionID == ev.SessionID
}

// Publish constructs ev's ID and Timestamp, then enqueues it on every
// matching subscriber's queue without blocking on delivery.
func Publish(ev Event) Event {
	return globalBus.Publish(ev)
}

func (b *Bus) Publish(ev Event) Event {
	ev = stampEvent(ev)
	entries, onceIDs := b.collect(ev)
	for _, entry := range entries {
		entry.queue.push(ev)
	}
	for _, onceID := range onceIDs {
		b.unsubscribe(ev.Type, onceID)
	}
	return ev
}

// PublishSync constructs ev's ID and Timestamp, then calls every matching
// subscriber synchronously, in the current goroutine, before returning.
func PublishSync(ev Event) Event {
	return globalBus.PublishSync(ev)
}

func (b *Bus) PublishSync(ev Event) Event {
	ev = stampEvent(ev)
	entries, onceIDs := b.collect(ev)
	for _, entry := range entries {
		entry.fn(ev)
	}
	for _, onceID := range onceIDs {
		b.unsubscribe(ev.Type, onceID)
	}
	return ev
}

// stampEvent fills in ID and Timestamp if unset, so re-publishing an event
// returned by an earlier Publish call (e.g. replays) does not mint a new
// identity for it.
func stampEvent(ev Event) Event {
	if ev.ID == "" {
		ev.ID = id.Ascending(id.PrefixEvent)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return ev
}

// collect gathers the subscriber entries that should receive ev, and the
// ids of matching once-subscribers that must be removed afterward.
func (b *Bus) collect(ev Event) ([]subscriberEntry, []uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, nil
	}

	entries := make([]subscriberEntry, 0, len(b.subscribers[ev.Type])+len(b.global))
	var onceIDs []uint64
	for _, entry := range b.subscribers[ev.Type] {
		if !entry.matches(ev) {
			continue
		}
		entries = append(entries, entry)
		if entry.once {
			onceIDs = append(onceIDs, entry.id)
		}
	}
	entries = append(entries, b.global...)
	return entries, onceIDs
}

// NewBus creates a new event bus instance.
func NewBus() *Bus {
	return newBus()
}

// Reset clears all subscribers from the global bus (for testing).
func Reset() {
	globalBus.mu.Lock()
	globalBus.closed = true
	globalBus.closedCancel()
	for _, entries := range globalBus.subscribers {
		for _, entry := range entries {
			entry.queue.close()
		}
	}
	for _, entry := range globalBus.global {
		entry.queue.close()
	}
	globalBus.mu.Unlock()

	globalBus = newBus()
}

// Close closes the bus and all its subscribers' delivery goroutines.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.closedCancel()

	for _, entries := range b.subscribers {
		for _, entry := range entries {
			entry.queue.close()
		}
	}
	for _, entry := range b.global {
		entry.queue.close()
	}
	b.subscribers = make(map[EventType][]subscriberEntry)
	b.global = nil
	b.mu.Unlock()

	return nil
}
