package event

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus()

	var received Event
	var wg sync.WaitGroup
	wg.Add(1)

	unsub := bus.Subscribe(StreamStart, func(e Event) {
		received = e
		wg.Done()
	})
	defer unsub()

	ev := Event{Type: StreamStart, Data: "test-session"}
	bus.Publish(ev)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if received.Type != StreamStart {
			t.Errorf("Expected StreamStart, got %v", received.Type)
		}
		if received.Data != "test-session" {
			t.Errorf("Expected 'test-session', got %v", received.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()

	var count int32
	var wg sync.WaitGroup
	wg.Add(3)

	unsub := bus.SubscribeAll(func(e Event) {
		atomic.AddInt32(&count, 1)
		wg.Done()
	})
	defer unsub()

	bus.Publish(Event{Type: StreamStart, Data: nil})
	bus.Publish(Event{Type: StreamCompleted, Data: nil})
	bus.Publish(Event{Type: ServerHeartbeat, Data: nil})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if atomic.LoadInt32(&count) != 3 {
			t.Errorf("Expected 3 events, got %d", count)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for events")
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	var count int32
	unsub := bus.Subscribe(StreamStart, func(e Event) {
		atomic.AddInt32(&count, 1)
	})

	bus.PublishSync(Event{Type: StreamStart, Data: nil})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("Expected 1 event before unsub, got %d", count)
	}

	unsub()

	bus.PublishSync(Event{Type: StreamStart, Data: nil})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("Expected still 1 event after unsub, got %d", count)
	}
}

func TestBus_UnsubscribeGlobal(t *testing.T) {
	bus := NewBus()

	var count int32
	unsub := bus.SubscribeAll(func(e Event) {
		atomic.AddInt32(&count, 1)
	})

	bus.PublishSync(Event{Type: StreamStart, Data: nil})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("Expected 1 event before unsub, got %d", count)
	}

	unsub()

	bus.PublishSync(Event{Type: StreamCompleted, Data: nil})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("Expected still 1 event after unsub, got %d", count)
	}
}

func TestBus_PublishSync(t *testing.T) {
	bus := NewBus()

	var received []EventType
	var mu sync.Mutex

	bus.Subscribe(StreamStart, func(e Event) {
		mu.Lock()
		received = append(received, e.Type)
		mu.Unlock()
	})
	bus.Subscribe(StreamCompleted, func(e Event) {
		mu.Lock()
		received = append(received, e.Type)
		mu.Unlock()
	})

	bus.PublishSync(Event{Type: StreamStart, Data: nil})
	bus.PublishSync(Event{Type: StreamCompleted, Data: nil})

	mu.Lock()
	if len(received) != 2 {
		t.Errorf("Expected 2 events, got %d", len(received))
	}
	mu.Unlock()
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus()

	var count int32
	var wg sync.WaitGroup
	wg.Add(3)

	for i := 0; i < 3; i++ {
		bus.Subscribe(StreamStart, func(e Event) {
			atomic.AddInt32(&count, 1)
			wg.Done()
		})
	}

	bus.Publish(Event{Type: StreamStart, Data: nil})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if atomic.LoadInt32(&count) != 3 {
			t.Errorf("Expected 3 subscribers to receive event, got %d", count)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for events")
	}
}

func TestBus_NoSubscribers(t *testing.T) {
	bus := NewBus()

	bus.Publish(Event{Type: StreamStart, Data: nil})
	bus.PublishSync(Event{Type: StreamStart, Data: nil})
}

func TestBus_EventTypeFiltering(t *testing.T) {
	bus := NewBus()

	var startCount, completedCount int32

	bus.Subscribe(StreamStart, func(e Event) {
		atomic.AddInt32(&startCount, 1)
	})
	bus.Subscribe(StreamCompleted, func(e Event) {
		atomic.AddInt32(&completedCount, 1)
	})

	bus.PublishSync(Event{Type: StreamStart, Data: nil})
	bus.PublishSync(Event{Type: StreamStart, Data: nil})
	bus.PublishSync(Event{Type: StreamCompleted, Data: nil})

	if atomic.LoadInt32(&startCount) != 2 {
		t.Errorf("Expected 2 start events, got %d", startCount)
	}
	if atomic.LoadInt32(&completedCount) != 1 {
		t.Errorf("Expected 1 completed event, got %d", completedCount)
	}
}

func TestBus_SubscribeToSessionScoping(t *testing.T) {
	bus := NewBus()

	var countA, countB int32
	bus.SubscribeToSession(StreamText, "ses_a", func(e Event) {
		atomic.AddInt32(&countA, 1)
	})
	bus.SubscribeToSession(StreamText, "ses_b", func(e Event) {
		atomic.AddInt32(&countB, 1)
	})

	bus.PublishSync(Event{Type: StreamText, SessionID: "ses_a", Data: nil})
	bus.PublishSync(Event{Type: StreamText, SessionID: "ses_a", Data: nil})
	bus.PublishSync(Event{Type: StreamText, SessionID: "ses_b", Data: nil})

	if atomic.LoadInt32(&countA) != 2 {
		t.Errorf("Expected 2 events for ses_a, got %d", countA)
	}
	if atomic.LoadInt32(&countB) != 1 {
		t.Errorf("Expected 1 event for ses_b, got %d", countB)
	}
}

func TestBus_Once(t *testing.T) {
	bus := NewBus()

	var count int32
	bus.Once(BackgroundCompleted, "ses_x", func(e Event) {
		atomic.AddInt32(&count, 1)
	})

	bus.PublishSync(Event{Type: BackgroundCompleted, SessionID: "ses_x", Data: nil})
	bus.PublishSync(Event{Type: BackgroundCompleted, SessionID: "ses_x", Data: nil})

	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("Expected exactly 1 delivery for a once-subscriber, got %d", count)
	}
}

func TestGlobalBus_Reset(t *testing.T) {
	var count int32
	Subscribe(StreamStart, func(e Event) {
		atomic.AddInt32(&count, 1)
	})

	PublishSync(Event{Type: StreamStart, Data: nil})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("Expected 1 event before reset, got %d", count)
	}

	Reset()

	PublishSync(Event{Type: StreamStart, Data: nil})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("Expected still 1 event after reset, got %d", count)
	}
}

func TestBus_PublishStampsIDAndTimestamp(t *testing.T) {
	bus := NewBus()

	published := bus.Publish(Event{Type: StreamStart, Data: nil})
	if published.ID == "" {
		t.Error("Expected Publish to stamp a non-empty ID")
	}
	if published.Timestamp.IsZero() {
		t.Error("Expected Publish to stamp a non-zero Timestamp")
	}

	publishedSync := bus.PublishSync(Event{Type: StreamStart, Data: nil})
	if publishedSync.ID == "" {
		t.Error("Expected PublishSync to stamp a non-empty ID")
	}
	if publishedSync.Timestamp.IsZero() {
		t.Error("Expected PublishSync to stamp a non-zero Timestamp")
	}
	if publishedSync.ID == published.ID {
		t.Error("Expected two distinct publishes to get distinct IDs")
	}
}

func TestBus_SingleSubscriberReceivesEventsInPublishOrder(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var deltas []string
	done := make(chan struct{})

	unsub := bus.SubscribeToSession(StreamText, "ses_order", func(e Event) {
		data := e.Data.(StreamTextData)
		mu.Lock()
		deltas = append(deltas, data.Delta)
		if len(deltas) == 20 {
			close(done)
		}
		mu.Unlock()
		if data.Delta == "slow" {
			time.Sleep(20 * time.Millisecond)
		}
	})
	defer unsub()

	for i := 0; i < 20; i++ {
		delta := "normal"
		if i == 0 {
			delta = "slow"
		}
		bus.Publish(Event{Type: StreamText, SessionID: "ses_order", Data: StreamTextData{Delta: delta}})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for ordered delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	if deltas[0] != "slow" {
		t.Fatalf("Expected first delivered event to be the first published event, got %v", deltas[0])
	}
	for i := 1; i < len(deltas); i++ {
		if deltas[i] != "normal" {
			t.Fatalf("Expected publish order preserved, got %v at index %d", deltas[i], i)
		}
	}
}

func TestBus_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	bus := NewBus()

	blockFirst := make(chan struct{})
	release := make(chan struct{})
	bus.Subscribe(StreamStart, func(e Event) {
		close(blockFirst)
		<-release
	})

	var fastCount int32
	fastDone := make(chan struct{})
	bus.Subscribe(StreamCompleted, func(e Event) {
		if atomic.AddInt32(&fastCount, 1) == 1 {
			close(fastDone)
		}
	})

	bus.Publish(Event{Type: StreamStart, Data: nil})
	<-blockFirst

	bus.Publish(Event{Type: StreamCompleted, Data: nil})

	select {
	case <-fastDone:
	case <-time.After(time.Second):
		t.Fatal("Slow subscriber blocked an unrelated subscriber's delivery")
	}

	close(release)
}

func TestBus_ConcurrentSubscribePublish(t *testing.T) {
	bus := NewBus()

	var count int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := bus.Subscribe(StreamStart, func(e Event) {
				atomic.AddInt32(&count, 1)
			})
			defer unsub()

			for j := 0; j < 10; j++ {
				bus.Publish(Event{Type: StreamStart, Data: nil})
			}
		}()
	}

	wg.Wait()
	time.Sleep(100 * time.Millisecond)

	if atomic.LoadInt32(&count) == 0 {
		t.Log("Warning: no events received, but no panic occurred")
	}
}
