package bus

import (
	"sync"
	"testing"
)

func TestBus_SubscribeAndPublish(t *testing.T) {
	b := New()

	var got []Event
	b.Subscribe(TopicScoreCalculated, func(ev Event) {
		got = append(got, ev)
	})

	b.Publish(TopicScoreCalculated, "session-1", 87)
	b.Publish(TopicLowConfidence, "session-1", 12) // different topic, must not arrive

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Topic != TopicScoreCalculated {
		t.Errorf("expected topic %s, got %s", TopicScoreCalculated, got[0].Topic)
	}
	if got[0].SessionID != "session-1" {
		t.Errorf("expected session-1, got %s", got[0].SessionID)
	}
	if got[0].Payload.(int) != 87 {
		t.Errorf("expected payload 87, got %v", got[0].Payload)
	}
	if got[0].At.IsZero() {
		t.Error("expected event timestamp to be set")
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	b := New()

	count := 0
	b.SubscribeAll(func(ev Event) {
		count++
	})

	b.Publish(TopicTimeout, "s", nil)
	b.Publish(TopicCheckpointCreated, "s", nil)
	b.Publish(TopicDriftDetected, "s", nil)

	if count != 3 {
		t.Errorf("expected catch-all handler to see 3 events, got %d", count)
	}
}

func TestBus_MultipleHandlersInOrder(t *testing.T) {
	b := New()

	var order []int
	b.Subscribe(TopicRequestStarted, func(Event) { order = append(order, 1) })
	b.Subscribe(TopicRequestStarted, func(Event) { order = append(order, 2) })

	b.Publish(TopicRequestStarted, "s", nil)

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("expected handlers in registration order, got %v", order)
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	b := New()

	var mu sync.Mutex
	count := 0
	b.Subscribe(TopicRequestCompleted, func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Publish(TopicRequestCompleted, "s", nil)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if count != 50 {
		t.Errorf("expected 50 deliveries, got %d", count)
	}
}
