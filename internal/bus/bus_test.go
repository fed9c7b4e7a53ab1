package bus

import (
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := New()
	sub := b.Subscribe("task")
	defer b.Unsubscribe(sub)

	b.Publish(TopicTaskStart, TaskEvent{TaskID: "t1", AgentID: "writer"})

	select {
	case event := <-sub.Ch():
		if event.Topic != TopicTaskStart {
			t.Fatalf("topic = %q, want %q", event.Topic, TopicTaskStart)
		}
		payload, ok := event.Payload.(TaskEvent)
		if !ok {
			t.Fatalf("payload type = %T, want TaskEvent", event.Payload)
		}
		if payload.TaskID != "t1" {
			t.Fatalf("task id = %q, want t1", payload.TaskID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBus_PrefixMatching(t *testing.T) {
	b := New()

	taskSub := b.Subscribe("task.")
	defer b.Unsubscribe(taskSub)

	allSub := b.Subscribe("")
	defer b.Unsubscribe(allSub)

	b.Publish(TopicTaskComplete, TaskEvent{TaskID: "t1"})
	b.Publish("config.reloaded", nil)

	select {
	case event := <-taskSub.Ch():
		if event.Topic != TopicTaskComplete {
			t.Fatalf("topic = %q, want %q", event.Topic, TopicTaskComplete)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for task event")
	}

	// taskSub must not see the config topic.
	select {
	case event := <-taskSub.Ch():
		t.Fatalf("unexpected event on taskSub: %v", event)
	case <-time.After(50 * time.Millisecond):
	}

	// allSub sees both.
	for i := 0; i < 2; i++ {
		select {
		case <-allSub.Ch():
		case <-time.After(time.Second):
			t.Fatalf("allSub missing event %d", i)
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New()
	sub := b.Subscribe("")
	b.Unsubscribe(sub)

	if got := b.SubscriberCount(); got != 0 {
		t.Fatalf("subscriber count = %d, want 0", got)
	}

	// Double unsubscribe must not panic.
	b.Unsubscribe(sub)
	b.Unsubscribe(nil)

	// Channel is closed after unsubscribe.
	if _, ok := <-sub.Ch(); ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
}

func TestBus_SlowSubscriberDropsEvents(t *testing.T) {
	b := New()
	sub := b.Subscribe("task.")
	defer b.Unsubscribe(sub)

	// Overfill the buffer; Publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultBufferSize*2; i++ {
			b.Publish(TopicTaskStart, TaskEvent{TaskID: "flood"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on full subscriber buffer")
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	b := New()
	sub := b.Subscribe("")
	defer b.Unsubscribe(sub)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Publish(TopicTaskStart, TaskEvent{})
		}()
	}
	wg.Wait()

	received := 0
	for {
		select {
		case <-sub.Ch():
			received++
			if received == 10 {
				return
			}
		case <-time.After(time.Second):
			t.Fatalf("received %d events, want 10", received)
		}
	}
}
