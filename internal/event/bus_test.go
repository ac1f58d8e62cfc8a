package event

import "testing"

func TestBus_PublishReachesSubscribers(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(TopicGesture, func(ev Event) { got = append(got, ev) })

	bus.Publish(TopicGesture, "payload")
	bus.Publish(TopicError, "other topic")

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Topic != TopicGesture || got[0].Payload != "payload" {
		t.Errorf("unexpected event: %+v", got[0])
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus()

	a, b := 0, 0
	bus.Subscribe(TopicStateChanged, func(Event) { a++ })
	bus.Subscribe(TopicStateChanged, func(Event) { b++ })

	bus.Publish(TopicStateChanged, nil)

	if a != 1 || b != 1 {
		t.Errorf("expected both subscribers invoked once, got %d and %d", a, b)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	count := 0
	unsub := bus.Subscribe(TopicGesture, func(Event) { count++ })

	bus.Publish(TopicGesture, nil)
	unsub()
	bus.Publish(TopicGesture, nil)
	unsub() // repeated unsubscribe is harmless

	if count != 1 {
		t.Errorf("expected 1 delivery, got %d", count)
	}
}

func TestBus_PanickingHandlerIsolated(t *testing.T) {
	bus := NewBus()

	survived := 0
	bus.Subscribe(TopicGesture, func(Event) { panic("boom") })
	bus.Subscribe(TopicGesture, func(Event) { survived++ })

	bus.Publish(TopicGesture, nil)
	bus.Publish(TopicGesture, nil)

	if survived != 2 {
		t.Errorf("expected healthy subscriber to keep receiving, got %d", survived)
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()

	var topics []Topic
	unsub := bus.SubscribeAll(func(ev Event) { topics = append(topics, ev.Topic) })

	bus.Publish(TopicGesture, nil)
	bus.Publish(TopicPhaseChanged, nil)
	bus.Publish(TopicCountdownTick, 3)

	if len(topics) != 3 {
		t.Fatalf("expected 3 deliveries, got %d", len(topics))
	}

	unsub()
	bus.Publish(TopicGesture, nil)
	if len(topics) != 3 {
		t.Errorf("expected no deliveries after unsubscribe, got %d", len(topics))
	}
}

func TestBus_PublishWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	bus.Publish(TopicResult, nil) // must not panic
}
