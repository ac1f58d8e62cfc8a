// Package event provides the synchronous fan-out bus for engine events.
package event

import (
	"log"
	"sync"
)

// Topic identifies an event stream.
type Topic string

// Engine-scoped topics.
const (
	TopicStateChanged        Topic = "stateChanged"
	TopicError               Topic = "error"
	TopicGesture             Topic = "gesture"
	TopicResult              Topic = "result"
	TopicArmedStateChanged   Topic = "armedStateChanged"
	TopicRecalibrationNeeded Topic = "recalibrationNeeded"
	TopicActivityChanged     Topic = "activityChanged"
)

// Recorder-scoped topics.
const (
	TopicPhaseChanged        Topic = "phaseChanged"
	TopicCountdownTick       Topic = "countdownTick"
	TopicRecordingCompleted  Topic = "recordingCompleted"
	TopicRepetitionDiscarded Topic = "repetitionDiscarded"
)

// Event is a published occurrence on a topic.
type Event struct {
	Topic   Topic `json:"topic"`
	Payload any   `json:"payload,omitempty"`
}

// Handler consumes events. Handlers run synchronously on the
// publisher's goroutine; a panicking handler is isolated and never
// blocks other subscribers or corrupts engine state.
type Handler func(Event)

// Bus is a topic → subscriber-set map with synchronous dispatch.
// Subscriber invocation order is unspecified.
type Bus struct {
	mu   sync.RWMutex
	subs map[Topic]map[int]Handler
	next int
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[Topic]map[int]Handler),
	}
}

// Subscribe registers a handler for a topic and returns an
// unsubscribe function.
func (b *Bus) Subscribe(topic Topic, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	id := b.next
	b.next++
	b.subs[topic][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}
}

// SubscribeAll registers a handler for every known topic and returns a
// single unsubscribe function.
func (b *Bus) SubscribeAll(h Handler) func() {
	topics := []Topic{
		TopicStateChanged, TopicError, TopicGesture, TopicResult,
		TopicArmedStateChanged, TopicRecalibrationNeeded, TopicActivityChanged,
		TopicPhaseChanged, TopicCountdownTick, TopicRecordingCompleted,
		TopicRepetitionDiscarded,
	}

	unsubs := make([]func(), 0, len(topics))
	for _, t := range topics {
		unsubs = append(unsubs, b.Subscribe(t, h))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Publish dispatches an event to every subscriber of the topic,
// synchronously, isolating per-subscriber failures.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	ev := Event{Topic: topic, Payload: payload}
	for _, h := range handlers {
		dispatch(h, ev)
	}
}

func dispatch(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("event: handler panic on %s: %v", ev.Topic, r)
		}
	}()
	h(ev)
}
