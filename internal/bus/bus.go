package bus

import (
	"sync"
	"time"
)

// Topic names every event published by the engine and its components.
type Topic string

const (
	TopicScoreCalculated Topic = "confidence:score-calculated"
	TopicLowConfidence   Topic = "confidence:low-confidence"

	TopicCheckpointCreated  Topic = "checkpoint:created"
	TopicCheckpointRestored Topic = "checkpoint:restored"

	TopicReportGenerated Topic = "factcheck:report-generated"
	TopicLowReliability  Topic = "factcheck:low-reliability"

	TopicDriftDetected  Topic = "consistency:drift-detected"
	TopicProfileCreated Topic = "consistency:profile-created"

	TopicTimeout        Topic = "timeout:timeout"
	TopicCircuitOpen    Topic = "timeout:circuit-open"
	TopicTimeoutWarning Topic = "timeout:warning"

	TopicRequestStarted   Topic = "engine:request-started"
	TopicRequestCompleted Topic = "engine:request-completed"
	TopicRequestFailed    Topic = "engine:request-failed"
)

// Event is one notification delivered to subscribers
type Event struct {
	Topic     Topic
	SessionID string
	Payload   interface{}
	At        time.Time
}

// Handler receives events for the topics it subscribed to
type Handler func(Event)

// Bus is a typed publish/subscribe channel. Handlers run synchronously in
// publish order; a handler must not block.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]Handler
	all      []Handler
}

// New creates an empty bus
func New() *Bus {
	return &Bus{
		handlers: make(map[Topic][]Handler),
	}
}

// Subscribe registers a handler for one topic
func (b *Bus) Subscribe(topic Topic, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// SubscribeAll registers a handler for every topic
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish delivers an event to topic subscribers and catch-all subscribers
func (b *Bus) Publish(topic Topic, sessionID string, payload interface{}) {
	ev := Event{
		Topic:     topic,
		SessionID: sessionID,
		Payload:   payload,
		At:        time.Now().UTC(),
	}

	b.mu.RLock()
	topicHandlers := make([]Handler, len(b.handlers[topic]))
	copy(topicHandlers, b.handlers[topic])
	allHandlers := make([]Handler, len(b.all))
	copy(allHandlers, b.all)
	b.mu.RUnlock()

	for _, h := range topicHandlers {
		h(ev)
	}
	for _, h := range allHandlers {
		h(ev)
	}
}
