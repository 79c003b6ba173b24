package notifier

import (
	"sync"

	"media-pipeline/internal/logging"
	"media-pipeline/internal/metrics"
)

// subscriberBuffer is the channel depth per subscriber. Events beyond a
// full buffer are dropped for that subscriber rather than blocking the
// publisher.
const subscriberBuffer = 16

// Memory is an in-process notifier backend: a mutex-guarded map from scope
// to subscriber channels.
type Memory struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

// NewMemory creates an in-memory notifier.
func NewMemory() *Memory {
	return &Memory{
		subs: make(map[string]map[chan Event]struct{}),
	}
}

// Publish delivers the event to subscribers of the scope and of ScopeAll.
// Never blocks; full subscriber buffers drop the event for that subscriber.
func (m *Memory) Publish(scope, name string, payload any) {
	ev := Event{Scope: scope, Name: name, Payload: payload}
	metrics.EventsPublishedTotal.WithLabelValues(name).Inc()

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, target := range []string{scope, ScopeAll} {
		for ch := range m.subs[target] {
			select {
			case ch <- ev:
			default:
				logging.Debug("notifier: dropping %s event for slow subscriber on scope %s", name, scope)
			}
		}
	}
}

// Subscribe registers a subscriber for the scope. The cancel function
// removes the subscription and closes the channel.
func (m *Memory) Subscribe(scope string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	m.mu.Lock()
	if m.subs[scope] == nil {
		m.subs[scope] = make(map[chan Event]struct{})
	}
	m.subs[scope][ch] = struct{}{}
	m.mu.Unlock()

	metrics.EventSubscribers.Inc()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs[scope], ch)
			if len(m.subs[scope]) == 0 {
				delete(m.subs, scope)
			}
			m.mu.Unlock()
			close(ch)
			metrics.EventSubscribers.Dec()
		})
	}
	return ch, cancel
}
