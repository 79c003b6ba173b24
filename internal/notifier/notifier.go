package notifier

// ScopeAll subscribes to events for every asset.
const ScopeAll = "*"

// Event is one progress notification. Scope identifies the subscriber set
// (an asset ID), Name is the event type (e.g. "processing:update"), and
// Payload is the event body, JSON-serializable.
type Event struct {
	Scope   string `json:"scope"`
	Name    string `json:"event"`
	Payload any    `json:"payload"`
}

// Notifier is the publish capability the pipeline depends on.
type Notifier interface {
	// Publish delivers an event to all subscribers of the scope.
	// Fire-and-forget: implementations must not block on slow consumers.
	Publish(scope, name string, payload any)
}

// Subscribable is implemented by backends that support local subscription,
// used by the SSE endpoint to bridge events to clients.
type Subscribable interface {
	Notifier
	// Subscribe registers a subscriber for a scope. The returned cancel
	// function must be called to release the subscription.
	Subscribe(scope string) (<-chan Event, func())
}
