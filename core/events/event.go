// Package events defines the structured state-change notifications emitted
// by the engine packages. Downstream consumers (RPC surfaces, monitor
// bots, indexers) subscribe through the Emitter interface and rebuild
// their own eventually-consistent mirrors from the stream.
package events

// Event represents a structured state change emitted by the engine.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while
// discarding all events. It is useful when a component wants to optionally
// expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
