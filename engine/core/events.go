package core

import stdmath "math"

// ECSEventType tags what happened to a component.
type ECSEventType uint8

const (
	ComponentAdded ECSEventType = iota
	ComponentUpdated
	ComponentDeleted
)

func (t ECSEventType) String() string {
	switch t {
	case ComponentAdded:
		return "added"
	case ComponentUpdated:
		return "updated"
	case ComponentDeleted:
		return "deleted"
	}
	return "unknown"
}

// NoSubEvent is the SubEventCode of events that carry no finer detail.
const NoSubEvent uint32 = stdmath.MaxUint32

// ComponentEvent is the payload delivered to listeners of a component type.
type ComponentEvent[C any] struct {
	Type      ECSEventType
	Component C
	// E.g. a code for "scaling transform" on a transform update.
	SubEventCode uint32
	Payload      interface{}
}

// ListenerID identifies a registration so it can be removed later.
type ListenerID uint32

type registeredListener[T any] struct {
	id       ListenerID
	callback func(T)
}

// EventChannel is a typed publish/subscribe channel. Events are delivered
// synchronously, on the dispatching goroutine, in registration order.
// It is not safe for concurrent use.
type EventChannel[T any] struct {
	listeners []registeredListener[T]
	nextID    ListenerID
}

func NewEventChannel[T any]() *EventChannel[T] {
	return &EventChannel[T]{
		listeners: make([]registeredListener[T], 0, 4),
	}
}

/**
 * Register to listen for events sent on this channel.
 * @param onEvent The callback invoked on every dispatch.
 * @returns The id to pass to Unregister.
 */
func (c *EventChannel[T]) Register(onEvent func(T)) ListenerID {
	c.nextID++
	c.listeners = append(c.listeners, registeredListener[T]{
		id:       c.nextID,
		callback: onEvent,
	})
	return c.nextID
}

/**
 * Unregister from listening. If no matching registration is found, this
 * function returns false.
 */
func (c *EventChannel[T]) Unregister(id ListenerID) bool {
	for i := range c.listeners {
		if c.listeners[i].id == id {
			// Full slice expression forces a copy so an in-flight Dispatch keeps
			// iterating the old backing array.
			c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Dispatch fires an event to every listener registered when the call began.
func (c *EventChannel[T]) Dispatch(event T) {
	for _, l := range c.listeners {
		l.callback(event)
	}
}

// Len returns the number of registered listeners.
func (c *EventChannel[T]) Len() int {
	return len(c.listeners)
}
