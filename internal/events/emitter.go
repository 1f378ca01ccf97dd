// Package events provides a small synchronous named-event emitter used by
// proxies and the collections that own them.
package events

import "sync"

// Handler receives the payload passed to Emit. Payload may be nil.
type Handler func(payload any)

type listener struct {
	id   uint64
	fn   Handler
	once bool
}

// Emitter dispatches named events to registered handlers.
// The zero value is ready to use and safe for concurrent use.
type Emitter struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[string][]listener
}

// On registers fn for event and returns an id usable with Off.
func (e *Emitter) On(event string, fn Handler) uint64 {
	return e.add(event, fn, false)
}

// Once registers fn for the next emission of event only.
func (e *Emitter) Once(event string, fn Handler) uint64 {
	return e.add(event, fn, true)
}

func (e *Emitter) add(event string, fn Handler, once bool) uint64 {
	if fn == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[string][]listener)
	}
	e.nextID++
	e.listeners[event] = append(e.listeners[event], listener{id: e.nextID, fn: fn, once: once})
	return e.nextID
}

// Off removes the listener with the given id. It reports whether one was removed.
func (e *Emitter) Off(event string, id uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls := e.listeners[event]
	for i, l := range ls {
		if l.id == id {
			e.listeners[event] = append(ls[:i:i], ls[i+1:]...)
			return true
		}
	}
	return false
}

// ListenerCount returns the number of listeners registered for event.
func (e *Emitter) ListenerCount(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[event])
}

// Emit calls every listener registered for event, in registration order,
// on the caller's goroutine. Listeners added or removed by a handler take
// effect from the next emission.
func (e *Emitter) Emit(event string, payload any) {
	e.mu.Lock()
	ls := e.listeners[event]
	if len(ls) == 0 {
		e.mu.Unlock()
		return
	}
	snapshot := make([]listener, len(ls))
	copy(snapshot, ls)

	// once-listeners are dropped before dispatch so a handler that emits
	// the same event again does not re-enter them
	kept := ls[:0:0]
	for _, l := range ls {
		if !l.once {
			kept = append(kept, l)
		}
	}
	e.listeners[event] = kept
	e.mu.Unlock()

	for _, l := range snapshot {
		l.fn(payload)
	}
}
