package petchat

import (
	"sync"
	"sync/atomic"
)

// ListenerID identifies one registered listener.
type ListenerID uint64

// ListenerEvent names a listener set for Client.Off.
type ListenerEvent string

const (
	ListenerStatus     ListenerEvent = "status"
	ListenerError      ListenerEvent = "error"
	ListenerMessage    ListenerEvent = "message"
	ListenerTyping     ListenerEvent = "typing"
	ListenerReaction   ListenerEvent = "reaction"
	ListenerReadStatus ListenerEvent = "read_status"
)

var nextListenerID atomic.Uint64

type listener[T any] struct {
	id ListenerID
	fn func(T)
}

// listenerSet is an ordered, append-only collection of callbacks.
type listenerSet[T any] struct {
	mu    sync.RWMutex
	items []listener[T]
}

func (s *listenerSet[T]) add(fn func(T)) ListenerID {
	id := ListenerID(nextListenerID.Add(1))
	s.mu.Lock()
	s.items = append(s.items, listener[T]{id: id, fn: fn})
	s.mu.Unlock()
	return id
}

func (s *listenerSet[T]) remove(id ListenerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.items {
		if l.id == id {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

func (s *listenerSet[T]) clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
}

func (s *listenerSet[T]) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// snapshot returns the callbacks in registration order.
func (s *listenerSet[T]) snapshot() []func(T) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]func(T), len(s.items))
	for i, l := range s.items {
		out[i] = l.fn
	}
	return out
}

// notify calls every listener in order. A panicking listener is reported
// through onPanic and does not stop the others.
func (s *listenerSet[T]) notify(v T, onPanic func(any)) {
	for _, fn := range s.snapshot() {
		callListener(fn, v, onPanic)
	}
}

func callListener[T any](fn func(T), v T, onPanic func(any)) {
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			onPanic(r)
		}
	}()
	fn(v)
}
