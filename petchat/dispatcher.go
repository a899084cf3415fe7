package petchat

import (
	"encoding/json"
	"fmt"
)

// Dispatcher routes real-time events to the registered listener sets.
type Dispatcher struct {
	status     listenerSet[ConnectionStatus]
	errors     listenerSet[error]
	messages   listenerSet[Message]
	typing     listenerSet[TypingIndicator]
	reactions  listenerSet[ReactionUpdate]
	readStatus listenerSet[ReadStatusUpdate]

	// onPanic receives values recovered from panicking listeners.
	onPanic func(event string, v any)
}

func (d *Dispatcher) OnStatus(fn func(ConnectionStatus)) ListenerID     { return d.status.add(fn) }
func (d *Dispatcher) OnError(fn func(error)) ListenerID                 { return d.errors.add(fn) }
func (d *Dispatcher) OnMessage(fn func(Message)) ListenerID             { return d.messages.add(fn) }
func (d *Dispatcher) OnTyping(fn func(TypingIndicator)) ListenerID      { return d.typing.add(fn) }
func (d *Dispatcher) OnReaction(fn func(ReactionUpdate)) ListenerID     { return d.reactions.add(fn) }
func (d *Dispatcher) OnReadStatus(fn func(ReadStatusUpdate)) ListenerID { return d.readStatus.add(fn) }

// Remove drops the listener with id from whichever set holds it.
func (d *Dispatcher) Remove(id ListenerID) bool {
	return d.status.remove(id) ||
		d.errors.remove(id) ||
		d.messages.remove(id) ||
		d.typing.remove(id) ||
		d.reactions.remove(id) ||
		d.readStatus.remove(id)
}

// Clear empties one listener set.
func (d *Dispatcher) Clear(event ListenerEvent) {
	switch event {
	case ListenerStatus:
		d.status.clear()
	case ListenerError:
		d.errors.clear()
	case ListenerMessage:
		d.messages.clear()
	case ListenerTyping:
		d.typing.clear()
	case ListenerReaction:
		d.reactions.clear()
	case ListenerReadStatus:
		d.readStatus.clear()
	}
}

func (d *Dispatcher) emitStatus(s ConnectionStatus) {
	d.status.notify(s, d.panicHandler("status"))
}

func (d *Dispatcher) emitError(err error) {
	if err == nil {
		return
	}
	d.errors.notify(err, d.panicHandler("error"))
}

// Dispatch decodes an application event and fans it out. It reports whether
// the event was recognised.
func (d *Dispatcher) Dispatch(event string, data json.RawMessage) bool {
	switch event {
	case eventNewMessage:
		var m Message
		if !d.decode(event, data, &m) {
			return true
		}
		d.messages.notify(m, d.panicHandler(event))
	case eventUserTyping, eventUserStoppedTyping:
		var ti TypingIndicator
		if !d.decode(event, data, &ti) {
			return true
		}
		ti.IsTyping = event == eventUserTyping
		d.typing.notify(ti, d.panicHandler(event))
	case eventReactionAdded, eventReactionRemoved:
		var ru ReactionUpdate
		if !d.decode(event, data, &ru) {
			return true
		}
		ru.Action = ReactionAdded
		if event == eventReactionRemoved {
			ru.Action = ReactionRemoved
		}
		d.reactions.notify(ru, d.panicHandler(event))
	case eventMessagesRead:
		var rs ReadStatusUpdate
		if !d.decode(event, data, &rs) {
			return true
		}
		d.readStatus.notify(rs, d.panicHandler(event))
	default:
		return false
	}
	return true
}

func (d *Dispatcher) decode(event string, data json.RawMessage, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		d.emitError(WrapError(ErrorSerialization, fmt.Sprintf("failed to unmarshal %s event", event), err))
		return false
	}
	return true
}

func (d *Dispatcher) panicHandler(event string) func(any) {
	return func(v any) {
		if d.onPanic != nil {
			d.onPanic(event, v)
		}
	}
}
