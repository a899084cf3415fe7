package petchat

import "encoding/json"

// EventHandler receives the raw payload of one transport event.
type EventHandler func(data json.RawMessage)

// Transport is a duplex event channel to the chat server.
//
// Implementations raise EventConnect after the handshake, EventConnectError
// with {"message": ...} when it fails and EventDisconnect with the reason
// string when an established connection drops. Handlers may run on any
// goroutine but a single transport delivers its events one at a time.
type Transport interface {
	On(event string, handler EventHandler)
	Off(event string)
	Emit(event string, payload any) error
	// Connect starts the handshake and returns without waiting for it.
	Connect()
	Disconnect() error
}

// TransportOptions are handed to a Dialer when the client creates a transport.
type TransportOptions struct {
	Token       string
	UserID      string
	AutoConnect bool
	Transports  []string
}

// Dialer creates a transport pointed at url. It must not block on network I/O.
type Dialer func(url string, opts TransportOptions) (Transport, error)
