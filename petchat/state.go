package petchat

// ConnectionStatus represents the current state of the real-time connection.
type ConnectionStatus int

const (
	// StatusDisconnected means there is no live connection.
	StatusDisconnected ConnectionStatus = iota

	// StatusConnecting means a transport was created and the handshake is in flight.
	StatusConnecting

	// StatusConnected means the transport reported a successful handshake.
	StatusConnected

	// StatusReconnecting means a reconnection attempt is scheduled.
	StatusReconnecting

	// StatusError means the transport reported an error.
	StatusError
)

// String returns the string representation of a ConnectionStatus.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseConnectionStatus converts the wire name of a status back to a ConnectionStatus.
func ParseConnectionStatus(s string) (ConnectionStatus, bool) {
	switch s {
	case "disconnected":
		return StatusDisconnected, true
	case "connecting":
		return StatusConnecting, true
	case "connected":
		return StatusConnected, true
	case "reconnecting":
		return StatusReconnecting, true
	case "error":
		return StatusError, true
	default:
		return StatusDisconnected, false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ConnectionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
