package internal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Frame is the JSON envelope exchanged over the socket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Conn wraps websocket.Conn with frame encoding and write timeouts.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
}

func NewConn(ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{ws: ws, writeTimeout: writeTimeout}
}

// ReadFrame blocks until the next frame arrives or ctx is done.
func (c *Conn) ReadFrame(ctx context.Context) (Frame, error) {
	var f Frame
	err := wsjson.Read(ctx, c.ws, &f)
	return f, err
}

// WriteFrame encodes payload as the data of event.
func (c *Conn) WriteFrame(ctx context.Context, event string, payload any) error {
	f := Frame{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		f.Data = data
	}
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}
	return wsjson.Write(ctx, c.ws, f)
}

func (c *Conn) Close(code websocket.StatusCode, reason string) error {
	return c.ws.Close(code, reason)
}
